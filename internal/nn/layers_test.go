package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/tensor"
)

func TestLinear_AnyRank(t *testing.T) {
	b := newTestBackend()
	l := NewLinear("l", 4, 3, true, rand.New(rand.NewSource(1)), b)
	out := l.Forward(randn(tensor.Shape{2, 5, 4}, 2, b))
	assert.Equal(t, tensor.Shape{2, 5, 3}, out.Shape())
	assert.Len(t, l.Parameters(), 2)

	noBias := NewLinear("l", 4, 3, false, rand.New(rand.NewSource(1)), b)
	assert.Len(t, noBias.Parameters(), 1)
	assert.Nil(t, noBias.Bias())

	assert.Panics(t, func() { l.Forward(randn(tensor.Shape{2, 5}, 3, b)) })
}

func TestXavierBounds(t *testing.T) {
	b := newTestBackend()
	w := Xavier(4, 2, tensor.Shape{2, 4}, rand.New(rand.NewSource(1)), b)
	bound := float32(1.0) // sqrt(6/6)
	for _, v := range w.Data() {
		assert.LessOrEqual(t, v, bound)
		assert.GreaterOrEqual(t, v, -bound)
	}
}

func TestLayerNorm_Normalizes(t *testing.T) {
	b := newTestBackend()
	ln := NewLayerNorm("ln", 4, 1e-5, b)
	out := ln.Forward(tensor.MustFromSlice([]float32{1, 2, 3, 4, 10, 10, 10, 10}, tensor.Shape{2, 4}, b)).Data()

	var mean, sq float32
	for _, v := range out[:4] {
		mean += v
		sq += v * v
	}
	assert.InDelta(t, 0, mean/4, 1e-5)
	assert.InDelta(t, 1, sq/4, 1e-3)
	for _, v := range out[4:] {
		assert.InDelta(t, 0, v, 1e-6)
	}
}

func TestDropout(t *testing.T) {
	b := newTestBackend()
	noise := NewNoise(3)
	d := NewDropout(0.5, noise, b)
	x := tensor.Ones[float32](tensor.Shape{1000}, b)

	assert.Same(t, x, d.Forward(x), "eval mode is the identity")

	noise.SetTraining(true)
	out := d.Forward(x).Data()
	zeros := 0
	for _, v := range out {
		if v == 0 {
			zeros++
		} else {
			assert.Equal(t, float32(2), v)
		}
	}
	assert.InDelta(t, 500, zeros, 80)

	assert.Panics(t, func() { NewDropout(1, noise, b) })
}

func TestFeedForward_Shape(t *testing.T) {
	b := newTestBackend()
	ffn := NewFeedForward("ffn", 8, 32, NewDropout(0, NewNoise(1), b), rand.New(rand.NewSource(1)), b)
	out := ffn.Forward(randn(tensor.Shape{2, 3, 8}, 1, b))
	assert.Equal(t, tensor.Shape{2, 3, 8}, out.Shape())
	assert.Len(t, ffn.Parameters(), 4)
}

func TestResidual_ZeroSublayerIsIdentity(t *testing.T) {
	b := newTestBackend()
	ffn := NewFeedForward("ffn", 4, 8, NewDropout(0, NewNoise(1), b), rand.New(rand.NewSource(1)), b)
	for _, p := range ffn.Linear2.Parameters() {
		data := p.Tensor().Data()
		for i := range data {
			data[i] = 0
		}
	}
	r := NewResidual[testBackend]("ffn", 4, ffn, NewDropout(0, NewNoise(1), b), b)

	x := randn(tensor.Shape{1, 2, 4}, 9, b)
	out := r.Forward(x, &AttentionContext[testBackend]{})
	require.Equal(t, x.Shape(), out.Shape())
	assert.InDeltaSlice(t, x.Data(), out.Data(), 1e-6)
}
