package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/tensor"
)

func TestHeadDim(t *testing.T) {
	for _, tc := range []struct{ dim, heads int }{{8, 2}, {512, 8}, {768, 12}, {6, 3}, {4, 4}} {
		cfg := tinyConfig()
		cfg.ModelDim, cfg.NumHeads = tc.dim, tc.heads
		require.NoError(t, cfg.Validate())
		assert.Equal(t, tc.dim, cfg.HeadDim()*tc.heads)
	}

	cfg := tinyConfig()
	cfg.NumHeads = 3
	assert.Error(t, cfg.Validate())
}

func TestMultiHeadAttention_Panics(t *testing.T) {
	b := newTestBackend()
	noise := NewNoise(1)
	assert.Panics(t, func() {
		NewMultiHeadAttention("attn", 10, 3, NewDropout(0, noise, b), rand.New(rand.NewSource(1)), b)
	})
}

func TestMultiHeadAttention_Shapes(t *testing.T) {
	b := newTestBackend()
	mha := NewMultiHeadAttention("attn", 8, 2, NewDropout(0, NewNoise(1), b), rand.New(rand.NewSource(1)), b)

	tests := []struct {
		name       string
		seqQ, seqK int
	}{
		{"self-attention", 5, 5},
		{"cross-attention", 3, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := randn(tensor.Shape{2, tt.seqQ, 8}, 1, b)
			kv := randn(tensor.Shape{2, tt.seqK, 8}, 2, b)
			out, weights := mha.ForwardWithWeights(q, kv, kv, nil)
			assert.Equal(t, q.Shape(), out.Shape())
			assert.Equal(t, tensor.Shape{2, 2, tt.seqQ, tt.seqK}, weights.Shape())

			// Each query row is a probability distribution.
			w := weights.Data()
			for row := 0; row < len(w)/tt.seqK; row++ {
				var sum float32
				for _, v := range w[row*tt.seqK : (row+1)*tt.seqK] {
					sum += v
				}
				assert.InDelta(t, 1.0, sum, 1e-5)
			}
		})
	}
}

func TestMultiHeadAttention_PaddingMask(t *testing.T) {
	b := newTestBackend()
	mha := NewMultiHeadAttention("attn", 8, 2, NewDropout(0, NewNoise(1), b), rand.New(rand.NewSource(3)), b)

	// Row 0 has two PAD keys, row 1 has none.
	src := ids([]int32{5, 6, 0, 0, 4, 3, 2, 1}, tensor.Shape{2, 4}, b)
	mask := PaddingMask(src, 0)
	x := randn(tensor.Shape{2, 4, 8}, 4, b)

	_, weights := mha.ForwardWithWeights(x, x, x, mask)
	w := weights.Data()
	for h := 0; h < 2; h++ {
		for q := 0; q < 4; q++ {
			base := ((0*2+h)*4 + q) * 4
			assert.Less(t, w[base+2], float32(1e-6))
			assert.Less(t, w[base+3], float32(1e-6))
		}
	}
}

func TestMultiHeadAttention_CausalMaskExactZero(t *testing.T) {
	b := newTestBackend()
	mha := NewMultiHeadAttention("attn", 8, 2, NewDropout(0, NewNoise(1), b), rand.New(rand.NewSource(5)), b)

	const n = 4
	x := randn(tensor.Shape{1, n, 8}, 6, b)
	_, weights := mha.ForwardWithWeights(x, x, x, CausalMask(n, b))

	w := weights.Data()
	for h := 0; h < 2; h++ {
		for q := 0; q < n; q++ {
			for k := q + 1; k < n; k++ {
				assert.Equal(t, float32(0), w[(h*n+q)*n+k], "head %d query %d key %d", h, q, k)
			}
		}
	}
}

func TestScaledDotProductAttention_FullyMaskedRowIsUniform(t *testing.T) {
	b := newTestBackend()
	q := randn(tensor.Shape{1, 1, 2, 4}, 7, b)
	k := randn(tensor.Shape{1, 1, 3, 4}, 8, b)
	mask := tensor.Zeros[bool](tensor.Shape{1, 1, 1, 3}, b)

	out, weights := ScaledDotProductAttention(q, k, k, mask, nil)
	for _, v := range weights.Data() {
		assert.InDelta(t, 1.0/3.0, v, 1e-6)
	}
	for _, v := range out.Data() {
		assert.False(t, math.IsNaN(float64(v)), "NaN in output")
	}
}
