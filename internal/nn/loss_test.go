package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/seq2seq/internal/tensor"
)

func TestSmoothedTargets(t *testing.T) {
	const vocab, pad = 10, 0

	for target := int32(1); target < vocab; target++ {
		dist := SmoothedTargets(target, vocab, pad, 0.1)
		var sum float32
		for _, v := range dist {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
		assert.Equal(t, float32(0), dist[pad])
		assert.InDelta(t, 0.9, dist[target], 1e-7)
	}

	for _, v := range SmoothedTargets(pad, vocab, pad, 0.1) {
		assert.Equal(t, float32(0), v)
	}
}

func TestLabelSmoothedCrossEntropy_MatchesReference(t *testing.T) {
	b := newTestBackend()
	loss := NewLabelSmoothedCrossEntropy(0.1, 0, b)

	logitsData := []float32{
		0.5, 1.0, -0.3, 2.0, 0.1,
		1.5, -1.0, 0.7, 0.0, 0.2,
		3.0, 3.0, 3.0, 3.0, 3.0,
	}
	targetsData := []int32{3, 2, 0}
	logits := tensor.MustFromSlice(logitsData, tensor.Shape{1, 3, 5}, b)
	targets := tensor.MustFromSlice(targetsData, tensor.Shape{1, 3}, b)

	var want float64
	for row := 0; row < 2; row++ {
		r := logitsData[row*5 : (row+1)*5]
		var sum float64
		for _, v := range r {
			sum += math.Exp(float64(v))
		}
		q := SmoothedTargets(targetsData[row], 5, 0, 0.1)
		for j, v := range r {
			want -= float64(q[j]) * (float64(v) - math.Log(sum))
		}
	}
	want /= 2

	assert.InDelta(t, want, loss.Forward(logits, targets).Item(), 1e-5)
}
