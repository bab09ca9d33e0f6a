package optim

import (
	"math"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// ClipGradNorm rescales the gradients of params so that their global L2
// norm is at most maxNorm, and returns the norm before clipping.
//
// Clipped gradients are written as new tensors into grads. The tensors
// returned by autodiff may share storage with each other and are never
// modified.
func ClipGradNorm[B tensor.Backend](params []*nn.Parameter[B], grads Gradients, maxNorm float32) float32 {
	var sumSq float64
	for _, p := range params {
		g := getGradient(p, grads)
		if g == nil {
			continue
		}
		for _, v := range g.AsFloat32() {
			sumSq += float64(v) * float64(v)
		}
	}
	norm := float32(math.Sqrt(sumSq))
	if maxNorm <= 0 || norm <= maxNorm {
		return norm
	}

	scale := maxNorm / (norm + 1e-6)
	for _, p := range params {
		key := p.Tensor().Raw()
		g := grads[key]
		if g == nil {
			continue
		}
		clipped := g.Clone()
		data := clipped.AsFloat32()
		for i := range data {
			data[i] *= scale
		}
		grads[key] = clipped
	}
	return norm
}
