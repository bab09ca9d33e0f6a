package nn

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// LayerNorm applies Layer Normalization over the last dimension.
//
// Formula: Y = gamma * (X - mean(X)) / sqrt(var(X) + eps) + beta
//
// The variance is the biased (population) variance. The forward pass is
// composed from backend primitives, so gradients come from autodiff.
type LayerNorm[B tensor.Backend] struct {
	Gamma   *Parameter[B] // learnable scale [d_model]
	Beta    *Parameter[B] // learnable shift [d_model]
	Epsilon float32
}

// NewLayerNorm creates a new LayerNorm with gamma = 1 and beta = 0.
func NewLayerNorm[B tensor.Backend](name string, normalizedShape int, epsilon float32, backend B) *LayerNorm[B] {
	return &LayerNorm[B]{
		Gamma:   NewParameter(join(name, "gamma"), Ones(tensor.Shape{normalizedShape}, backend)),
		Beta:    NewParameter(join(name, "beta"), Zeros(tensor.Shape{normalizedShape}, backend)),
		Epsilon: epsilon,
	}
}

// Forward normalizes x over its last dimension.
func (l *LayerNorm[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	centered := x.Sub(x.MeanDim(-1, true))
	variance := centered.Mul(centered).MeanDim(-1, true)
	normalized := centered.Mul(variance.AddScalar(l.Epsilon).Rsqrt())
	return normalized.Mul(l.Gamma.Tensor()).Add(l.Beta.Tensor())
}

// Parameters returns [gamma, beta].
func (l *LayerNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.Gamma, l.Beta}
}
