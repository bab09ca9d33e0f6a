package nn

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// AttentionContext carries what a sublayer may read besides its input:
// the self-attention mask, and for cross-attention the encoder memory and
// its padding mask.
type AttentionContext[B tensor.Backend] struct {
	SelfMask   *tensor.Tensor[bool, B]
	Memory     *tensor.Tensor[float32, B]
	MemoryMask *tensor.Tensor[bool, B]
}

// Sublayer is the closed set of blocks a Residual can wrap:
// SelfAttention, CrossAttention and *FeedForward. The unexported method
// keeps other packages from adding kinds.
type Sublayer[B tensor.Backend] interface {
	apply(x *tensor.Tensor[float32, B], ctx *AttentionContext[B]) *tensor.Tensor[float32, B]
	Parameters() []*Parameter[B]
}

// SelfAttention attends x to itself under ctx.SelfMask.
type SelfAttention[B tensor.Backend] struct {
	*MultiHeadAttention[B]
}

func (s SelfAttention[B]) apply(x *tensor.Tensor[float32, B], ctx *AttentionContext[B]) *tensor.Tensor[float32, B] {
	return s.Forward(x, x, x, ctx.SelfMask)
}

// CrossAttention attends x (queries) to ctx.Memory under ctx.MemoryMask.
type CrossAttention[B tensor.Backend] struct {
	*MultiHeadAttention[B]
}

func (c CrossAttention[B]) apply(x *tensor.Tensor[float32, B], ctx *AttentionContext[B]) *tensor.Tensor[float32, B] {
	return c.Forward(x, ctx.Memory, ctx.Memory, ctx.MemoryMask)
}

func (f *FeedForward[B]) apply(x *tensor.Tensor[float32, B], _ *AttentionContext[B]) *tensor.Tensor[float32, B] {
	return f.Forward(x)
}

// Residual is the pre-norm residual wrapper:
//
//	output = x + Dropout(Sublayer(LayerNorm(x)))
type Residual[B tensor.Backend] struct {
	Norm    *LayerNorm[B]
	Sub     Sublayer[B]
	dropout *Dropout[B]
}

// NewResidual wraps sub with its own LayerNorm.
func NewResidual[B tensor.Backend](name string, modelDim int, sub Sublayer[B], dropout *Dropout[B], backend B) *Residual[B] {
	return &Residual[B]{
		Norm:    NewLayerNorm(join(name, "norm"), modelDim, 1e-5, backend),
		Sub:     sub,
		dropout: dropout,
	}
}

// Forward computes x + Dropout(Sub(Norm(x))).
func (r *Residual[B]) Forward(x *tensor.Tensor[float32, B], ctx *AttentionContext[B]) *tensor.Tensor[float32, B] {
	return x.Add(r.dropout.Forward(r.Sub.apply(r.Norm.Forward(x), ctx)))
}

// Parameters returns the norm's and the sublayer's parameters.
func (r *Residual[B]) Parameters() []*Parameter[B] {
	return append(r.Norm.Parameters(), r.Sub.Parameters()...)
}
