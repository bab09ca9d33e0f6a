package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// EncoderLayer is one encoder block:
// residual(self-attention) followed by residual(feed-forward).
type EncoderLayer[B tensor.Backend] struct {
	SelfAttn *Residual[B]
	FFN      *Residual[B]
}

// NewEncoderLayer creates one encoder block.
func NewEncoderLayer[B tensor.Backend](name string, cfg Config, dropout *Dropout[B], rng *rand.Rand, backend B) *EncoderLayer[B] {
	attn := NewMultiHeadAttention(join(name, "self_attn"), cfg.ModelDim, cfg.NumHeads, dropout, rng, backend)
	ffn := NewFeedForward(join(name, "ffn"), cfg.ModelDim, cfg.FFDim, dropout, rng, backend)
	return &EncoderLayer[B]{
		SelfAttn: NewResidual[B](join(name, "self_attn"), cfg.ModelDim, SelfAttention[B]{attn}, dropout, backend),
		FFN:      NewResidual[B](join(name, "ffn"), cfg.ModelDim, ffn, dropout, backend),
	}
}

// Forward runs the block over x with the source padding mask.
func (l *EncoderLayer[B]) Forward(x *tensor.Tensor[float32, B], srcMask *tensor.Tensor[bool, B]) *tensor.Tensor[float32, B] {
	ctx := &AttentionContext[B]{SelfMask: srcMask}
	return l.FFN.Forward(l.SelfAttn.Forward(x, ctx), ctx)
}

// Parameters returns all parameters of the block.
func (l *EncoderLayer[B]) Parameters() []*Parameter[B] {
	return append(l.SelfAttn.Parameters(), l.FFN.Parameters()...)
}

// Encoder is a stack of encoder blocks followed by a final LayerNorm.
type Encoder[B tensor.Backend] struct {
	Layers []*EncoderLayer[B]
	Norm   *LayerNorm[B]
}

// NewEncoder creates cfg.NumLayers encoder blocks.
func NewEncoder[B tensor.Backend](name string, cfg Config, dropout *Dropout[B], rng *rand.Rand, backend B) *Encoder[B] {
	layers := make([]*EncoderLayer[B], cfg.NumLayers)
	for i := range layers {
		layers[i] = NewEncoderLayer(join(name, fmt.Sprintf("layers.%d", i)), cfg, dropout, rng, backend)
	}
	return &Encoder[B]{
		Layers: layers,
		Norm:   NewLayerNorm(join(name, "norm"), cfg.ModelDim, 1e-5, backend),
	}
}

// Forward encodes x [batch, src_len, d_model] into memory of the same shape.
func (e *Encoder[B]) Forward(x *tensor.Tensor[float32, B], srcMask *tensor.Tensor[bool, B]) *tensor.Tensor[float32, B] {
	for _, layer := range e.Layers {
		x = layer.Forward(x, srcMask)
	}
	return e.Norm.Forward(x)
}

// Parameters returns all parameters of the stack.
func (e *Encoder[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, layer := range e.Layers {
		params = append(params, layer.Parameters()...)
	}
	return append(params, e.Norm.Parameters()...)
}
