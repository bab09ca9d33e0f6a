package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// DecoderLayer is one decoder block: residual(masked self-attention),
// residual(cross-attention over encoder memory), residual(feed-forward).
// The two attention sublayers own separate weights.
type DecoderLayer[B tensor.Backend] struct {
	SelfAttn  *Residual[B]
	CrossAttn *Residual[B]
	FFN       *Residual[B]
}

// NewDecoderLayer creates one decoder block.
func NewDecoderLayer[B tensor.Backend](name string, cfg Config, dropout *Dropout[B], rng *rand.Rand, backend B) *DecoderLayer[B] {
	self := NewMultiHeadAttention(join(name, "self_attn"), cfg.ModelDim, cfg.NumHeads, dropout, rng, backend)
	cross := NewMultiHeadAttention(join(name, "cross_attn"), cfg.ModelDim, cfg.NumHeads, dropout, rng, backend)
	ffn := NewFeedForward(join(name, "ffn"), cfg.ModelDim, cfg.FFDim, dropout, rng, backend)
	return &DecoderLayer[B]{
		SelfAttn:  NewResidual[B](join(name, "self_attn"), cfg.ModelDim, SelfAttention[B]{self}, dropout, backend),
		CrossAttn: NewResidual[B](join(name, "cross_attn"), cfg.ModelDim, CrossAttention[B]{cross}, dropout, backend),
		FFN:       NewResidual[B](join(name, "ffn"), cfg.ModelDim, ffn, dropout, backend),
	}
}

// Forward runs the block over x given encoder memory and both masks.
func (l *DecoderLayer[B]) Forward(
	x, memory *tensor.Tensor[float32, B],
	srcMask, tgtMask *tensor.Tensor[bool, B],
) *tensor.Tensor[float32, B] {
	ctx := &AttentionContext[B]{SelfMask: tgtMask, Memory: memory, MemoryMask: srcMask}
	x = l.SelfAttn.Forward(x, ctx)
	x = l.CrossAttn.Forward(x, ctx)
	return l.FFN.Forward(x, ctx)
}

// Parameters returns all parameters of the block.
func (l *DecoderLayer[B]) Parameters() []*Parameter[B] {
	params := append(l.SelfAttn.Parameters(), l.CrossAttn.Parameters()...)
	return append(params, l.FFN.Parameters()...)
}

// Decoder is a stack of decoder blocks followed by a final LayerNorm.
type Decoder[B tensor.Backend] struct {
	Layers []*DecoderLayer[B]
	Norm   *LayerNorm[B]
}

// NewDecoder creates cfg.NumLayers decoder blocks.
func NewDecoder[B tensor.Backend](name string, cfg Config, dropout *Dropout[B], rng *rand.Rand, backend B) *Decoder[B] {
	layers := make([]*DecoderLayer[B], cfg.NumLayers)
	for i := range layers {
		layers[i] = NewDecoderLayer(join(name, fmt.Sprintf("layers.%d", i)), cfg, dropout, rng, backend)
	}
	return &Decoder[B]{
		Layers: layers,
		Norm:   NewLayerNorm(join(name, "norm"), cfg.ModelDim, 1e-5, backend),
	}
}

// Forward decodes x [batch, tgt_len, d_model] against memory.
func (d *Decoder[B]) Forward(
	x, memory *tensor.Tensor[float32, B],
	srcMask, tgtMask *tensor.Tensor[bool, B],
) *tensor.Tensor[float32, B] {
	for _, layer := range d.Layers {
		x = layer.Forward(x, memory, srcMask, tgtMask)
	}
	return d.Norm.Forward(x)
}

// Parameters returns all parameters of the stack.
func (d *Decoder[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, layer := range d.Layers {
		params = append(params, layer.Parameters()...)
	}
	return append(params, d.Norm.Parameters()...)
}
