package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// MultiHeadAttention implements the multi-head attention mechanism.
//
// Architecture:
//
//	MHA(Q, K, V) = Concat(head_1, ..., head_h) * W_O
//	head_i = SDPA(Q*W_Q_i, K*W_K_i, V*W_V_i)
//
// All four projections are bias-free. Dropout is applied to the attention
// weights, not to the output.
//
// Example:
//
//	mha := nn.NewMultiHeadAttention("self_attn", 512, 8, dropout, rng, backend)
//	out := mha.Forward(x, x, x, mask)        // self-attention
//	out := mha.Forward(y, mem, mem, srcMask) // cross-attention
type MultiHeadAttention[B tensor.Backend] struct {
	WQ       *Linear[B]
	WK       *Linear[B]
	WV       *Linear[B]
	WO       *Linear[B]
	NumHeads int
	HeadDim  int
	EmbedDim int
	dropout  *Dropout[B]
}

// NewMultiHeadAttention creates a multi-head attention module.
// Panics if embedDim is not divisible by numHeads.
func NewMultiHeadAttention[B tensor.Backend](
	name string,
	embedDim, numHeads int,
	dropout *Dropout[B],
	rng *rand.Rand,
	backend B,
) *MultiHeadAttention[B] {
	if numHeads <= 0 || embedDim%numHeads != 0 {
		panic(fmt.Sprintf("MultiHeadAttention: embed_dim (%d) must be divisible by num_heads (%d)", embedDim, numHeads))
	}

	return &MultiHeadAttention[B]{
		WQ:       NewLinear(join(name, "wq"), embedDim, embedDim, false, rng, backend),
		WK:       NewLinear(join(name, "wk"), embedDim, embedDim, false, rng, backend),
		WV:       NewLinear(join(name, "wv"), embedDim, embedDim, false, rng, backend),
		WO:       NewLinear(join(name, "wo"), embedDim, embedDim, false, rng, backend),
		NumHeads: numHeads,
		HeadDim:  embedDim / numHeads,
		EmbedDim: embedDim,
		dropout:  dropout,
	}
}

// Forward computes multi-head attention.
//
// Args:
//   - query: [batch, seq_q, embed_dim]
//   - key, value: [batch, seq_k, embed_dim]
//   - mask: bool, broadcastable to [batch, heads, seq_q, seq_k], or nil
//
// Returns [batch, seq_q, embed_dim], the same shape as query.
func (m *MultiHeadAttention[B]) Forward(
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[bool, B],
) *tensor.Tensor[float32, B] {
	out, _ := m.ForwardWithWeights(query, key, value, mask)
	return out
}

// ForwardWithWeights is Forward that also returns the post-softmax
// attention weights [batch, heads, seq_q, seq_k] before dropout.
func (m *MultiHeadAttention[B]) ForwardWithWeights(
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[bool, B],
) (output, weights *tensor.Tensor[float32, B]) {
	qShape := query.Shape()
	if len(qShape) != 3 || qShape.Last() != m.EmbedDim {
		panic(fmt.Errorf("MultiHeadAttention: query shape %v, embed_dim %d: %w", qShape, m.EmbedDim, ErrDimMismatch))
	}
	batch, seqQ := qShape[0], qShape[1]
	seqK := key.Shape()[1]

	q := m.splitHeads(m.WQ.Forward(query), batch, seqQ)
	k := m.splitHeads(m.WK.Forward(key), batch, seqK)
	v := m.splitHeads(m.WV.Forward(value), batch, seqK)

	attended, weights := ScaledDotProductAttention(q, k, v, mask, m.dropout)

	merged := attended.Transpose(0, 2, 1, 3).Reshape(batch, seqQ, m.EmbedDim)
	return m.WO.Forward(merged), weights
}

// splitHeads turns [batch, seq, embed_dim] into [batch, heads, seq, head_dim].
func (m *MultiHeadAttention[B]) splitHeads(x *tensor.Tensor[float32, B], batch, seq int) *tensor.Tensor[float32, B] {
	return x.Reshape(batch, seq, m.NumHeads, m.HeadDim).Transpose(0, 2, 1, 3)
}

// Parameters returns the four projection weights.
func (m *MultiHeadAttention[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 4)
	params = append(params, m.WQ.Parameters()...)
	params = append(params, m.WK.Parameters()...)
	params = append(params, m.WV.Parameters()...)
	params = append(params, m.WO.Parameters()...)
	return params
}
