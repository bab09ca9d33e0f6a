package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// MaskFill is the score written at masked positions before softmax.
// It is finite so that a fully masked row yields a uniform distribution
// instead of NaN.
const MaskFill float32 = -1e9

// ScaledDotProductAttention computes softmax(Q @ K^T / sqrt(d_k)) @ V.
//
// Shapes:
//   - q: [batch, heads, seq_q, head_dim]
//   - k, v: [batch, heads, seq_k, head_dim]
//   - mask: bool, broadcastable to [batch, heads, seq_q, seq_k]; false
//     marks a key position the query may not see. nil means no mask.
//
// Returns the output [batch, heads, seq_q, head_dim] and the attention
// weights before dropout. dropout may be nil.
func ScaledDotProductAttention[B tensor.Backend](
	q, k, v *tensor.Tensor[float32, B],
	mask *tensor.Tensor[bool, B],
	dropout *Dropout[B],
) (output, weights *tensor.Tensor[float32, B]) {
	qShape := q.Shape()
	if len(qShape) != 4 {
		panic(fmt.Sprintf("ScaledDotProductAttention: expected 4D query, got %v", qShape))
	}
	headDim := qShape[3]

	nd := len(k.Shape())
	scores := q.BatchMatMul(k.Transpose(0, 1, nd-1, nd-2)).
		MulScalar(float32(1 / math.Sqrt(float64(headDim))))

	if mask != nil {
		scores = scores.MaskedFill(mask.Not(), MaskFill)
	}

	weights = scores.Softmax()
	attended := weights
	if dropout != nil {
		attended = dropout.Forward(weights)
	}
	return attended.BatchMatMul(v), weights
}
