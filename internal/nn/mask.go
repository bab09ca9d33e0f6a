package nn

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// PaddingMask marks real (non-PAD) key positions of ids [batch, seq].
// The result has shape [batch, 1, 1, seq] so it broadcasts over heads and
// query positions.
func PaddingMask[B tensor.Backend](ids *tensor.Tensor[int32, B], pad int32) *tensor.Tensor[bool, B] {
	shape := ids.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("PaddingMask: expected [batch, seq] ids, got %v", shape))
	}

	mask := tensor.Zeros[bool](tensor.Shape{shape[0], 1, 1, shape[1]}, ids.Backend())
	m := mask.Data()
	for i, id := range ids.Data() {
		m[i] = id != pad
	}
	return mask
}

// CausalMask returns a [1, 1, n, n] lower-triangular mask that is true
// where key position <= query position.
func CausalMask[B tensor.Backend](n int, backend B) *tensor.Tensor[bool, B] {
	mask := tensor.Zeros[bool](tensor.Shape{1, 1, n, n}, backend)
	m := mask.Data()
	for q := 0; q < n; q++ {
		for k := 0; k <= q; k++ {
			m[q*n+k] = true
		}
	}
	return mask
}

// TargetMask combines the padding and causal masks of target ids
// [batch, seq] into a [batch, 1, seq, seq] mask.
func TargetMask[B tensor.Backend](ids *tensor.Tensor[int32, B], pad int32) *tensor.Tensor[bool, B] {
	return PaddingMask(ids, pad).And(CausalMask(ids.Shape()[1], ids.Backend()))
}
