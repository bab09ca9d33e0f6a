package ops

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// reduceBroadcast sums grad down to targetShape, undoing NumPy broadcasting.
//
//	Forward:  a[3,1] + b[3,4] -> c[3,4]
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
//
// The result never aliases grad, so callers may hand it to code that keeps it.
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}
	if targetShape.NumElements() == 1 {
		return backend.Reshape(backend.Sum(grad), targetShape)
	}

	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}
	for i, dim := range targetShape {
		if dim == 1 && result.Shape()[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}
	if result == grad {
		return grad.Clone()
	}
	return backend.Reshape(result, targetShape)
}

// swapLastTwo returns the permutation that exchanges the two innermost axes.
func swapLastTwo(ndim int) []int {
	axes := make([]int, ndim)
	for i := range axes {
		axes[i] = i
	}
	axes[ndim-1], axes[ndim-2] = axes[ndim-2], axes[ndim-1]
	return axes
}
