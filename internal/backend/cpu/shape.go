package cpu

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Reshape returns a view of t with newShape. No data is copied.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if newShape.NumElements() != t.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			t.Shape(), t.NumElements(), newShape, newShape.NumElements()))
	}
	return t.View(newShape)
}

// Transpose permutes the dimensions of t. With no axes, all dimensions
// are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	nd := len(shape)
	if len(axes) == 0 {
		axes = make([]int, nd)
		for i := range axes {
			axes[i] = nd - 1 - i
		}
	}
	if len(axes) != nd {
		panic(fmt.Sprintf("transpose: got %d axes for %dD tensor", len(axes), nd))
	}

	seen := make([]bool, nd)
	outShape := make(tensor.Shape, nd)
	for i, ax := range axes {
		if ax < 0 || ax >= nd || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid permutation %v", axes))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
	}

	// Strides of the source read in output dimension order.
	inStrides := t.Strides()
	permStrides := make([]int, nd)
	for i, ax := range axes {
		permStrides[i] = inStrides[ax]
	}

	result := tensor.MustRaw(outShape, t.DType(), cpu.device)
	gatherElements(result, t, permutedOffsets(outShape, permStrides))
	return result
}

// Expand broadcasts x to shape, materializing the result.
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	outShape, _, err := tensor.BroadcastShapes(x.Shape(), shape)
	if err != nil || !outShape.Equal(shape) {
		panic(fmt.Sprintf("expand: cannot expand %v to %v", x.Shape(), shape))
	}

	result := tensor.MustRaw(shape, x.DType(), cpu.device)
	gatherElements(result, x, tensor.BroadcastOffsets(x.Shape(), shape))
	return result
}

// permutedOffsets walks outShape in row-major order and returns the source
// offset for each position given per-dimension source strides.
func permutedOffsets(outShape tensor.Shape, strides []int) []int {
	nd := len(outShape)
	n := outShape.NumElements()
	offsets := make([]int, n)
	idx := make([]int, nd)
	off := 0
	for flat := 0; flat < n; flat++ {
		offsets[flat] = off
		for d := nd - 1; d >= 0; d-- {
			idx[d]++
			off += strides[d]
			if idx[d] < outShape[d] {
				break
			}
			off -= idx[d] * strides[d]
			idx[d] = 0
		}
	}
	return offsets
}

// gatherElements sets dst[i] = src[offsets[i]] for any dtype.
func gatherElements(dst, src *tensor.RawTensor, offsets []int) {
	switch src.DType() {
	case tensor.Float32:
		d, s := dst.AsFloat32(), src.AsFloat32()
		for i, off := range offsets {
			d[i] = s[off]
		}
	case tensor.Int32:
		d, s := dst.AsInt32(), src.AsInt32()
		for i, off := range offsets {
			d[i] = s[off]
		}
	case tensor.Bool:
		d, s := dst.AsBool(), src.AsBool()
		for i, off := range offsets {
			d[i] = s[off]
		}
	default:
		panic(fmt.Sprintf("unsupported dtype %s", src.DType()))
	}
}
