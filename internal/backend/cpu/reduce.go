package cpu

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Sum reduces all elements to a scalar.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	var sum float64
	for _, v := range x.AsFloat32() {
		sum += float64(v)
	}
	result := tensor.MustRaw(tensor.Shape{}, tensor.Float32, cpu.device)
	result.AsFloat32()[0] = float32(sum)
	return result
}

// SumDim sums along dim.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim(x, dim, keepDim, false)
}

// MeanDim averages along dim.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim(x, dim, keepDim, true)
}

func (cpu *CPUBackend) reduceDim(x *tensor.RawTensor, dim int, keepDim, mean bool) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("reduce: unsupported dtype %s", x.DType()))
	}
	shape := x.Shape()
	dim = shape.Axis(dim)
	outer, size, inner := splitAt(shape, dim)

	result := tensor.MustRaw(reducedShape(shape, dim, keepDim), tensor.Float32, cpu.device)
	out, in := result.AsFloat32(), x.AsFloat32()

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			var sum float64
			for s := 0; s < size; s++ {
				sum += float64(in[(o*size+s)*inner+i])
			}
			if mean {
				sum /= float64(size)
			}
			out[o*inner+i] = float32(sum)
		}
	}
	return result
}

// Argmax returns the int32 index of the maximum along dim (first on ties).
// The reduced dimension is removed.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	dim = shape.Axis(dim)
	outer, size, inner := splitAt(shape, dim)

	result := tensor.MustRaw(reducedShape(shape, dim, false), tensor.Int32, cpu.device)
	out, in := result.AsInt32(), x.AsFloat32()

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			best := 0
			bestVal := in[o*size*inner+i]
			for s := 1; s < size; s++ {
				if v := in[(o*size+s)*inner+i]; v > bestVal {
					best, bestVal = s, v
				}
			}
			out[o*inner+i] = int32(best) //nolint:gosec // bounded by dimension size
		}
	}
	return result
}

// splitAt factors shape into (product before dim, shape[dim], product after dim).
func splitAt(shape tensor.Shape, dim int) (outer, size, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, shape[dim], inner
}

func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	out := make(tensor.Shape, 0, len(shape))
	for i, d := range shape {
		switch {
		case i != dim:
			out = append(out, d)
		case keepDim:
			out = append(out, 1)
		}
	}
	return out
}
