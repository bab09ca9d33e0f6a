package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// ReLU computes max(0, x).
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// Rsqrt computes 1/sqrt(x).
func (cpu *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, func(v float32) float32 {
		return float32(1 / math.Sqrt(float64(v)))
	})
}

// Softmax applies a max-shifted softmax over the last dimension.
//
// A row whose entries are all equal (including all filled with the same
// large negative value) becomes uniform rather than NaN.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("softmax: unsupported dtype %s", x.DType()))
	}
	result := tensor.MustRaw(x.Shape(), tensor.Float32, cpu.device)
	softmaxRows(result.AsFloat32(), x.AsFloat32(), x.Shape().Last())
	return result
}

func softmaxRows(out, in []float32, width int) {
	for start := 0; start < len(in); start += width {
		row := in[start : start+width]
		dst := out[start : start+width]

		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}

		var sum float64
		for i, v := range row {
			e := math.Exp(float64(v - maxVal))
			dst[i] = float32(e)
			sum += e
		}
		inv := float32(1 / sum)
		for i := range dst {
			dst[i] *= inv
		}
	}
}

// MaskedFill writes value wherever the broadcast mask is true.
func (cpu *CPUBackend) MaskedFill(x, mask *tensor.RawTensor, value float32) *tensor.RawTensor {
	if mask.DType() != tensor.Bool {
		panic(fmt.Sprintf("masked_fill: mask must be bool, got %s", mask.DType()))
	}
	outShape, _, err := tensor.BroadcastShapes(x.Shape(), mask.Shape())
	if err != nil || !outShape.Equal(x.Shape()) {
		panic(fmt.Sprintf("masked_fill: mask %v does not broadcast to %v", mask.Shape(), x.Shape()))
	}

	result := x.Clone()
	out := result.AsFloat32()
	m := mask.AsBool()
	offsets := tensor.BroadcastOffsets(mask.Shape(), x.Shape())
	for i, off := range offsets {
		if m[off] {
			out[i] = value
		}
	}
	return result
}

// And computes the logical AND of two bool tensors with broadcasting.
func (cpu *CPUBackend) And(a, b *tensor.RawTensor) *tensor.RawTensor {
	if a.DType() != tensor.Bool || b.DType() != tensor.Bool {
		panic(fmt.Sprintf("and: operands must be bool, got %s and %s", a.DType(), b.DType()))
	}
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("and: %v", err))
	}

	result := tensor.MustRaw(outShape, tensor.Bool, cpu.device)
	out := result.AsBool()
	aData, bData := a.AsBool(), b.AsBool()
	aOff := tensor.BroadcastOffsets(a.Shape(), outShape)
	bOff := tensor.BroadcastOffsets(b.Shape(), outShape)
	for i := range out {
		out[i] = aData[aOff[i]] && bData[bOff[i]]
	}
	return result
}

// Not computes the logical NOT of a bool tensor.
func (cpu *CPUBackend) Not(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Bool {
		panic(fmt.Sprintf("not: operand must be bool, got %s", x.DType()))
	}
	result := tensor.MustRaw(x.Shape(), tensor.Bool, cpu.device)
	out := result.AsBool()
	for i, v := range x.AsBool() {
		out[i] = !v
	}
	return result
}
