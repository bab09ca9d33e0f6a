package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// ReLUOp represents output = max(0, x).
//
// Backward pass:
//   - d(ReLU(x))/dx = 1 if x > 0, else 0
type ReLUOp struct{ node }

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{newNode(output, input)}
}

// Backward zeroes the gradient where the input was not positive.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := outputGrad.Clone()
	g := grad.AsFloat32()
	for i, v := range op.inputs[0].AsFloat32() {
		if v <= 0 {
			g[i] = 0
		}
	}
	return []*tensor.RawTensor{grad}
}

// RsqrtOp represents output = 1/sqrt(x).
//
// Backward pass:
//   - d(x^-1/2)/dx = -1/2 * x^-3/2 = -1/2 * output^3
type RsqrtOp struct{ node }

// NewRsqrtOp creates a new RsqrtOp.
func NewRsqrtOp(input, output *tensor.RawTensor) *RsqrtOp {
	return &RsqrtOp{newNode(output, input)}
}

// Backward computes grad * -0.5 * output^3.
func (op *RsqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	y := op.output
	cube := backend.Mul(backend.Mul(y, y), y)
	return []*tensor.RawTensor{backend.Mul(outputGrad, backend.MulScalar(cube, -0.5))}
}

// SoftmaxOp represents a softmax over the last dimension.
//
// Backward pass:
//
//	grad_x = y * (grad - sum(grad * y, -1))
type SoftmaxOp struct{ node }

// NewSoftmaxOp creates a new SoftmaxOp.
func NewSoftmaxOp(input, output *tensor.RawTensor) *SoftmaxOp {
	return &SoftmaxOp{newNode(output, input)}
}

// Backward computes the softmax vector-Jacobian product row by row.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	y := op.output
	dot := backend.SumDim(backend.Mul(outputGrad, y), -1, true)
	return []*tensor.RawTensor{backend.Mul(y, backend.Sub(outputGrad, dot))}
}

// MaskedFillOp represents writing a constant wherever a bool mask is true.
// Only the filled tensor receives a gradient; the mask is not differentiable.
type MaskedFillOp struct {
	node
	mask *tensor.RawTensor
}

// NewMaskedFillOp creates a new MaskedFillOp.
func NewMaskedFillOp(input, mask, output *tensor.RawTensor) *MaskedFillOp {
	return &MaskedFillOp{newNode(output, input), mask}
}

// Backward zeroes the gradient at filled positions.
func (op *MaskedFillOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MaskedFill(outputGrad, op.mask, 0)}
}
