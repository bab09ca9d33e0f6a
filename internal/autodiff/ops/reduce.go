package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// SumOp represents the sum of all elements.
type SumOp struct{ node }

// NewSumOp creates a new SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{newNode(output, input)}
}

// Backward broadcasts the scalar gradient to the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Expand(outputGrad, op.inputs[0].Shape())}
}

// SumDimOp represents a sum (or mean) along one dimension.
type SumDimOp struct {
	node
	dim     int
	keepDim bool
	mean    bool
}

// NewSumDimOp creates a new SumDimOp.
func NewSumDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{newNode(output, input), input.Shape().Axis(dim), keepDim, false}
}

// NewMeanDimOp creates a SumDimOp that divides by the reduced size.
func NewMeanDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{newNode(output, input), input.Shape().Axis(dim), keepDim, true}
}

// Backward spreads the gradient evenly over the reduced dimension.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inShape := op.inputs[0].Shape()

	grad := outputGrad
	if !op.keepDim {
		kept := inShape.Clone()
		kept[op.dim] = 1
		grad = backend.Reshape(grad, kept)
	}
	grad = backend.Expand(grad, inShape)
	if op.mean {
		grad = backend.MulScalar(grad, 1/float32(inShape[op.dim]))
	}
	return []*tensor.RawTensor{grad}
}
