package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// MatMulOp represents output = a @ b for 2D matrices.
//
// Backward pass:
//   - grad_a = grad @ b^T
//   - grad_b = a^T @ grad
type MatMulOp struct{ node }

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{newNode(output, a, b)}
}

// Backward computes input gradients for matrix multiplication.
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.MatMul(outputGrad, backend.Transpose(b, 1, 0)),
		backend.MatMul(backend.Transpose(a, 1, 0), outputGrad),
	}
}

// BatchMatMulOp represents output = a @ b over shared batch dimensions.
type BatchMatMulOp struct{ node }

// NewBatchMatMulOp creates a new BatchMatMulOp.
func NewBatchMatMulOp(a, b, output *tensor.RawTensor) *BatchMatMulOp {
	return &BatchMatMulOp{newNode(output, a, b)}
}

// Backward computes input gradients, transposing only the matrix axes.
func (op *BatchMatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	axes := swapLastTwo(len(a.Shape()))
	return []*tensor.RawTensor{
		backend.BatchMatMul(outputGrad, backend.Transpose(b, axes...)),
		backend.BatchMatMul(backend.Transpose(a, axes...), outputGrad),
	}
}
