// Package ops defines the differentiable operations recorded on the gradient tape.
//
// Each operation keeps references to its inputs and output from the forward
// pass and turns an output gradient into input gradients:
//   - Add, Sub, Mul, Div: element-wise with broadcast-aware reduction
//   - MatMul, BatchMatMul: d(A@B)/dA = grad@B^T, d(A@B)/dB = A^T@grad
//   - Reshape, Transpose, Expand: route gradients back to the source layout
//   - ReLU, Rsqrt, Softmax, MaskedFill: element-wise and row-wise activations
//   - Sum, SumDim, MeanDim: spread the gradient over the reduced elements
//   - Embedding: scatter-add into the looked-up rows
//   - LabelSmoothedCrossEntropy: fused (softmax - target) gradient
package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// The returned slice is aligned with Inputs(); a nil entry means no
	// gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// node holds the bookkeeping shared by every operation.
type node struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns the input tensors.
func (n node) Inputs() []*tensor.RawTensor {
	return n.inputs
}

// Output returns the output tensor.
func (n node) Output() *tensor.RawTensor {
	return n.output
}

func newNode(output *tensor.RawTensor, inputs ...*tensor.RawTensor) node {
	return node{inputs: inputs, output: output}
}
