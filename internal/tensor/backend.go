package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Binary element-wise operations broadcast their operands following NumPy
// rules. Scalar arguments are float32 because every trainable quantity in
// the model is float32.
type Backend interface {
	// Element-wise binary operations
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul multiplies two 2D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// BatchMatMul multiplies the trailing two dimensions of tensors whose
	// leading (batch) dimensions are identical.
	// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
	// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Expand(x *RawTensor, shape Shape) *RawTensor // broadcast to shape

	// Scalar operations (element-wise with scalar)
	MulScalar(x *RawTensor, scalar float32) *RawTensor
	AddScalar(x *RawTensor, scalar float32) *RawTensor

	// Math operations (element-wise)
	Rsqrt(x *RawTensor) *RawTensor // reciprocal square root (1/sqrt(x))
	ReLU(x *RawTensor) *RawTensor  // max(0, x)

	// Softmax normalizes along the last dimension.
	Softmax(x *RawTensor) *RawTensor

	// MaskedFill replaces x elements where mask is true with value.
	// mask is a bool tensor broadcastable to x's shape.
	MaskedFill(x, mask *RawTensor, value float32) *RawTensor

	// Boolean operations (element-wise on bool tensors)
	And(a, b *RawTensor) *RawTensor // logical AND, broadcasting
	Not(x *RawTensor) *RawTensor    // logical NOT

	// Reduction operations
	Sum(x *RawTensor) *RawTensor                            // total sum (scalar result)
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor  // sum along dimension
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor // mean along dimension
	Argmax(x *RawTensor, dim int) *RawTensor                // int32 index of maximum along dimension

	// Embedding gathers rows of a [V, D] weight for int32 indices of any
	// shape, producing indices.Shape() + [D].
	Embedding(weight, indices *RawTensor) *RawTensor

	// LabelSmoothedCrossEntropy computes the mean smoothed cross-entropy of
	// logits [N, V] against int32 targets [N], ignoring rows whose target is
	// padID. Returns a scalar.
	LabelSmoothedCrossEntropy(logits, targets *RawTensor, smoothing float32, padID int32) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
