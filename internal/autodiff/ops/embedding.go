package ops

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// EmbeddingOp represents a row lookup into a [V, D] weight table.
// Indices are not differentiable, so the weight is the only input.
type EmbeddingOp struct {
	node
	indices *tensor.RawTensor
}

// NewEmbeddingOp creates a new EmbeddingOp.
func NewEmbeddingOp(weight, indices, output *tensor.RawTensor) *EmbeddingOp {
	return &EmbeddingOp{newNode(output, weight), indices}
}

// Backward scatter-adds each output row gradient into its source row.
// Rows looked up several times accumulate.
func (op *EmbeddingOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	weight := op.inputs[0]
	dim := weight.Shape()[1]

	grad := tensor.MustRaw(weight.Shape(), tensor.Float32, backend.Device())
	g, out := grad.AsFloat32(), outputGrad.AsFloat32()
	for i, id := range op.indices.AsInt32() {
		row := g[int(id)*dim : (int(id)+1)*dim]
		src := out[i*dim : (i+1)*dim]
		for j := range row {
			row[j] += src[j]
		}
	}
	return []*tensor.RawTensor{grad}
}
