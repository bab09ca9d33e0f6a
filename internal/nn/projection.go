package nn

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// NewTiedProjection creates the output projection d_model -> vocab_size
// whose weight is table's own Parameter, plus a separate bias.
//
// Because the Linear holds table.Weight rather than a copy, any update to
// the table is observed by both the lookup and the projection.
func NewTiedProjection[B tensor.Backend](name string, table *Embedding[B], backend B) *Linear[B] {
	return &Linear[B]{
		inFeatures:  table.EmbeddingDim,
		outFeatures: table.NumEmbeddings,
		weight:      table.Weight,
		bias:        NewParameter(join(name, "bias"), Zeros(tensor.Shape{table.NumEmbeddings}, backend)),
	}
}
