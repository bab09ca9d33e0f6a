package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Embedding is a lookup table that maps token ids to dense vectors.
//
// The table [num_embeddings, embedding_dim] is one Parameter. Source
// embedding, target embedding and the output projection all hold the same
// *Embedding, so the vocabulary weights exist exactly once.
//
// Example:
//
//	table := nn.NewEmbedding("shared_embedding", 12000, 512, rng, backend)
//	vectors := table.Forward(ids) // [batch, seq] -> [batch, seq, 512]
type Embedding[B tensor.Backend] struct {
	Weight        *Parameter[B]
	NumEmbeddings int
	EmbeddingDim  int
}

// NewEmbedding creates a Xavier-initialized embedding table.
func NewEmbedding[B tensor.Backend](name string, numEmbeddings, embeddingDim int, rng *rand.Rand, backend B) *Embedding[B] {
	if numEmbeddings <= 0 || embeddingDim <= 0 {
		panic(fmt.Sprintf("Embedding: sizes must be positive, got %d x %d", numEmbeddings, embeddingDim))
	}
	w := Xavier(numEmbeddings, embeddingDim, tensor.Shape{numEmbeddings, embeddingDim}, rng, backend)
	return &Embedding[B]{
		Weight:        NewParameter(join(name, "weight"), w),
		NumEmbeddings: numEmbeddings,
		EmbeddingDim:  embeddingDim,
	}
}

// Forward looks up ids of any shape, appending the embedding dimension.
// Panics if an id is outside [0, NumEmbeddings).
func (e *Embedding[B]) Forward(ids *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return tensor.Embedding(e.Weight.Tensor(), ids)
}

// Parameters returns [weight].
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.Weight}
}

// TokenEmbedding looks token ids up in a shared table and scales the
// result by sqrt(d_model). The scale is applied here and nowhere else.
type TokenEmbedding[B tensor.Backend] struct {
	table *Embedding[B]
	scale float32
}

// NewTokenEmbedding wraps table with the sqrt(embedding_dim) scale.
func NewTokenEmbedding[B tensor.Backend](table *Embedding[B]) *TokenEmbedding[B] {
	return &TokenEmbedding[B]{
		table: table,
		scale: float32(math.Sqrt(float64(table.EmbeddingDim))),
	}
}

// Forward returns lookup(ids) * sqrt(d_model).
func (t *TokenEmbedding[B]) Forward(ids *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return t.table.Forward(ids).MulScalar(t.scale)
}

// Table returns the underlying shared table.
func (t *TokenEmbedding[B]) Table() *Embedding[B] {
	return t.table
}

// Parameters returns the shared table's parameters.
func (t *TokenEmbedding[B]) Parameters() []*Parameter[B] {
	return t.table.Parameters()
}
