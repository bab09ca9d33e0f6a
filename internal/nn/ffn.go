package nn

import (
	"math/rand"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// FeedForward is the position-wise feed-forward block:
//
//	FFN(x) = Linear2(Dropout(ReLU(Linear1(x))))
//
// Linear1 expands d_model to d_ff and Linear2 contracts back.
type FeedForward[B tensor.Backend] struct {
	Linear1 *Linear[B]
	Linear2 *Linear[B]
	dropout *Dropout[B]
}

// NewFeedForward creates a feed-forward block.
func NewFeedForward[B tensor.Backend](name string, modelDim, ffDim int, dropout *Dropout[B], rng *rand.Rand, backend B) *FeedForward[B] {
	return &FeedForward[B]{
		Linear1: NewLinear(join(name, "linear1"), modelDim, ffDim, true, rng, backend),
		Linear2: NewLinear(join(name, "linear2"), ffDim, modelDim, true, rng, backend),
		dropout: dropout,
	}
}

// Forward applies the block independently at every position of x.
func (f *FeedForward[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return f.Linear2.Forward(f.dropout.Forward(f.Linear1.Forward(x).ReLU()))
}

// Parameters returns the parameters of both linear layers.
func (f *FeedForward[B]) Parameters() []*Parameter[B] {
	return append(f.Linear1.Parameters(), f.Linear2.Parameters()...)
}
