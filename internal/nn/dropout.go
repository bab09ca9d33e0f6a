package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Noise is the random source and train/eval switch shared by every Dropout
// of one model. It is not safe for concurrent forward passes.
type Noise struct {
	rng      *rand.Rand
	training bool
}

// NewNoise creates a Noise seeded with seed, starting in eval mode.
func NewNoise(seed int64) *Noise {
	return &Noise{rng: rand.New(rand.NewSource(seed))} //nolint:gosec // reproducible, not security-sensitive
}

// SetTraining switches dropout on (true) or off (false).
func (n *Noise) SetTraining(training bool) {
	n.training = training
}

// Training reports whether dropout is active.
func (n *Noise) Training() bool {
	return n.training
}

// Dropout zeroes each element with probability P during training and
// scales the survivors by 1/(1-P). In eval mode it is the identity.
type Dropout[B tensor.Backend] struct {
	P       float32
	noise   *Noise
	backend B
}

// NewDropout creates a Dropout layer driven by noise.
func NewDropout[B tensor.Backend](p float32, noise *Noise, backend B) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("Dropout: probability must be in [0, 1), got %v", p))
	}
	return &Dropout[B]{P: p, noise: noise, backend: backend}
}

// Forward applies dropout to x.
func (d *Dropout[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.noise.training || d.P == 0 {
		return x
	}

	mask := tensor.Zeros[float32](x.Shape(), d.backend)
	keep := 1 / (1 - d.P)
	data := mask.Data()
	for i := range data {
		if d.noise.rng.Float32() >= d.P {
			data[i] = keep
		}
	}
	return x.Mul(mask)
}

// Parameters returns nil; dropout has no trainable state.
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return nil
}
