package optim

import (
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Accumulator sums parameter gradients over the micro-batches of one
// accumulation window. Only gradients of the tracked parameters are kept;
// the rest of the backward map is dropped after Add.
type Accumulator[B tensor.Backend] struct {
	params []*nn.Parameter[B]
	sums   Gradients
	count  int
}

// NewAccumulator creates an empty accumulator for params.
func NewAccumulator[B tensor.Backend](params []*nn.Parameter[B]) *Accumulator[B] {
	return &Accumulator[B]{params: params, sums: make(Gradients, len(params))}
}

// Add folds one micro-batch's gradients into the running sums.
func (a *Accumulator[B]) Add(grads Gradients) {
	for _, p := range a.params {
		key := p.Tensor().Raw()
		g := grads[key]
		if g == nil {
			continue
		}
		sum, ok := a.sums[key]
		if !ok {
			a.sums[key] = g.Clone()
			continue
		}
		dst := sum.AsFloat32()
		for i, v := range g.AsFloat32() {
			dst[i] += v
		}
	}
	a.count++
}

// Count returns the number of micro-batches added since the last Reset.
func (a *Accumulator[B]) Count() int {
	return a.count
}

// Grads returns the mean gradient over the window as a fresh map, or nil
// if nothing was added.
func (a *Accumulator[B]) Grads() Gradients {
	if a.count == 0 {
		return nil
	}
	scale := 1 / float32(a.count)
	out := make(Gradients, len(a.sums))
	for key, sum := range a.sums {
		mean := sum.Clone()
		data := mean.AsFloat32()
		for i := range data {
			data[i] *= scale
		}
		out[key] = mean
	}
	return out
}

// Reset empties the accumulator for the next window.
func (a *Accumulator[B]) Reset() {
	a.sums = make(Gradients, len(a.params))
	a.count = 0
}
