// Package optim implements the optimization regime used to train the
// translation model.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - Adam: Adaptive Moment Estimation with a checkpointable state dict
//   - Noam: linear warmup followed by inverse square root decay
//   - ClipGradNorm: global L2 norm gradient clipping
//   - Accumulator: gradient accumulation over several micro-batches
//
// One optimizer update looks like:
//
//	acc := optim.NewAccumulator(model.Parameters())
//	for _, batch := range window {
//	    backend.Tape().StartRecording()
//	    loss := lossFn.Forward(model.Forward(batch.Src, batch.TgtIn), batch.TgtOut)
//	    acc.Add(autodiff.Backward(loss, backend))
//	    backend.Tape().Clear()
//	}
//	grads := acc.Grads()
//	optim.ClipGradNorm(model.Parameters(), grads, 1.0)
//	step++
//	optimizer.SetLR(schedule.LR(step))
//	optimizer.Step(grads)
//	acc.Reset()
package optim

import (
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Gradients maps parameter storage to its gradient, as returned by
// autodiff.Backward.
type Gradients = map[*tensor.RawTensor]*tensor.RawTensor

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies one update to every parameter that has a gradient in grads.
	Step(grads Gradients)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR replaces the learning rate used by the next Step.
	SetLR(lr float32)
}

// getGradient returns the gradient for param, or nil if the parameter did
// not take part in the computation.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads Gradients) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
