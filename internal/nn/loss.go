package nn

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// SmoothedTargets returns the label-smoothed target distribution over a
// vocabulary of size vocab.
//
// For a non-PAD target the true token gets 1-eps, PAD gets 0 and every
// other token gets eps/(vocab-2), so the distribution sums to 1. For a PAD
// target the whole distribution is 0.
func SmoothedTargets(target int32, vocab int, pad int32, eps float32) []float32 {
	dist := make([]float32, vocab)
	if target == pad {
		return dist
	}
	off := eps / float32(vocab-2)
	for i := range dist {
		dist[i] = off
	}
	dist[pad] = 0
	dist[target] = 1 - eps
	return dist
}

// LabelSmoothedCrossEntropy is the training loss: cross-entropy against
// SmoothedTargets, averaged over non-PAD target positions.
//
// PAD rows contribute neither loss nor gradient. The backend computes the
// loss as one fused operation.
type LabelSmoothedCrossEntropy[B tensor.Backend] struct {
	Smoothing float32
	PadID     int32
	backend   B
}

// NewLabelSmoothedCrossEntropy creates the loss with smoothing eps.
func NewLabelSmoothedCrossEntropy[B tensor.Backend](smoothing float32, padID int32, backend B) *LabelSmoothedCrossEntropy[B] {
	if smoothing < 0 || smoothing >= 1 {
		panic(fmt.Sprintf("LabelSmoothedCrossEntropy: smoothing must be in [0, 1), got %v", smoothing))
	}
	return &LabelSmoothedCrossEntropy[B]{Smoothing: smoothing, PadID: padID, backend: backend}
}

// Forward computes the scalar loss of logits [..., V] against targets of
// the same leading shape.
func (l *LabelSmoothedCrossEntropy[B]) Forward(
	logits *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	vocab := logits.Shape().Last()
	rows := targets.NumElements()
	if rows*vocab != logits.NumElements() {
		panic(fmt.Sprintf("LabelSmoothedCrossEntropy: logits %v do not match targets %v", logits.Shape(), targets.Shape()))
	}

	flat := logits.Reshape(rows, vocab)
	flatTargets := targets.Reshape(rows)
	loss := l.backend.LabelSmoothedCrossEntropy(flat.Raw(), flatTargets.Raw(), l.Smoothing, l.PadID)
	return tensor.New[float32](loss, l.backend)
}
