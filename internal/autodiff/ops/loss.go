package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// LabelSmoothedCrossEntropyOp represents the fused smoothed loss over
// logits [N, V]. The targets are not differentiable.
//
// Backward pass for a non-padding row r:
//
//	grad_logits[r] = (softmax(logits[r]) - q[r]) / count
//
// where q[r] is the smoothed target distribution and count is the number of
// non-padding rows. Padding rows receive zero gradient.
type LabelSmoothedCrossEntropyOp struct {
	node
	targets   *tensor.RawTensor
	smoothing float32
	padID     int32
}

// NewLabelSmoothedCrossEntropyOp creates a new LabelSmoothedCrossEntropyOp.
func NewLabelSmoothedCrossEntropyOp(
	logits, targets, output *tensor.RawTensor, smoothing float32, padID int32,
) *LabelSmoothedCrossEntropyOp {
	return &LabelSmoothedCrossEntropyOp{newNode(output, logits), targets, smoothing, padID}
}

// Backward computes the logits gradient scaled by the scalar output gradient.
func (op *LabelSmoothedCrossEntropyOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	logits := op.inputs[0]
	v := logits.Shape()[1]
	tgt := op.targets.AsInt32()

	count := 0
	for _, t := range tgt {
		if t != op.padID {
			count++
		}
	}

	probs := backend.Softmax(logits)
	grad := tensor.MustRaw(logits.Shape(), tensor.Float32, backend.Device())
	if count == 0 {
		return []*tensor.RawTensor{grad}
	}

	scale := outputGrad.AsFloat32()[0] / float32(count)
	off := op.smoothing / float32(v-2)
	on := 1 - op.smoothing

	p, g := probs.AsFloat32(), grad.AsFloat32()
	for row, t := range tgt {
		if t == op.padID {
			continue
		}
		for j := 0; j < v; j++ {
			q := off
			switch int32(j) { //nolint:gosec // j < V which fits int32
			case t:
				q = on
			case op.padID:
				q = 0
			}
			g[row*v+j] = (p[row*v+j] - q) * scale
		}
	}
	return []*tensor.RawTensor{grad}
}
