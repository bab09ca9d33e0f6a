package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// LabelSmoothedCrossEntropy computes the mean label-smoothed cross-entropy
// over the rows of logits [N, V] whose target is not padID.
//
// The smoothed target puts 1-smoothing on the gold token, 0 on padID and
// spreads smoothing evenly over the remaining V-2 tokens. When every row is
// padding the loss is 0.
func (cpu *CPUBackend) LabelSmoothedCrossEntropy(
	logits, targets *tensor.RawTensor, smoothing float32, padID int32,
) *tensor.RawTensor {
	n, v := checkLossShapes(logits, targets)

	logProbs := make([]float64, v)
	tgt := targets.AsInt32()
	data := logits.AsFloat32()
	off := float64(smoothing) / float64(v-2)
	on := 1 - float64(smoothing)

	var total float64
	count := 0
	for row := 0; row < n; row++ {
		if tgt[row] == padID {
			continue
		}
		logSoftmaxRow(logProbs, data[row*v:(row+1)*v])

		var loss float64
		for j, lp := range logProbs {
			switch int32(j) { //nolint:gosec // j < V which fits int32
			case tgt[row]:
				loss -= on * lp
			case padID:
			default:
				loss -= off * lp
			}
		}
		total += loss
		count++
	}

	result := tensor.MustRaw(tensor.Shape{}, tensor.Float32, cpu.device)
	if count > 0 {
		result.AsFloat32()[0] = float32(total / float64(count))
	}
	return result
}

func checkLossShapes(logits, targets *tensor.RawTensor) (n, v int) {
	ls, ts := logits.Shape(), targets.Shape()
	if len(ls) != 2 || len(ts) != 1 || ls[0] != ts[0] {
		panic(fmt.Sprintf("label_smoothed_cross_entropy: expected logits [N, V] and targets [N], got %v and %v", ls, ts))
	}
	if targets.DType() != tensor.Int32 {
		panic(fmt.Sprintf("label_smoothed_cross_entropy: targets must be int32, got %s", targets.DType()))
	}
	if ls[1] <= 2 {
		panic(fmt.Sprintf("label_smoothed_cross_entropy: vocabulary of %d leaves no tokens to smooth over", ls[1]))
	}
	for _, t := range targets.AsInt32() {
		if t < 0 || int(t) >= ls[1] {
			panic(fmt.Sprintf("label_smoothed_cross_entropy: target %d out of range [0, %d)", t, ls[1]))
		}
	}
	return ls[0], ls[1]
}

// logSoftmaxRow writes log(softmax(row)) into dst using the log-sum-exp trick.
func logSoftmaxRow(dst []float64, row []float32) {
	maxVal := float64(row[0])
	for _, x := range row[1:] {
		maxVal = math.Max(maxVal, float64(x))
	}
	var sum float64
	for _, x := range row {
		sum += math.Exp(float64(x) - maxVal)
	}
	lse := maxVal + math.Log(sum)
	for j, x := range row {
		dst[j] = float64(x) - lse
	}
}
