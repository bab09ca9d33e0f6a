package optim

import (
	"fmt"
	"math"
)

// Noam is the warmup/decay learning-rate schedule
//
//	lr(s) = Factor * ModelDim^-0.5 * min(s^-0.5, s * WarmupSteps^-1.5)
//
// where s is the 1-indexed optimizer step. The rate grows linearly for
// WarmupSteps steps, peaks at s = WarmupSteps and then decays as 1/sqrt(s).
type Noam struct {
	ModelDim    int
	WarmupSteps int
	Factor      float64
}

// NewNoam creates the schedule. Panics on non-positive arguments.
func NewNoam(modelDim, warmupSteps int, factor float64) Noam {
	if modelDim <= 0 || warmupSteps <= 0 || factor <= 0 {
		panic(fmt.Sprintf("Noam: model dim, warmup and factor must be positive, got %d, %d, %v",
			modelDim, warmupSteps, factor))
	}
	return Noam{ModelDim: modelDim, WarmupSteps: warmupSteps, Factor: factor}
}

// LR returns the learning rate for optimizer step step. Steps below 1 are
// treated as step 1.
func (n Noam) LR(step int) float32 {
	s := float64(max(step, 1))
	warmup := float64(n.WarmupSteps)
	rate := math.Min(math.Pow(s, -0.5), s*math.Pow(warmup, -1.5))
	return float32(n.Factor * math.Pow(float64(n.ModelDim), -0.5) * rate)
}
