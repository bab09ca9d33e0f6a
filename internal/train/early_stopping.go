package train

import "math"

// EarlyStoppingConfig configures EarlyStopping.
type EarlyStoppingConfig struct {
	// Patience is the number of epochs without improvement tolerated;
	// zero disables early stopping.
	Patience int
	MinDelta float64
}

// EarlyStopping watches a metric that should increase and signals a stop
// once it has not improved by more than MinDelta for Patience epochs.
type EarlyStopping struct {
	cfg  EarlyStoppingConfig
	best float64
	bad  int
}

// NewEarlyStopping creates a monitor with no observations.
func NewEarlyStopping(cfg EarlyStoppingConfig) *EarlyStopping {
	return &EarlyStopping{cfg: cfg, best: math.Inf(-1)}
}

// Update records score and reports whether it improved on the best value.
func (e *EarlyStopping) Update(score float64) bool {
	if score > e.best+e.cfg.MinDelta {
		e.best = score
		e.bad = 0
		return true
	}
	e.bad++
	return false
}

// ShouldStop reports whether patience is exhausted.
func (e *EarlyStopping) ShouldStop() bool {
	return e.cfg.Patience > 0 && e.bad >= e.cfg.Patience
}

// Best returns the best score seen, or -Inf.
func (e *EarlyStopping) Best() float64 {
	return e.best
}

// BadEpochs returns the number of epochs since the last improvement.
func (e *EarlyStopping) BadEpochs() int {
	return e.bad
}

func (e *EarlyStopping) restore(best float64, bad int) {
	e.best = best
	e.bad = bad
}
