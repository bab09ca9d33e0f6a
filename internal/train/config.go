package train

import (
	"errors"
	"fmt"
)

// Config holds the optimization and orchestration settings.
type Config struct {
	LabelSmoothing float32
	Betas          [2]float32
	Eps            float32

	// Noam schedule: lr(s) = LRFactor * d_model^-0.5 * min(s^-0.5, s*WarmupSteps^-1.5).
	LRFactor    float64
	WarmupSteps int

	// AccumulateGradBatches is the number of micro-batches per optimizer step.
	AccumulateGradBatches int
	// GradientClip is the global L2 norm limit; zero disables clipping.
	GradientClip float32

	MaxEpochs       int
	DecodeMaxLength int
	LogEvery        int // optimizer steps between train_loss records

	EarlyStopping EarlyStoppingConfig

	// CheckpointDir receives last.ckpt and best.ckpt; empty disables
	// checkpointing.
	CheckpointDir string
}

// DefaultConfig returns the settings of the reference training run.
func DefaultConfig() Config {
	return Config{
		LabelSmoothing:        0.1,
		Betas:                 [2]float32{0.9, 0.98},
		Eps:                   1e-9,
		LRFactor:              1.0,
		WarmupSteps:           4000,
		AccumulateGradBatches: 2,
		GradientClip:          1.0,
		MaxEpochs:             30,
		DecodeMaxLength:       50,
		LogEvery:              10,
		EarlyStopping:         EarlyStoppingConfig{Patience: 5, MinDelta: 0.01},
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.LabelSmoothing < 0 || c.LabelSmoothing >= 1 {
		errs = append(errs, fmt.Errorf("label_smoothing must be in [0, 1), got %v", c.LabelSmoothing))
	}
	if c.LRFactor <= 0 || c.WarmupSteps <= 0 {
		errs = append(errs, fmt.Errorf("lr factor and warmup_steps must be positive, got %v and %d", c.LRFactor, c.WarmupSteps))
	}
	if c.AccumulateGradBatches <= 0 {
		errs = append(errs, fmt.Errorf("accumulate_grad_batches must be positive, got %d", c.AccumulateGradBatches))
	}
	if c.GradientClip < 0 {
		errs = append(errs, fmt.Errorf("gradient_clip_val must not be negative, got %v", c.GradientClip))
	}
	if c.MaxEpochs <= 0 || c.DecodeMaxLength <= 0 {
		errs = append(errs, fmt.Errorf("max_epochs and decode max length must be positive, got %d and %d",
			c.MaxEpochs, c.DecodeMaxLength))
	}
	if c.EarlyStopping.Patience < 0 || c.EarlyStopping.MinDelta < 0 {
		errs = append(errs, errors.New("early stopping patience and min_delta must not be negative"))
	}
	return errors.Join(errs...)
}
