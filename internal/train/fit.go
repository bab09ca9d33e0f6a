package train

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/born-ml/seq2seq/internal/data"
)

// Checkpoint file names inside Config.CheckpointDir.
const (
	LastCheckpoint = "last.ckpt"
	BestCheckpoint = "best.ckpt"
)

// FitResult summarizes a Fit call.
type FitResult struct {
	Epochs       int     // epochs completed in total, resumed ones included
	Steps        int     // optimizer steps taken in total
	BestBLEU     float64 // best validation BLEU
	StoppedEarly bool
	History      []ValidationResult // one entry per epoch run by this call
}

// Fit trains until MaxEpochs epochs are complete or early stopping fires.
// Each epoch runs every training batch, flushes a partial accumulation
// window, validates, and writes checkpoints. A resumed trainer continues
// from its saved epoch. Cancelling ctx stops between batches.
func (t *Trainer[B]) Fit(ctx context.Context, trainSet, validSet *data.Batcher) (FitResult, error) {
	t.logger.Info("fit",
		slog.Int("parameters", t.model.NumParameters()),
		slog.Int("train_examples", trainSet.NumExamples()),
		slog.Int("valid_examples", validSet.NumExamples()),
		slog.Int("batches_per_epoch", trainSet.Len()),
		slog.Int("accumulate_grad_batches", t.cfg.AccumulateGradBatches),
		slog.Int("start_epoch", t.epoch),
		slog.Int("start_step", t.step))

	var res FitResult
	for t.epoch < t.cfg.MaxEpochs {
		for _, batch := range trainSet.Batches(t.epoch) {
			if err := ctx.Err(); err != nil {
				return t.result(res), err
			}
			if _, err := t.TrainingStep(batch); err != nil {
				return t.result(res), fmt.Errorf("epoch %d: %w", t.epoch, err)
			}
		}
		t.Flush()

		for _, batch := range validSet.Batches(0) {
			if err := ctx.Err(); err != nil {
				return t.result(res), err
			}
			if _, err := t.ValidationStep(batch); err != nil {
				return t.result(res), fmt.Errorf("validation after epoch %d: %w", t.epoch, err)
			}
		}
		val := t.OnValidationEpochEnd()
		res.History = append(res.History, val)
		t.epoch++

		if err := t.endEpoch(val); err != nil {
			return t.result(res), err
		}
		if t.stopper.ShouldStop() {
			t.logger.Info("early stopping",
				slog.Int("epoch", t.epoch),
				slog.Float64("best_val_bleu", t.stopper.Best()),
				slog.Int("patience", t.cfg.EarlyStopping.Patience))
			res.StoppedEarly = true
			break
		}
	}
	return t.result(res), nil
}

// endEpoch updates early stopping and writes the last and best checkpoints.
func (t *Trainer[B]) endEpoch(val ValidationResult) error {
	t.stopper.Update(val.BLEU)
	improved := val.BLEU > t.best
	if improved {
		t.best = val.BLEU
	}

	if t.cfg.CheckpointDir == "" {
		return nil
	}
	last := filepath.Join(t.cfg.CheckpointDir, LastCheckpoint)
	if err := t.SaveCheckpoint(last); err != nil {
		return err
	}
	if improved {
		best := filepath.Join(t.cfg.CheckpointDir, BestCheckpoint)
		if err := t.SaveCheckpoint(best); err != nil {
			return err
		}
		t.logger.Info("new best checkpoint", slog.String("path", best), slog.Float64("val_bleu", val.BLEU))
	}
	return nil
}

func (t *Trainer[B]) result(res FitResult) FitResult {
	res.Epochs = t.epoch
	res.Steps = t.step
	res.BestBLEU = max(t.best, 0)
	return res
}
