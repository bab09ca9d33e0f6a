package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/config"
	"github.com/born-ml/seq2seq/internal/data"
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tokenizer"
	"github.com/born-ml/seq2seq/internal/train"
)

const modelFile = "model.s2s"

func runTrain(ctx context.Context, args []string, e env) error {
	var common commonFlags
	flags := newFlagSet("train", e)
	common.register(flags)
	resume := flags.String("resume", "", "checkpoint to resume from")
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, logger, err := common.setup(e)
	if err != nil {
		return err
	}

	trainPairs, validPairs, err := loadCorpus(cfg)
	if err != nil {
		return err
	}
	tok, err := loadTokenizer(cfg, logger, trainPairs, validPairs)
	if err != nil {
		return err
	}
	trainSet, err := encodeSplit("train", trainPairs, tok, cfg, logger)
	if err != nil {
		return err
	}
	validSet, err := encodeSplit("valid", validPairs, tok, cfg, logger)
	if err != nil {
		return err
	}
	trainBatches := data.NewBatcher(trainSet, cfg.Data.BatchSize, cfg.Data.Shuffle, cfg.Seed, tokenizer.PadID)
	validBatches := data.NewBatcher(validSet, cfg.Data.BatchSize, false, cfg.Seed, tokenizer.PadID)

	backend := autodiff.New(cpu.New())
	model := nn.NewSeq2Seq(cfg.NNConfig(tok.VocabSize()), backend)
	trainer, err := train.New(model, tok, cfg.TrainConfig(), backend, logger)
	if err != nil {
		return err
	}
	if *resume != "" {
		if err := trainer.Resume(*resume); err != nil {
			return err
		}
	}
	if err := saveConfig(cfg); err != nil {
		return err
	}

	res, fitErr := trainer.Fit(ctx, trainBatches, validBatches)
	if fitErr != nil && !errors.Is(fitErr, context.Canceled) {
		return fitErr
	}

	path := filepath.Join(cfg.Training.CheckpointDir, modelFile)
	if err := train.SaveModel(path, model); err != nil {
		return err
	}
	logger.Info("model saved", slog.String("path", path))
	fmt.Fprintf(e.stdout, "trained %d epochs, %d steps, best val_bleu %.2f\n", res.Epochs, res.Steps, res.BestBLEU)
	return fitErr
}

func encodeSplit(name string, pairs []data.Pair, tok tokenizer.Tokenizer, cfg *config.Config, logger *slog.Logger) ([]data.Example, error) {
	examples, dropped, err := data.Encode(pairs, tok, cfg.Data.MaxSeqLen)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("encode %s: no pair fits max_seq_len %d", name, cfg.Data.MaxSeqLen)
	}
	logger.Info("dataset", slog.String("split", name), slog.Int("examples", len(examples)), slog.Int("dropped", dropped))
	return examples, nil
}

// saveConfig records the effective configuration next to the checkpoints.
func saveConfig(cfg *config.Config) error {
	dir := cfg.Training.CheckpointDir
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	file, err := os.Create(filepath.Join(dir, "config.yaml")) //nolint:gosec // G304: path from configuration
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := cfg.WriteYAML(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
