package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/born-ml/seq2seq/internal/config"
	"github.com/born-ml/seq2seq/internal/data"
	"github.com/born-ml/seq2seq/internal/tokenizer"
)

const tokenizerFile = "tokenizer.json"

func runTokenizer(_ context.Context, args []string, e env) error {
	var common commonFlags
	flags := newFlagSet("tokenizer", e)
	common.register(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, logger, err := common.setup(e)
	if err != nil {
		return err
	}
	if cfg.Tokenizer.Kind != config.TokenizerBPE {
		return fmt.Errorf("tokenizer kind %q is pretrained; nothing to train", cfg.Tokenizer.Kind)
	}

	trainPairs, validPairs, err := loadCorpus(cfg)
	if err != nil {
		return err
	}
	tok, err := trainTokenizer(cfg, logger, trainPairs, validPairs)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "tokenizer: %d tokens written to %s\n",
		tok.VocabSize(), filepath.Join(cfg.Tokenizer.SaveDir, tokenizerFile))
	return nil
}

func trainTokenizer(cfg *config.Config, logger *slog.Logger, splits ...[]data.Pair) (*tokenizer.BPE, error) {
	tok, err := tokenizer.TrainBPE(data.Sentences(splits...), tokenizer.TrainerConfig{
		VocabSize:    cfg.Tokenizer.VocabSize,
		MinFrequency: cfg.Tokenizer.MinFrequency,
	})
	if err != nil {
		return nil, fmt.Errorf("train tokenizer: %w", err)
	}
	path := filepath.Join(cfg.Tokenizer.SaveDir, tokenizerFile)
	if err := tok.SaveHuggingFace(path); err != nil {
		return nil, err
	}
	logger.Info("tokenizer trained",
		slog.Int("vocab_size", tok.VocabSize()),
		slog.Int("merges", len(tok.Merges())),
		slog.String("path", path))
	return tok, nil
}

// loadTokenizer returns the configured tokenizer. A BPE tokenizer that has
// not been trained yet is trained on splits when any are given.
func loadTokenizer(cfg *config.Config, logger *slog.Logger, splits ...[]data.Pair) (tokenizer.Tokenizer, error) {
	if cfg.Tokenizer.Kind == config.TokenizerTikToken {
		tok, err := tokenizer.NewTikToken(cfg.Tokenizer.Encoding)
		if err != nil {
			return nil, err
		}
		logger.Info("tokenizer loaded", slog.String("encoding", tok.Name()), slog.Int("vocab_size", tok.VocabSize()))
		return tok, nil
	}

	path := filepath.Join(cfg.Tokenizer.SaveDir, tokenizerFile)
	tok, err := tokenizer.LoadHuggingFace(path)
	if errors.Is(err, fs.ErrNotExist) && len(splits) > 0 {
		logger.Info("no tokenizer found, training one", slog.String("path", path))
		return trainTokenizer(cfg, logger, splits...)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("tokenizer loaded", slog.String("path", path), slog.Int("vocab_size", tok.VocabSize()))
	return tok, nil
}

func loadCorpus(cfg *config.Config) (trainPairs, validPairs []data.Pair, err error) {
	trainPairs, err = data.LoadTSV(cfg.Data.TrainPath)
	if err != nil {
		return nil, nil, err
	}
	validPairs, err = data.LoadTSV(cfg.Data.ValidPath)
	if err != nil {
		return nil, nil, err
	}
	return trainPairs, validPairs, nil
}

func sortedEnvKeys() []string {
	keys := config.EnvKeys()
	slices.Sort(keys)
	return keys
}
