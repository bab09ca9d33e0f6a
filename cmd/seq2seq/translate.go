package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/data"
	"github.com/born-ml/seq2seq/internal/generate"
	"github.com/born-ml/seq2seq/internal/tokenizer"
	"github.com/born-ml/seq2seq/internal/train"
)

func runTranslate(ctx context.Context, args []string, e env) error {
	var common commonFlags
	flags := newFlagSet("translate", e)
	common.register(flags)
	modelPath := flags.String("model", "", "model or checkpoint file (default: best checkpoint)")
	maxLength := flags.Int("max-length", 0, "output length bound, SOS included (default: decode_max_length)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, logger, err := common.setup(e)
	if err != nil {
		return err
	}

	sentences := flags.Args()
	if len(sentences) == 0 {
		if sentences, err = readLines(e); err != nil {
			return err
		}
	}
	if len(sentences) == 0 {
		return nil
	}

	tok, err := loadTokenizer(cfg, logger)
	if err != nil {
		return err
	}
	if *modelPath == "" {
		*modelPath = defaultModelPath(cfg.Training.CheckpointDir)
	}
	backend := cpu.New()
	model, err := train.LoadModel(*modelPath, backend)
	if err != nil {
		return err
	}
	if model.Config().VocabSize != tok.VocabSize() {
		return fmt.Errorf("model vocabulary %d does not match tokenizer vocabulary %d",
			model.Config().VocabSize, tok.VocabSize())
	}
	logger.Info("model loaded", slog.String("path", *modelPath), slog.Int("parameters", model.NumParameters()))

	decodeCfg := generate.Config{
		MaxLength: cfg.Training.DecodeMaxLength,
		PadID:     tokenizer.PadID,
		SOSID:     tokenizer.SOSID,
		EOSID:     tokenizer.EOSID,
	}
	if *maxLength > 0 {
		decodeCfg.MaxLength = *maxLength
	}
	decodeCfg.MaxLength = min(decodeCfg.MaxLength, model.MaxSeqLen())
	decoder := generate.NewGreedy(model, decodeCfg, backend)

	examples := make([]data.Example, len(sentences))
	for i, s := range sentences {
		ids, err := tok.Encode(s)
		if err != nil {
			return fmt.Errorf("encode %q: %w", s, err)
		}
		examples[i] = data.Example{Source: ids}
	}

	for start := 0; start < len(examples); start += cfg.Data.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+cfg.Data.BatchSize, len(examples))
		batch := data.Collate(examples[start:end], tokenizer.PadID)
		results, err := decoder.DecodeResults(data.ToTensor(batch.Source, backend))
		if err != nil {
			return err
		}
		for i, r := range results {
			text, err := tok.Decode(r.IDs, true)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.stdout, text)
			logger.Debug("translated", slog.String("source", sentences[start+i]), slog.String("stop", string(r.Reason)))
		}
	}
	return nil
}

// defaultModelPath prefers the best checkpoint and falls back to the final
// model export.
func defaultModelPath(dir string) string {
	best := filepath.Join(dir, train.BestCheckpoint)
	if _, err := os.Stat(best); err == nil {
		return best
	}
	return filepath.Join(dir, modelFile)
}

func readLines(e env) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(e.stdin)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return lines, nil
}
