// Package config loads the settings of a translation run.
//
// Values are layered, lowest precedence first: built-in defaults, a YAML
// file, a .env file found in the working directory or one of its parents,
// and S2S_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tokenizer"
	"github.com/born-ml/seq2seq/internal/train"
)

// ErrInvalidConfig wraps every validation and parse failure.
var ErrInvalidConfig = errors.New("invalid config")

// Tokenizer kinds.
const (
	TokenizerBPE      = "bpe"
	TokenizerTikToken = "tiktoken"
)

// TokenizerConfig selects and trains the subword tokenizer.
type TokenizerConfig struct {
	Kind         string `yaml:"kind"`
	VocabSize    int    `yaml:"vocab_size"`
	MinFrequency int    `yaml:"min_frequency"`
	SaveDir      string `yaml:"save_dir"`
	Encoding     string `yaml:"encoding"` // tiktoken encoding name
}

// DataConfig locates the corpus and shapes batches.
type DataConfig struct {
	TrainPath string `yaml:"train_path"`
	ValidPath string `yaml:"valid_path"`
	BatchSize int    `yaml:"batch_size"`
	MaxSeqLen int    `yaml:"max_seq_len"`
	Shuffle   bool   `yaml:"shuffle"`
}

// ModelConfig is the transformer architecture.
type ModelConfig struct {
	DModel    int     `yaml:"d_model"`
	NHeads    int     `yaml:"n_heads"`
	NLayers   int     `yaml:"n_layers"`
	DFF       int     `yaml:"d_ff"`
	Dropout   float32 `yaml:"dropout"`
	MaxSeqLen int     `yaml:"max_seq_len"` // always equal to Data.MaxSeqLen after loading
}

// TrainingConfig is the optimization regime.
type TrainingConfig struct {
	MaxEpochs             int        `yaml:"max_epochs"`
	LearningRate          float64    `yaml:"learning_rate"` // factor of the Noam schedule
	WarmupSteps           int        `yaml:"warmup_steps"`
	GradientClipVal       float32    `yaml:"gradient_clip_val"`
	LabelSmoothing        float32    `yaml:"label_smoothing"`
	AccumulateGradBatches int        `yaml:"accumulate_grad_batches"`
	OptimizerBetas        [2]float32 `yaml:"optimizer_betas,flow"`
	OptimizerEps          float32    `yaml:"optimizer_eps"`
	DecodeMaxLength       int        `yaml:"decode_max_length"`
	EarlyStoppingPatience int        `yaml:"early_stopping_patience"`
	EarlyStoppingMinDelta float64    `yaml:"early_stopping_min_delta"`
	CheckpointDir         string     `yaml:"checkpoint_dir"`
	LogEvery              int        `yaml:"log_every_n_steps"`
}

// Config is the complete run configuration.
type Config struct {
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Data      DataConfig      `yaml:"data"`
	Model     ModelConfig     `yaml:"model"`
	Training  TrainingConfig  `yaml:"training"`
	Seed      int64           `yaml:"seed"`
	LogLevel  string          `yaml:"log_level"`
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		Tokenizer: TokenizerConfig{
			Kind:         TokenizerBPE,
			VocabSize:    12000,
			MinFrequency: 3,
			SaveDir:      "checkpoints/tokenizer",
			Encoding:     "cl100k_base",
		},
		Data: DataConfig{
			TrainPath: "data/train.tsv",
			ValidPath: "data/valid.tsv",
			BatchSize: 32,
			MaxSeqLen: 128,
			Shuffle:   true,
		},
		Model: ModelConfig{
			DModel:    512,
			NHeads:    8,
			NLayers:   6,
			DFF:       2048,
			Dropout:   0.1,
			MaxSeqLen: 128,
		},
		Training: TrainingConfig{
			MaxEpochs:             30,
			LearningRate:          1.0,
			WarmupSteps:           4000,
			GradientClipVal:       1.0,
			LabelSmoothing:        0.1,
			AccumulateGradBatches: 2,
			OptimizerBetas:        [2]float32{0.9, 0.98},
			OptimizerEps:          1e-9,
			DecodeMaxLength:       50,
			EarlyStoppingPatience: 5,
			EarlyStoppingMinDelta: 0.01,
			CheckpointDir:         "checkpoints",
			LogEvery:              10,
		},
		Seed:     42,
		LogLevel: "info",
	}
}

// normalize applies the derived settings.
func (c *Config) normalize() {
	c.Model.MaxSeqLen = c.Data.MaxSeqLen
}

// Validate reports every invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	switch c.Tokenizer.Kind {
	case TokenizerBPE:
		if c.Tokenizer.VocabSize <= len(tokenizer.SpecialTokens) {
			errs = append(errs, fmt.Errorf("tokenizer.vocab_size must exceed %d, got %d",
				len(tokenizer.SpecialTokens), c.Tokenizer.VocabSize))
		}
		if c.Tokenizer.MinFrequency < 1 {
			errs = append(errs, fmt.Errorf("tokenizer.min_frequency must be at least 1, got %d", c.Tokenizer.MinFrequency))
		}
	case TokenizerTikToken:
		if c.Tokenizer.Encoding == "" {
			errs = append(errs, errors.New("tokenizer.encoding is required for tiktoken"))
		}
	default:
		errs = append(errs, fmt.Errorf("tokenizer.kind must be %q or %q, got %q",
			TokenizerBPE, TokenizerTikToken, c.Tokenizer.Kind))
	}

	if c.Data.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("data.batch_size must be positive, got %d", c.Data.BatchSize))
	}
	if c.Data.MaxSeqLen < 2 {
		errs = append(errs, fmt.Errorf("data.max_seq_len must be at least 2, got %d", c.Data.MaxSeqLen))
	}
	if c.Model.MaxSeqLen != c.Data.MaxSeqLen {
		errs = append(errs, fmt.Errorf("model.max_seq_len %d differs from data.max_seq_len %d",
			c.Model.MaxSeqLen, c.Data.MaxSeqLen))
	}

	// Vocabulary size is checked when the tokenizer is known.
	if err := c.NNConfig(len(tokenizer.SpecialTokens) + 1).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}
	if err := c.TrainConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("training: %w", err))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// NNConfig returns the model configuration for a vocabulary of vocabSize
// tokens.
func (c *Config) NNConfig(vocabSize int) nn.Config {
	return nn.Config{
		VocabSize: vocabSize,
		ModelDim:  c.Model.DModel,
		NumHeads:  c.Model.NHeads,
		NumLayers: c.Model.NLayers,
		FFDim:     c.Model.DFF,
		Dropout:   c.Model.Dropout,
		MaxSeqLen: c.Model.MaxSeqLen,
		PadID:     tokenizer.PadID,
		Seed:      c.Seed,
	}
}

// TrainConfig returns the trainer configuration.
func (c *Config) TrainConfig() train.Config {
	t := c.Training
	return train.Config{
		LabelSmoothing:        t.LabelSmoothing,
		Betas:                 t.OptimizerBetas,
		Eps:                   t.OptimizerEps,
		LRFactor:              t.LearningRate,
		WarmupSteps:           t.WarmupSteps,
		AccumulateGradBatches: t.AccumulateGradBatches,
		GradientClip:          t.GradientClipVal,
		MaxEpochs:             t.MaxEpochs,
		DecodeMaxLength:       t.DecodeMaxLength,
		LogEvery:              t.LogEvery,
		EarlyStopping: train.EarlyStoppingConfig{
			Patience: t.EarlyStoppingPatience,
			MinDelta: t.EarlyStoppingMinDelta,
		},
		CheckpointDir: t.CheckpointDir,
	}
}

// WriteYAML encodes c as YAML.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
