package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. S2S_BATCH_SIZE.
const EnvPrefix = "S2S_"

// envSearchDepth bounds the .env search through parent directories.
const envSearchDepth = 5

// Loader builds a Config from its sources.
type Loader struct {
	// File is a YAML file; empty means none.
	File string

	// EnvFile is a .env file; empty searches the working directory and its
	// parents. A missing file is not an error.
	EnvFile string

	// SkipEnvFile disables .env loading.
	SkipEnvFile bool

	// LookupEnv reads the process environment; nil means os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

// Load reads the YAML file at path (may be empty) and the environment.
func Load(path string) (*Config, error) {
	return Loader{File: path}.Load()
}

// Load builds and validates the configuration.
func (l Loader) Load() (*Config, error) {
	cfg := Default()

	if l.File != "" {
		if err := readYAML(l.File, cfg); err != nil {
			return nil, err
		}
	}

	dotenv, err := l.readEnvFile()
	if err != nil {
		return nil, err
	}
	lookup := l.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.applyEnv(func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readYAML(path string, cfg *Config) error {
	content, err := os.ReadFile(path) //nolint:gosec // G304: config path comes from the command line
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return nil
}

// readEnvFile returns the variables of the .env file, or nil if there is
// none.
func (l Loader) readEnvFile() (map[string]string, error) {
	if l.SkipEnvFile {
		return nil, nil
	}
	path := l.EnvFile
	if path == "" {
		path = findEnvFile()
		if path == "" {
			return nil, nil
		}
	}
	vars, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return vars, nil
}

// findEnvFile looks for .env in the working directory and its parents.
func findEnvFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for range envSearchDepth {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// envBindings maps every override name, without EnvPrefix, to its field.
func (c *Config) envBindings() map[string]any {
	return map[string]any{
		"TOKENIZER":                &c.Tokenizer.Kind,
		"VOCAB_SIZE":               &c.Tokenizer.VocabSize,
		"MIN_FREQUENCY":            &c.Tokenizer.MinFrequency,
		"TOKENIZER_DIR":            &c.Tokenizer.SaveDir,
		"TIKTOKEN_ENCODING":        &c.Tokenizer.Encoding,
		"TRAIN_PATH":               &c.Data.TrainPath,
		"VALID_PATH":               &c.Data.ValidPath,
		"BATCH_SIZE":               &c.Data.BatchSize,
		"MAX_SEQ_LEN":              &c.Data.MaxSeqLen,
		"SHUFFLE":                  &c.Data.Shuffle,
		"D_MODEL":                  &c.Model.DModel,
		"N_HEADS":                  &c.Model.NHeads,
		"N_LAYERS":                 &c.Model.NLayers,
		"D_FF":                     &c.Model.DFF,
		"DROPOUT":                  &c.Model.Dropout,
		"MAX_EPOCHS":               &c.Training.MaxEpochs,
		"LEARNING_RATE":            &c.Training.LearningRate,
		"WARMUP_STEPS":             &c.Training.WarmupSteps,
		"GRADIENT_CLIP_VAL":        &c.Training.GradientClipVal,
		"LABEL_SMOOTHING":          &c.Training.LabelSmoothing,
		"ACCUMULATE_GRAD_BATCHES":  &c.Training.AccumulateGradBatches,
		"BETA1":                    &c.Training.OptimizerBetas[0],
		"BETA2":                    &c.Training.OptimizerBetas[1],
		"OPTIMIZER_EPS":            &c.Training.OptimizerEps,
		"DECODE_MAX_LENGTH":        &c.Training.DecodeMaxLength,
		"EARLY_STOPPING_PATIENCE":  &c.Training.EarlyStoppingPatience,
		"EARLY_STOPPING_MIN_DELTA": &c.Training.EarlyStoppingMinDelta,
		"CHECKPOINT_DIR":           &c.Training.CheckpointDir,
		"LOG_EVERY_N_STEPS":        &c.Training.LogEvery,
		"SEED":                     &c.Seed,
		"LOG_LEVEL":                &c.LogLevel,
	}
}

// EnvKeys returns every recognized environment variable name.
func EnvKeys() []string {
	bindings := Default().envBindings()
	keys := make([]string, 0, len(bindings))
	for name := range bindings {
		keys = append(keys, EnvPrefix+name)
	}
	return keys
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	for name, dst := range c.envBindings() {
		key := EnvPrefix + name
		raw, ok := lookup(key)
		if !ok {
			continue
		}
		if err := setValue(dst, strings.TrimSpace(raw)); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", key, raw, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func setValue(dst any, raw string) error {
	switch p := dst.(type) {
	case *string:
		*p = raw
	case *int:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*p = v
	case *int64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		*p = v
	case *float32:
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return err
		}
		*p = float32(v)
	case *float64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*p = v
	case *bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*p = v
	default:
		panic(fmt.Sprintf("config: unsupported binding type %T", dst))
	}
	return nil
}
