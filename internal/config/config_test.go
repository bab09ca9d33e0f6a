package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/tokenizer"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 12000, cfg.Tokenizer.VocabSize)
	assert.Equal(t, 3, cfg.Tokenizer.MinFrequency)
	assert.Equal(t, 32, cfg.Data.BatchSize)
	assert.Equal(t, 128, cfg.Data.MaxSeqLen)
	assert.Equal(t, 512, cfg.Model.DModel)
	assert.Equal(t, 8, cfg.Model.NHeads)
	assert.Equal(t, 6, cfg.Model.NLayers)
	assert.Equal(t, 2048, cfg.Model.DFF)
	assert.InDelta(t, 0.1, cfg.Model.Dropout, 1e-7)
	assert.Equal(t, 30, cfg.Training.MaxEpochs)
	assert.Equal(t, 4000, cfg.Training.WarmupSteps)
	assert.Equal(t, 2, cfg.Training.AccumulateGradBatches)
	assert.Equal(t, [2]float32{0.9, 0.98}, cfg.Training.OptimizerBetas)
	assert.Equal(t, float32(1e-9), cfg.Training.OptimizerEps)
	assert.Equal(t, 50, cfg.Training.DecodeMaxLength)
	assert.Equal(t, 5, cfg.Training.EarlyStoppingPatience)
	assert.Equal(t, int64(42), cfg.Seed)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "run.yaml", `
data:
  batch_size: 8
  max_seq_len: 64
model:
  d_model: 256
  n_heads: 4
  max_seq_len: 999
training:
  optimizer_betas: [0.8, 0.95]
  warmup_steps: 100
`)
	envPath := writeFile(t, dir, ".env", "S2S_WARMUP_STEPS=200\nS2S_D_FF=1024\n")

	cfg, err := Loader{
		File:      yamlPath,
		EnvFile:   envPath,
		LookupEnv: env(map[string]string{"S2S_D_FF": "512", "S2S_DROPOUT": "0.25", "S2S_SHUFFLE": "false"}),
	}.Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Data.BatchSize, "yaml over default")
	assert.Equal(t, 256, cfg.Model.DModel)
	assert.Equal(t, [2]float32{0.8, 0.95}, cfg.Training.OptimizerBetas)
	assert.Equal(t, 200, cfg.Training.WarmupSteps, ".env over yaml")
	assert.Equal(t, 512, cfg.Model.DFF, "environment over .env")
	assert.InDelta(t, 0.25, cfg.Model.Dropout, 1e-7)
	assert.False(t, cfg.Data.Shuffle)
	assert.Equal(t, 64, cfg.Model.MaxSeqLen, "model length follows data length")
	assert.Equal(t, 6, cfg.Model.NLayers, "untouched default")
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	cfg, err := Loader{
		EnvFile:   filepath.Join(t.TempDir(), ".env"),
		LookupEnv: env(nil),
	}.Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Data, cfg.Data)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		loader Loader
	}{
		{
			name:   "missing yaml",
			loader: Loader{File: filepath.Join(dir, "absent.yaml"), SkipEnvFile: true, LookupEnv: env(nil)},
		},
		{
			name:   "unknown yaml field",
			loader: Loader{File: writeFile(t, dir, "typo.yaml", "model:\n  d_modle: 8\n"), SkipEnvFile: true, LookupEnv: env(nil)},
		},
		{
			name:   "unparsable env value",
			loader: Loader{SkipEnvFile: true, LookupEnv: env(map[string]string{"S2S_BATCH_SIZE": "many"})},
		},
		{
			name:   "heads do not divide d_model",
			loader: Loader{SkipEnvFile: true, LookupEnv: env(map[string]string{"S2S_N_HEADS": "7"})},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.loader.Load()
			assert.Error(t, err)
		})
	}

	_, err := Loader{SkipEnvFile: true, LookupEnv: env(map[string]string{"S2S_N_HEADS": "7"})}.Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "not divisible")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Tokenizer.Kind = "wordpiece"
	cfg.Data.BatchSize = 0
	cfg.Model.MaxSeqLen = 64
	cfg.Training.AccumulateGradBatches = 0

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	for _, want := range []string{"tokenizer.kind", "data.batch_size", "model.max_seq_len", "accumulate_grad_batches"} {
		assert.ErrorContains(t, err, want)
	}

	tik := Default()
	tik.Tokenizer.Kind = TokenizerTikToken
	tik.Tokenizer.VocabSize = 0
	assert.NoError(t, tik.Validate(), "vocab size is fixed by the encoding")
}

func TestNNConfigAndTrainConfig(t *testing.T) {
	cfg := Default()
	m := cfg.NNConfig(1000)
	assert.Equal(t, 1000, m.VocabSize)
	assert.Equal(t, 512, m.ModelDim)
	assert.Equal(t, tokenizer.PadID, m.PadID)
	assert.Equal(t, cfg.Data.MaxSeqLen, m.MaxSeqLen)
	assert.Equal(t, cfg.Seed, m.Seed)

	tr := cfg.TrainConfig()
	assert.Equal(t, 2, tr.AccumulateGradBatches)
	assert.InDelta(t, 1.0, tr.LRFactor, 1e-12)
	assert.Equal(t, 5, tr.EarlyStopping.Patience)
	assert.Equal(t, "checkpoints", tr.CheckpointDir)
	require.NoError(t, tr.Validate())
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Model.DModel = 64
	cfg.Model.NHeads = 4

	var buf bytes.Buffer
	require.NoError(t, cfg.WriteYAML(&buf))
	assert.True(t, strings.Contains(buf.String(), "d_model: 64"))

	path := writeFile(t, t.TempDir(), "dump.yaml", buf.String())
	loaded, err := Loader{File: path, SkipEnvFile: true, LookupEnv: env(nil)}.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEnvKeys(t *testing.T) {
	keys := EnvKeys()
	assert.Contains(t, keys, "S2S_BATCH_SIZE")
	assert.Contains(t, keys, "S2S_D_MODEL")
	for _, k := range keys {
		assert.True(t, strings.HasPrefix(k, EnvPrefix), k)
	}
}
