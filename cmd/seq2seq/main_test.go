package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/serialization"
	"github.com/born-ml/seq2seq/internal/tensor"
)

var corpus = [][2]string{
	{"ein hund", "a dog"},
	{"eine katze", "a cat"},
	{"der hund schläft", "the dog sleeps"},
	{"die katze schläft", "the cat sleeps"},
	{"ein kleiner hund", "a small dog"},
	{"eine kleine katze", "a small cat"},
}

// workspace writes a tiny corpus and a configuration small enough to train
// in a test, and returns the configuration path.
func workspace(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()

	var tsv strings.Builder
	for _, p := range corpus {
		fmt.Fprintf(&tsv, "%s\t%s\n", p[0], p[1])
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.tsv"), []byte(tsv.String()), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "valid.tsv"), []byte(tsv.String()), 0o600))

	yaml := fmt.Sprintf(`tokenizer:
  kind: bpe
  vocab_size: 48
  min_frequency: 1
  save_dir: %[1]s/tokenizer
data:
  train_path: %[1]s/train.tsv
  valid_path: %[1]s/valid.tsv
  batch_size: 2
  max_seq_len: 16
  shuffle: true
model:
  d_model: 8
  n_heads: 2
  n_layers: 1
  d_ff: 16
  dropout: 0.1
training:
  max_epochs: 1
  warmup_steps: 4
  accumulate_grad_batches: 2
  decode_max_length: 8
  checkpoint_dir: %[1]s/checkpoints
  log_every_n_steps: 1
seed: 7
log_level: warn
`, dir)
	configPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o600))
	return dir, configPath
}

func runCmd(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestVersionAndUsage(t *testing.T) {
	out, _, err := runCmd(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "seq2seq "+version+"\n", out)

	out, _, err = runCmd(t, "")
	require.NoError(t, err)
	assert.Contains(t, out, "translate")
	assert.Contains(t, out, "S2S_BATCH_SIZE")

	_, stderr, err := runCmd(t, "", "fly")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "fly"`)
	assert.Contains(t, stderr, "Commands:")
}

func TestTrainAndTranslate(t *testing.T) {
	dir, cfgPath := workspace(t)
	noEnv := filepath.Join(dir, "missing.env")
	common := []string{"-config", cfgPath, "-env-file", noEnv}

	out, _, err := runCmd(t, "", append([]string{"tokenizer"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "tokenizer.json")
	assert.FileExists(t, filepath.Join(dir, "tokenizer", "tokenizer.json"))

	out, _, err = runCmd(t, "", append([]string{"train"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "trained 1 epochs, 2 steps")

	ckpts := filepath.Join(dir, "checkpoints")
	for _, name := range []string{"last.ckpt", "best.ckpt", "model.s2s", "config.yaml"} {
		assert.FileExists(t, filepath.Join(ckpts, name))
	}
	_, header, err := serialization.Load(filepath.Join(ckpts, "model.s2s"), tensor.CPU)
	require.NoError(t, err)
	assert.Equal(t, serialization.KindModel, header.Kind)

	t.Run("arguments", func(t *testing.T) {
		out, _, err := runCmd(t, "", append(append([]string{"translate"}, common...), "ein hund", "eine katze", "der hund")...)
		require.NoError(t, err)
		assert.Len(t, strings.Split(strings.TrimSuffix(out, "\n"), "\n"), 3)
	})

	t.Run("stdin", func(t *testing.T) {
		args := append(append([]string{"translate"}, common...), "-model", filepath.Join(ckpts, "model.s2s"), "-max-length", "4")
		out, _, err := runCmd(t, "ein hund\n\neine katze\n", args...)
		require.NoError(t, err)
		assert.Len(t, strings.Split(strings.TrimSuffix(out, "\n"), "\n"), 2)
	})

	t.Run("resume", func(t *testing.T) {
		args := append(append([]string{"train"}, common...), "-resume", filepath.Join(ckpts, "last.ckpt"))
		t.Setenv("S2S_MAX_EPOCHS", "2")
		out, _, err := runCmd(t, "", args...)
		require.NoError(t, err)
		assert.Contains(t, out, "trained 2 epochs, 4 steps")
	})
}

func TestTrainTrainsMissingTokenizer(t *testing.T) {
	dir, cfgPath := workspace(t)
	out, _, err := runCmd(t, "", "train", "-config", cfgPath, "-env-file", filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Contains(t, out, "trained 1 epochs")
	assert.FileExists(t, filepath.Join(dir, "tokenizer", "tokenizer.json"))
}

func TestTranslateErrors(t *testing.T) {
	dir, cfgPath := workspace(t)
	common := []string{"-config", cfgPath, "-env-file", filepath.Join(dir, "missing.env")}

	_, _, err := runCmd(t, "", append(append([]string{"translate"}, common...), "ein hund")...)
	require.Error(t, err, "no tokenizer trained yet")

	_, _, err = runCmd(t, "", "train", "-config", filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)

	_, _, err = runCmd(t, "", "translate", "-bogus")
	require.Error(t, err)
}
