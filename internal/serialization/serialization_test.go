package serialization_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/serialization"
	"github.com/born-ml/seq2seq/internal/tensor"
)

func sampleState() map[string]*tensor.RawTensor {
	w := tensor.MustRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	copy(w.AsFloat32(), []float32{1, -2, 3.5, 0, 1e-9, -7})
	step := tensor.MustRaw(tensor.Shape{1}, tensor.Int32, tensor.CPU)
	step.AsInt32()[0] = 42
	mask := tensor.MustRaw(tensor.Shape{3}, tensor.Bool, tensor.CPU)
	copy(mask.AsBool(), []bool{true, false, true})
	return map[string]*tensor.RawTensor{"layer.weight": w, "adam.step": step, "mask": mask}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	best := 17.5
	header := serialization.Header{
		Kind:     serialization.KindCheckpoint,
		Metadata: map[string]string{"model_config": `{"d_model":8}`},
		Checkpoint: &serialization.CheckpointMeta{
			Epoch: 3, Step: 1200, BestScore: &best, BadEpochs: 1, Optimizer: "adam",
			OptimizerConfig: map[string]float64{"beta1": 0.9, "beta2": 0.98},
		},
	}
	require.NoError(t, serialization.NewWriter(&buf).WriteStateDict(sampleState(), header))

	data := buf.Bytes()
	assert.Equal(t, serialization.MagicBytes, string(data[:4]))

	r, err := serialization.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, serialization.FlagHasOptimizer|serialization.FlagHasMetadata, r.Flags())
	assert.Equal(t, []string{"adam.step", "layer.weight", "mask"}, r.TensorNames())

	got := r.Header()
	assert.Equal(t, serialization.FormatVersion, got.FormatVersion)
	assert.Equal(t, serialization.KindCheckpoint, got.Kind)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, header.Metadata, got.Metadata)
	assert.Equal(t, header.Checkpoint, got.Checkpoint)

	state, err := r.ReadStateDict(tensor.CPU)
	require.NoError(t, err)
	want := sampleState()
	require.Len(t, state, len(want))
	for name, raw := range want {
		assert.Equal(t, raw.Shape(), state[name].Shape(), name)
		assert.Equal(t, raw.DType(), state[name].DType(), name)
		assert.Equal(t, raw.Data(), state[name].Data(), name)
	}

	one, err := r.LoadTensor("layer.weight", tensor.CPU)
	require.NoError(t, err)
	assert.Equal(t, float32(3.5), one.AsFloat32()[2])

	_, err = r.LoadTensor("missing", tensor.CPU)
	assert.ErrorIs(t, err, serialization.ErrTensorNotFound)
}

func TestNewReader_DetectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, serialization.NewWriter(&buf).WriteStateDict(sampleState(), serialization.Header{}))
	clean := buf.Bytes()

	open := func(data []byte) error {
		_, err := serialization.NewReader(bytes.NewReader(data), int64(len(data)))
		return err
	}
	require.NoError(t, open(clean))

	flipped := bytes.Clone(clean)
	flipped[len(flipped)-1] ^= 0xFF
	assert.ErrorIs(t, open(flipped), serialization.ErrChecksumMismatch)

	header := bytes.Clone(clean)
	header[serialization.FixedHeaderSize+2] ^= 0x01
	assert.ErrorIs(t, open(header), serialization.ErrChecksumMismatch)

	magic := bytes.Clone(clean)
	copy(magic, "NOPE")
	assert.ErrorIs(t, open(magic), serialization.ErrInvalidMagic)

	version := bytes.Clone(clean)
	version[4] = 7
	assert.ErrorIs(t, open(version), serialization.ErrUnsupportedVersion)

	assert.Error(t, open(clean[:len(clean)-3]))
	assert.Error(t, open(clean[:10]))
}

func TestWriteStateDict_RejectsBadNames(t *testing.T) {
	state := map[string]*tensor.RawTensor{"../evil": tensor.MustRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)}
	var buf bytes.Buffer
	assert.Error(t, serialization.NewWriter(&buf).WriteStateDict(state, serialization.Header{}))
}

func TestSaveLoad_Model(t *testing.T) {
	cfg := nn.Config{VocabSize: 10, ModelDim: 8, NumHeads: 2, NumLayers: 1, FFDim: 16, MaxSeqLen: 4, Seed: 1}
	src := nn.NewSeq2Seq(cfg, cpu.New())

	path := filepath.Join(t.TempDir(), "nested", "model.s2s")
	require.NoError(t, serialization.Save(path, src.StateDict(), serialization.Header{}))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be renamed away")

	state, header, err := serialization.Load(path, tensor.CPU)
	require.NoError(t, err)
	assert.Equal(t, serialization.KindModel, header.Kind)
	assert.Nil(t, header.Checkpoint)

	cfg.Seed = 99
	dst := nn.NewSeq2Seq(cfg, cpu.New())
	require.NoError(t, dst.LoadStateDict(state))
	for name, raw := range src.StateDict() {
		assert.Equal(t, raw.AsFloat32(), dst.StateDict()[name].AsFloat32(), name)
	}
	assert.Same(t, dst.Embedding().Weight, dst.Projection().Weight())

	_, _, err = serialization.Load(filepath.Join(t.TempDir(), "absent.s2s"), tensor.CPU)
	assert.Error(t, err)
}
