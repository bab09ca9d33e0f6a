package nn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/tensor"
)

func TestSeq2Seq_ForwardShape(t *testing.T) {
	b := newTestBackend()
	model := NewSeq2Seq(tinyConfig(), b)

	src := ids([]int32{4, 5, 6, 7, 8, 0}, tensor.Shape{2, 3}, b)
	tgt := ids([]int32{2, 4, 5, 2, 6, 0}, tensor.Shape{2, 3}, b)

	logits, err := model.Forward(src, tgt)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3, 10}, logits.Shape())
}

func TestSeq2Seq_ForwardErrors(t *testing.T) {
	b := newTestBackend()
	model := NewSeq2Seq(tinyConfig(), b)

	long := ids([]int32{1, 2, 3, 4, 5}, tensor.Shape{1, 5}, b)
	short := ids([]int32{1, 2}, tensor.Shape{1, 2}, b)

	_, err := model.Forward(long, short)
	assert.True(t, errors.Is(err, ErrSequenceTooLong))

	_, err = model.Forward(short, long)
	assert.True(t, errors.Is(err, ErrSequenceTooLong))

	_, err = model.Forward(short, ids([]int32{1, 2, 3, 4}, tensor.Shape{2, 2}, b))
	assert.True(t, errors.Is(err, ErrDimMismatch))
}

func TestSeq2Seq_InvalidConfigPanics(t *testing.T) {
	cfg := tinyConfig()
	cfg.NumHeads = 3
	assert.Panics(t, func() { NewSeq2Seq(cfg, newTestBackend()) })
}

func TestSeq2Seq_Parameters(t *testing.T) {
	b := newTestBackend()
	cfg := tinyConfig()
	model := NewSeq2Seq(cfg, b)

	params := model.Parameters()
	names := make(map[string]bool, len(params))
	for _, p := range params {
		assert.False(t, names[p.Name()], "duplicate parameter %s", p.Name())
		names[p.Name()] = true
	}
	assert.True(t, names["shared_embedding.weight"])
	assert.True(t, names["projection.bias"])
	assert.True(t, names["decoder.layers.0.cross_attn.wq.weight"])
	assert.False(t, names["encoder.layers.0.self_attn.wq.bias"], "attention projections have no bias")

	d, v, f := cfg.ModelDim, cfg.VocabSize, cfg.FFDim
	norm := 2 * d
	attn := 4 * d * d
	ffn := d*f + f + f*d + d
	encoderLayer := attn + ffn + 2*norm
	decoderLayer := 2*attn + ffn + 3*norm
	want := v*d + encoderLayer + norm + decoderLayer + norm + v
	assert.Equal(t, want, model.NumParameters())
}

func TestSeq2Seq_StateDictRoundTrip(t *testing.T) {
	cfg := tinyConfig()
	a := NewSeq2Seq(cfg, newTestBackend())
	cfg.Seed = 7
	c := NewSeq2Seq(cfg, newTestBackend())

	require.NoError(t, c.LoadStateDict(a.StateDict()))
	for name, raw := range a.StateDict() {
		assert.Equal(t, raw.AsFloat32(), c.StateDict()[name].AsFloat32(), name)
	}

	// The tie survives loading.
	assert.Same(t, c.Embedding().Weight, c.Projection().Weight())

	state := a.StateDict()
	delete(state, "projection.bias")
	assert.Error(t, c.LoadStateDict(state))
}

func TestSeq2Seq_TrainEval(t *testing.T) {
	model := NewSeq2Seq(tinyConfig(), newTestBackend())
	assert.False(t, model.Training())
	model.Train()
	assert.True(t, model.Training())
	model.Eval()
	assert.False(t, model.Training())
}

func TestSeq2Seq_GradientReachesSharedTable(t *testing.T) {
	b := newTestBackend()
	model := NewSeq2Seq(tinyConfig(), b)
	loss := NewLabelSmoothedCrossEntropy(0.1, 0, b)

	src := ids([]int32{4, 5, 6}, tensor.Shape{1, 3}, b)
	tgtIn := ids([]int32{2, 7, 8}, tensor.Shape{1, 3}, b)
	tgtOut := ids([]int32{7, 8, 3}, tensor.Shape{1, 3}, b)

	b.Tape().StartRecording()
	logits, err := model.Forward(src, tgtIn)
	require.NoError(t, err)
	grads := autodiff.Backward(loss.Forward(logits, tgtOut), b)
	b.Tape().StopRecording()

	for _, p := range model.Parameters() {
		g, ok := grads[p.Tensor().Raw()]
		require.True(t, ok, "no gradient for %s", p.Name())
		assert.Equal(t, p.Tensor().Shape(), g.Shape(), p.Name())
	}

	// Rows for ids never used still get gradient through the projection.
	table := grads[model.Embedding().Weight.Tensor().Raw()].AsFloat32()
	var unusedRow float32
	for _, v := range table[9*8 : 10*8] {
		unusedRow += v * v
	}
	assert.Greater(t, unusedRow, float32(0))
}
