package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/parallel"
	"github.com/born-ml/seq2seq/internal/tensor"
)

func raw(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

func boolRaw(t *testing.T, data []bool, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Bool, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsBool(), data)
	return r
}

func intRaw(t *testing.T, data []int32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Int32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsInt32(), data)
	return r
}

func TestBinaryBroadcast(t *testing.T) {
	b := New()
	tests := []struct {
		name  string
		op    func(a, c *tensor.RawTensor) *tensor.RawTensor
		want  []float32
		shape tensor.Shape
	}{
		{"add", b.Add, []float32{11, 21, 12, 22, 13, 23}, tensor.Shape{3, 2}},
		{"sub", b.Sub, []float32{-9, -19, -8, -18, -7, -17}, tensor.Shape{3, 2}},
		{"mul", b.Mul, []float32{10, 20, 20, 40, 30, 60}, tensor.Shape{3, 2}},
		{"div", b.Div, []float32{0.1, 0.05, 0.2, 0.1, 0.3, 0.15}, tensor.Shape{3, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := raw(t, []float32{1, 2, 3}, 3, 1)
			c := raw(t, []float32{10, 20}, 2)
			out := tt.op(a, c)
			assert.Equal(t, tt.shape, out.Shape())
			assert.InDeltaSlice(t, tt.want, out.AsFloat32(), 1e-6)
		})
	}
}

func TestBinaryIncompatiblePanics(t *testing.T) {
	b := New()
	assert.Panics(t, func() {
		b.Add(raw(t, make([]float32, 6), 2, 3), raw(t, make([]float32, 4), 4))
	})
}

func TestMatMul(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	c := raw(t, []float32{7, 8, 9, 10, 11, 12}, 3, 2)
	out := b.MatMul(a, c)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, out.AsFloat32())
}

func TestBatchMatMul(t *testing.T) {
	b := New().WithParallel(parallel.Config{Enabled: true, NumWorkers: 2, MinChunkSize: 1})
	a := raw(t, []float32{1, 0, 0, 1, 2, 0, 0, 2}, 2, 1, 2, 2)
	c := raw(t, []float32{1, 2, 3, 4, 1, 2, 3, 4}, 2, 1, 2, 2)
	out := b.BatchMatMul(a, c)
	assert.Equal(t, tensor.Shape{2, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 2, 4, 6, 8}, out.AsFloat32())
}

func TestTranspose(t *testing.T) {
	b := New()
	x := raw(t, []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, 2, 3, 2)

	out := b.Transpose(x, 1, 0, 2)
	assert.Equal(t, tensor.Shape{3, 2, 2}, out.Shape())
	assert.Equal(t, []float32{0, 1, 6, 7, 2, 3, 8, 9, 4, 5, 10, 11}, out.AsFloat32())

	m := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	mt := b.Transpose(m)
	assert.Equal(t, tensor.Shape{3, 2}, mt.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, mt.AsFloat32())
}

func TestReshapeSharesStorage(t *testing.T) {
	b := New()
	x := raw(t, []float32{1, 2, 3, 4}, 2, 2)
	y := b.Reshape(x, tensor.Shape{4})
	assert.True(t, y.SharesStorage(x))
	assert.NotSame(t, x, y)
	assert.Panics(t, func() { b.Reshape(x, tensor.Shape{3}) })
}

func TestExpandBool(t *testing.T) {
	b := New()
	m := boolRaw(t, []bool{true, false}, 1, 2)
	out := b.Expand(m, tensor.Shape{3, 2})
	assert.Equal(t, []bool{true, false, true, false, true, false}, out.AsBool())
}

func TestSoftmaxRows(t *testing.T) {
	b := New()
	x := raw(t, []float32{1, 2, 3, -1e9, -1e9, -1e9}, 2, 3)
	out := b.Softmax(x).AsFloat32()

	var sum float32
	for _, v := range out[:3] {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.Greater(t, out[2], out[1])
	for _, v := range out[3:] {
		assert.InDelta(t, 1.0/3.0, v, 1e-6)
	}
}

func TestMaskedFill(t *testing.T) {
	b := New()
	x := raw(t, []float32{1, 2, 3, 4}, 2, 2)
	mask := boolRaw(t, []bool{false, true}, 2)
	out := b.MaskedFill(x, mask, -1e9)
	assert.Equal(t, []float32{1, -1e9, 3, -1e9}, out.AsFloat32())
	assert.Equal(t, []float32{1, 2, 3, 4}, x.AsFloat32(), "input must be untouched")
}

func TestAndNot(t *testing.T) {
	b := New()
	a := boolRaw(t, []bool{true, true, false}, 1, 3)
	c := boolRaw(t, []bool{true, false}, 2, 1)
	out := b.And(a, c)
	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.Equal(t, []bool{true, true, false, false, false, false}, out.AsBool())
	assert.Equal(t, []bool{false, false, true}, b.Not(a).AsBool())
}

func TestReductions(t *testing.T) {
	b := New()
	x := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	assert.Equal(t, float32(21), b.Sum(x).AsFloat32()[0])

	s := b.SumDim(x, 0, false)
	assert.Equal(t, tensor.Shape{3}, s.Shape())
	assert.Equal(t, []float32{5, 7, 9}, s.AsFloat32())

	m := b.MeanDim(x, -1, true)
	assert.Equal(t, tensor.Shape{2, 1}, m.Shape())
	assert.Equal(t, []float32{2, 5}, m.AsFloat32())
}

func TestArgmax(t *testing.T) {
	b := New()
	x := raw(t, []float32{0.1, 0.7, 0.2, 0.9, 0.05, 0.05}, 2, 3)
	out := b.Argmax(x, -1)
	assert.Equal(t, tensor.Shape{2}, out.Shape())
	assert.Equal(t, []int32{1, 0}, out.AsInt32())
}

func TestEmbedding(t *testing.T) {
	b := New()
	w := raw(t, []float32{0, 0, 1, 1, 2, 2}, 3, 2)
	ids := intRaw(t, []int32{2, 0, 1, 2}, 2, 2)
	out := b.Embedding(w, ids)
	assert.Equal(t, tensor.Shape{2, 2, 2}, out.Shape())
	assert.Equal(t, []float32{2, 2, 0, 0, 1, 1, 2, 2}, out.AsFloat32())

	assert.Panics(t, func() { b.Embedding(w, intRaw(t, []int32{3}, 1)) })
}

func TestLabelSmoothedCrossEntropy(t *testing.T) {
	b := New()

	t.Run("no smoothing matches plain cross-entropy", func(t *testing.T) {
		logits := raw(t, []float32{0, 0, 0, 0}, 1, 4)
		targets := intRaw(t, []int32{2}, 1)
		loss := b.LabelSmoothedCrossEntropy(logits, targets, 0, 0)
		assert.InDelta(t, math.Log(4), loss.AsFloat32()[0], 1e-6)
	})

	t.Run("padding rows are ignored", func(t *testing.T) {
		logits := raw(t, []float32{0, 0, 0, 0, 5, -5, 3, 1}, 2, 4)
		targets := intRaw(t, []int32{2, 0}, 2)
		loss := b.LabelSmoothedCrossEntropy(logits, targets, 0.1, 0)
		// Uniform logits: every log-prob is -log 4 and the target mass sums to 1.
		assert.InDelta(t, math.Log(4), loss.AsFloat32()[0], 1e-6)
	})

	t.Run("all padding gives zero", func(t *testing.T) {
		logits := raw(t, []float32{1, 2, 3, 4}, 1, 4)
		targets := intRaw(t, []int32{0}, 1)
		loss := b.LabelSmoothedCrossEntropy(logits, targets, 0.1, 0)
		assert.Equal(t, float32(0), loss.AsFloat32()[0])
	})

	t.Run("vocabulary too small", func(t *testing.T) {
		assert.Panics(t, func() {
			b.LabelSmoothedCrossEntropy(raw(t, []float32{1, 2}, 1, 2), intRaw(t, []int32{1}, 1), 0.1, 0)
		})
	})
}
