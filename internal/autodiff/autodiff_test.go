package autodiff_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/tensor"
)

type backendT = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() backendT {
	return autodiff.New(cpu.New())
}

func TestBackwardSquare(t *testing.T) {
	b := newBackend()
	b.Tape().StartRecording()

	x := tensor.MustFromSlice([]float32{2, -3}, tensor.Shape{2}, b)
	y := x.Mul(x).Sum()
	grads := autodiff.Backward(y, b)

	require.Contains(t, grads, x.Raw())
	assert.Equal(t, []float32{4, -6}, grads[x.Raw()].AsFloat32())
}

func TestBackwardWithoutRecordingPanics(t *testing.T) {
	b := newBackend()
	x := tensor.MustFromSlice([]float32{1}, tensor.Shape{1}, b)
	y := x.Mul(x)
	assert.Equal(t, 0, b.Tape().NumOps())
	assert.Panics(t, func() { autodiff.Backward(y, b) })
}

func TestTapeClear(t *testing.T) {
	b := newBackend()
	b.Tape().StartRecording()
	x := tensor.MustFromSlice([]float32{1}, tensor.Shape{1}, b)
	_ = x.Mul(x)
	assert.Equal(t, 1, b.Tape().NumOps())
	b.Tape().Clear()
	assert.Equal(t, 0, b.Tape().NumOps())
	assert.True(t, b.Tape().IsRecording())
}

func TestBroadcastGradientReduces(t *testing.T) {
	b := newBackend()
	b.Tape().StartRecording()

	x := tensor.MustFromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, b)
	bias := tensor.MustFromSlice([]float32{0, 0, 0}, tensor.Shape{3}, b)
	y := x.Add(bias).Sum()
	grads := autodiff.Backward(y, b)

	assert.Equal(t, tensor.Shape{3}, grads[bias.Raw()].Shape())
	assert.Equal(t, []float32{2, 2, 2}, grads[bias.Raw()].AsFloat32())
}

func TestMaskedFillBlocksGradient(t *testing.T) {
	b := newBackend()
	b.Tape().StartRecording()

	x := tensor.MustFromSlice([]float32{1, 2, 3}, tensor.Shape{3}, b)
	mask := tensor.MustFromSlice([]bool{false, true, false}, tensor.Shape{3}, b)
	y := x.MaskedFill(mask, -1e9).MulScalar(2).Sum()
	grads := autodiff.Backward(y, b)

	assert.Equal(t, []float32{2, 0, 2}, grads[x.Raw()].AsFloat32())
}

func TestEmbeddingScatterAdd(t *testing.T) {
	b := newBackend()
	b.Tape().StartRecording()

	w := tensor.MustFromSlice([]float32{1, 1, 2, 2, 3, 3}, tensor.Shape{3, 2}, b)
	ids := tensor.MustFromSlice([]int32{2, 0, 2}, tensor.Shape{3}, b)
	y := tensor.Embedding(w, ids).Sum()
	grads := autodiff.Backward(y, b)

	assert.Equal(t, []float32{1, 1, 0, 0, 2, 2}, grads[w.Raw()].AsFloat32())
}

// numericGrad estimates d f / d x[i] by central differences.
func numericGrad(x []float32, f func() float32) []float32 {
	const h = 1e-2
	grad := make([]float32, len(x))
	for i := range x {
		orig := x[i]
		x[i] = orig + h
		up := f()
		x[i] = orig - h
		down := f()
		x[i] = orig
		grad[i] = (up - down) / (2 * h)
	}
	return grad
}

func TestGradientCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	tests := []struct {
		name  string
		shape tensor.Shape
		fn    func(x *tensor.Tensor[float32, backendT]) *tensor.Tensor[float32, backendT]
	}{
		{"softmax", tensor.Shape{2, 4}, func(x *tensor.Tensor[float32, backendT]) *tensor.Tensor[float32, backendT] {
			w := tensor.MustFromSlice([]float32{1, -2, 3, 0.5, 2, 1, -1, 4}, tensor.Shape{2, 4}, x.Backend())
			return x.Softmax().Mul(w).Sum()
		}},
		{"layernorm", tensor.Shape{2, 3}, func(x *tensor.Tensor[float32, backendT]) *tensor.Tensor[float32, backendT] {
			centered := x.Sub(x.MeanDim(-1, true))
			variance := centered.Mul(centered).MeanDim(-1, true)
			w := tensor.MustFromSlice([]float32{1, 2, 3, -1, 0.5, 2}, tensor.Shape{2, 3}, x.Backend())
			return centered.Mul(variance.AddScalar(1e-5).Rsqrt()).Mul(w).Sum()
		}},
		{"batch matmul with transpose", tensor.Shape{1, 2, 2, 3}, func(x *tensor.Tensor[float32, backendT]) *tensor.Tensor[float32, backendT] {
			scores := x.BatchMatMul(x.Transpose(0, 1, 3, 2))
			return scores.Mul(scores).Sum()
		}},
		{"matmul relu", tensor.Shape{3, 2}, func(x *tensor.Tensor[float32, backendT]) *tensor.Tensor[float32, backendT] {
			w := tensor.MustFromSlice([]float32{1, -1, 0.5, 2}, tensor.Shape{2, 2}, x.Backend())
			return x.MatMul(w).ReLU().Sum()
		}},
		{"division", tensor.Shape{4}, func(x *tensor.Tensor[float32, backendT]) *tensor.Tensor[float32, backendT] {
			denom := x.Mul(x).AddScalar(1)
			return x.Div(denom).Sum()
		}},
		{"label smoothed cross-entropy", tensor.Shape{3, 5}, func(x *tensor.Tensor[float32, backendT]) *tensor.Tensor[float32, backendT] {
			targets := tensor.MustFromSlice([]int32{2, 0, 4}, tensor.Shape{3}, x.Backend())
			loss := x.Backend().LabelSmoothedCrossEntropy(x.Raw(), targets.Raw(), 0.1, 0)
			return tensor.New[float32](loss, x.Backend())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend()
			x := tensor.Randn(tt.shape, 1, rng, b)

			b.Tape().StartRecording()
			out := tt.fn(x)
			grads := autodiff.Backward(out, b)
			b.Tape().StopRecording()
			b.Tape().Clear()

			require.Contains(t, grads, x.Raw())
			analytic := grads[x.Raw()].AsFloat32()
			numeric := numericGrad(x.Data(), func() float32 { return tt.fn(x).Item() })
			assert.InDeltaSlice(t, numeric, analytic, 2e-2)
		})
	}
}
