package nn

import (
	"math/rand"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/backend/cpu"
	"github.com/born-ml/seq2seq/internal/tensor"
)

type testBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newTestBackend() testBackend {
	return autodiff.New(cpu.New())
}

// tinyConfig is the smallest model that still exercises every block.
func tinyConfig() Config {
	return Config{
		VocabSize: 10,
		ModelDim:  8,
		NumHeads:  2,
		NumLayers: 1,
		FFDim:     16,
		Dropout:   0.1,
		MaxSeqLen: 4,
		PadID:     0,
		Seed:      42,
	}
}

func randn(shape tensor.Shape, seed int64, b testBackend) *tensor.Tensor[float32, testBackend] {
	return tensor.Randn(shape, 1, rand.New(rand.NewSource(seed)), b)
}

func ids(data []int32, shape tensor.Shape, b testBackend) *tensor.Tensor[int32, testBackend] {
	return tensor.MustFromSlice(data, shape, b)
}
