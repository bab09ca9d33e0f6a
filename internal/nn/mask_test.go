package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/seq2seq/internal/tensor"
)

func TestPaddingMask(t *testing.T) {
	b := newTestBackend()
	m := PaddingMask(ids([]int32{3, 4, 0, 7, 0, 0}, tensor.Shape{2, 3}, b), 0)
	assert.Equal(t, tensor.Shape{2, 1, 1, 3}, m.Shape())
	assert.Equal(t, []bool{true, true, false, true, false, false}, m.Data())
}

func TestCausalMask(t *testing.T) {
	b := newTestBackend()
	m := CausalMask(3, b)
	assert.Equal(t, tensor.Shape{1, 1, 3, 3}, m.Shape())
	assert.Equal(t, []bool{
		true, false, false,
		true, true, false,
		true, true, true,
	}, m.Data())
}

func TestTargetMask(t *testing.T) {
	b := newTestBackend()
	m := TargetMask(ids([]int32{1, 5, 0}, tensor.Shape{1, 3}, b), 0)
	assert.Equal(t, tensor.Shape{1, 1, 3, 3}, m.Shape())
	assert.Equal(t, []bool{
		true, false, false,
		true, true, false,
		true, true, false,
	}, m.Data())
}
