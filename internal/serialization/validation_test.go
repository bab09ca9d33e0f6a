package serialization

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		wantType string
	}{
		{
			name: "contiguous",
			tensors: []TensorMeta{
				{Name: "b", Offset: 100, Size: 200},
				{Name: "a", Offset: 0, Size: 100},
			},
			dataSize: 300,
		},
		{
			name: "overlap by one byte",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 100},
				{Name: "b", Offset: 99, Size: 100},
			},
			dataSize: 300,
			wantType: "offset_overlap",
		},
		{
			name:     "past the end",
			tensors:  []TensorMeta{{Name: "a", Offset: 50, Size: 100}},
			dataSize: 120,
			wantType: "out_of_bounds",
		},
		{
			name:     "negative offset",
			tensors:  []TensorMeta{{Name: "a", Offset: -4, Size: 4}},
			dataSize: 100,
			wantType: "negative_offset",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.wantType == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.wantType, verr.Type)
		})
	}
}

func TestValidateTensorName(t *testing.T) {
	for _, name := range []string{
		"shared_embedding.weight",
		"decoder.layers.0.cross_attn.wq.weight",
		"adam.exp_avg.projection.bias",
	} {
		assert.NoError(t, ValidateTensorName(name), name)
	}
	for _, name := range []string{
		"",
		"../etc/passwd",
		"a/b",
		`a\b`,
		"a\x00b",
		strings.Repeat("x", MaxTensorNameLen+1),
	} {
		assert.Error(t, ValidateTensorName(name), "%q", name)
	}
}

func TestValidateHeader(t *testing.T) {
	valid := func() Header {
		return Header{
			FormatVersion: FormatVersion,
			Tensors: []TensorMeta{
				{Name: "w", DType: "float32", Shape: []int{2, 3}, Offset: 0, Size: 24},
				{Name: "step", DType: "int32", Shape: []int{1}, Offset: 24, Size: 4},
			},
		}
	}

	h := valid()
	require.NoError(t, ValidateHeader(&h, 28))

	h = valid()
	h.FormatVersion = 9
	assert.ErrorIs(t, ValidateHeader(&h, 28), ErrUnsupportedVersion)

	h = valid()
	h.Tensors[1].Name = "w"
	assert.ErrorContains(t, ValidateHeader(&h, 28), "duplicate_name")

	h = valid()
	h.Tensors[0].DType = "float16"
	assert.ErrorContains(t, ValidateHeader(&h, 28), "unknown_dtype")

	h = valid()
	h.Tensors[0].Size = 20
	assert.ErrorContains(t, ValidateHeader(&h, 28), "size_mismatch")

	h = valid()
	h.Tensors[0].Shape = []int{0, 3}
	assert.ErrorContains(t, ValidateHeader(&h, 28), "invalid_shape")

	h = valid()
	assert.ErrorContains(t, ValidateHeader(&h, 27), "out_of_bounds")
}

func TestValidationError_Messages(t *testing.T) {
	assert.Equal(t, `offset_overlap: tensors "a" and "b": x`,
		(&ValidationError{Type: "offset_overlap", Tensor: "a", Tensor2: "b", Details: "x"}).Error())
	assert.Equal(t, `invalid_name: tensor "a": x`,
		(&ValidationError{Type: "invalid_name", Tensor: "a", Details: "x"}).Error())
	assert.Equal(t, "too_many_tensors: x",
		(&ValidationError{Type: "too_many_tensors", Details: "x"}).Error())
}
