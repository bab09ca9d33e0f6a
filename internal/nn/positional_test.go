package nn

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seq2seq/internal/tensor"
)

func TestPositionalEncoding_Table(t *testing.T) {
	b := newTestBackend()
	pe := NewPositionalEncoding(16, 6, NewDropout(0, NewNoise(1), b), b)

	a := pe.Table(5)
	c := pe.Table(5)
	assert.Equal(t, tensor.Shape{1, 5, 6}, a.Shape())
	assert.Equal(t, a.Data(), c.Data(), "identical lengths must give identical tables")

	assert.Equal(t, []float32{0, 1, 0, 1, 0, 1}, a.Data()[:6])

	// Prefix slices agree with longer tables.
	long := pe.Table(16)
	assert.Equal(t, a.Data(), long.Data()[:5*6])

	// pos=3, feature 2 uses sin(3 / 10000^(2/6)).
	want := math.Sin(3 / math.Pow(10000, 2.0/6.0))
	assert.InDelta(t, want, long.At(0, 3, 2), 1e-6)
	assert.InDelta(t, math.Cos(3/math.Pow(10000, 2.0/6.0)), long.At(0, 3, 3), 1e-6)
}

func TestPositionalEncoding_Check(t *testing.T) {
	b := newTestBackend()
	pe := NewPositionalEncoding(4, 8, NewDropout(0, NewNoise(1), b), b)

	assert.NoError(t, pe.Check(4, 8))
	assert.True(t, errors.Is(pe.Check(5, 8), ErrSequenceTooLong))
	assert.True(t, errors.Is(pe.Check(2, 6), ErrDimMismatch))

	assert.Panics(t, func() { pe.Forward(randn(tensor.Shape{1, 5, 8}, 1, b)) })
}

func TestPositionalEncoding_ForwardAddsTable(t *testing.T) {
	b := newTestBackend()
	pe := NewPositionalEncoding(4, 4, NewDropout(0.5, NewNoise(1), b), b)

	x := tensor.Zeros[float32](tensor.Shape{2, 3, 4}, b)
	out := pe.Forward(x)
	require.Equal(t, x.Shape(), out.Shape())
	table := pe.Table(3).Data()
	assert.Equal(t, table, out.Data()[:12])
	assert.Equal(t, table, out.Data()[12:])
}
