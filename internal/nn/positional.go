package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// PositionalEncoding adds fixed sinusoidal position information and then
// applies dropout.
//
// Mathematical formulation:
//
//	PE(pos, 2i)   = sin(pos / 10000^(2i/d))
//	PE(pos, 2i+1) = cos(pos / 10000^(2i/d))
//
// The [max_len, d] table is computed once at construction. Forward adds a
// prefix slice of it, so the values for a position never depend on the
// length of the sequence being encoded.
type PositionalEncoding[B tensor.Backend] struct {
	table   []float32 // [max_len * dim], row-major
	MaxLen  int
	Dim     int
	dropout *Dropout[B]
	backend B
}

// NewPositionalEncoding precomputes the sinusoid table for maxLen positions.
func NewPositionalEncoding[B tensor.Backend](maxLen, dim int, dropout *Dropout[B], backend B) *PositionalEncoding[B] {
	if maxLen <= 0 || dim <= 0 {
		panic(fmt.Sprintf("PositionalEncoding: maxLen and dim must be positive, got %d and %d", maxLen, dim))
	}

	table := make([]float32, maxLen*dim)
	for pos := 0; pos < maxLen; pos++ {
		for i := 0; i < dim; i += 2 {
			angle := float64(pos) / math.Pow(10000, float64(i)/float64(dim))
			table[pos*dim+i] = float32(math.Sin(angle))
			if i+1 < dim {
				table[pos*dim+i+1] = float32(math.Cos(angle))
			}
		}
	}

	return &PositionalEncoding[B]{
		table:   table,
		MaxLen:  maxLen,
		Dim:     dim,
		dropout: dropout,
		backend: backend,
	}
}

// Check reports whether a [*, seqLen, dim] input can be encoded.
func (p *PositionalEncoding[B]) Check(seqLen, dim int) error {
	if dim != p.Dim {
		return fmt.Errorf("positional encoding: feature dimension %d, table has %d: %w", dim, p.Dim, ErrDimMismatch)
	}
	if seqLen > p.MaxLen {
		return fmt.Errorf("positional encoding: sequence length %d, maximum is %d: %w", seqLen, p.MaxLen, ErrSequenceTooLong)
	}
	return nil
}

// Table returns the first seqLen rows of the table as a [1, seqLen, dim]
// tensor. Two calls with the same seqLen return identical values.
func (p *PositionalEncoding[B]) Table(seqLen int) *tensor.Tensor[float32, B] {
	if err := p.Check(seqLen, p.Dim); err != nil {
		panic(err)
	}
	rows := make([]float32, seqLen*p.Dim)
	copy(rows, p.table[:seqLen*p.Dim])
	return tensor.MustFromSlice(rows, tensor.Shape{1, seqLen, p.Dim}, p.backend)
}

// Forward adds positional encodings to x [batch, seq, dim] and applies
// dropout. Panics with a wrapped ErrDimMismatch or ErrSequenceTooLong.
func (p *PositionalEncoding[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 3 {
		panic(fmt.Errorf("positional encoding: expected [batch, seq, dim], got %v: %w", shape, ErrDimMismatch))
	}
	if err := p.Check(shape[1], shape[2]); err != nil {
		panic(err)
	}
	return p.dropout.Forward(x.Add(p.Table(shape[1])))
}

// Parameters returns nil; the encoding is not learned.
func (p *PositionalEncoding[B]) Parameters() []*Parameter[B] {
	return nil
}
