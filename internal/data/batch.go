package data

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Batch is a group of examples padded to rectangular [size, len] arrays.
type Batch struct {
	Source [][]int32
	Target [][]int32
}

// Size returns the number of rows.
func (b Batch) Size() int {
	return len(b.Source)
}

// Shift splits the target for teacher forcing: the decoder input drops the
// last column and the expected output drops the first.
func (b Batch) Shift() (in, out [][]int32) {
	in = make([][]int32, len(b.Target))
	out = make([][]int32, len(b.Target))
	for i, row := range b.Target {
		in[i] = row[:len(row)-1]
		out[i] = row[1:]
	}
	return in, out
}

// Collate pads every source to the longest source and every target to the
// longest target of examples.
func Collate(examples []Example, pad int32) Batch {
	var srcLen, tgtLen int
	for _, ex := range examples {
		srcLen = max(srcLen, len(ex.Source))
		tgtLen = max(tgtLen, len(ex.Target))
	}

	b := Batch{
		Source: make([][]int32, len(examples)),
		Target: make([][]int32, len(examples)),
	}
	for i, ex := range examples {
		b.Source[i] = padRow(ex.Source, srcLen, pad)
		b.Target[i] = padRow(ex.Target, tgtLen, pad)
	}
	return b
}

func padRow(ids []int32, length int, pad int32) []int32 {
	row := make([]int32, length)
	n := copy(row, ids)
	for i := n; i < length; i++ {
		row[i] = pad
	}
	return row
}

// ToTensor copies rectangular rows into a [len(rows), len(rows[0])] tensor.
// Panics if rows are ragged.
func ToTensor[B tensor.Backend](rows [][]int32, backend B) *tensor.Tensor[int32, B] {
	if len(rows) == 0 {
		panic("ToTensor: no rows")
	}
	width := len(rows[0])
	flat := make([]int32, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			panic(fmt.Sprintf("ToTensor: row %d has %d ids, expected %d", i, len(row), width))
		}
		flat = append(flat, row...)
	}
	return tensor.MustFromSlice(flat, tensor.Shape{len(rows), width}, backend)
}

// Batcher cuts a dataset into padded batches, optionally reshuffled every
// epoch from a fixed seed.
type Batcher struct {
	examples  []Example
	batchSize int
	shuffle   bool
	seed      int64
	pad       int32
}

// NewBatcher creates a batcher. Panics if batchSize is not positive.
func NewBatcher(examples []Example, batchSize int, shuffle bool, seed int64, pad int32) *Batcher {
	if batchSize <= 0 {
		panic(fmt.Sprintf("NewBatcher: batch size must be positive, got %d", batchSize))
	}
	return &Batcher{examples: examples, batchSize: batchSize, shuffle: shuffle, seed: seed, pad: pad}
}

// Len returns the number of batches per epoch. The last batch may be short.
func (b *Batcher) Len() int {
	return (len(b.examples) + b.batchSize - 1) / b.batchSize
}

// NumExamples returns the dataset size.
func (b *Batcher) NumExamples() int {
	return len(b.examples)
}

// Batches returns the batches of epoch. With shuffling the order depends
// only on the seed and the epoch, so a resumed run sees the same order.
func (b *Batcher) Batches(epoch int) []Batch {
	order := make([]int, len(b.examples))
	for i := range order {
		order[i] = i
	}
	if b.shuffle {
		rng := rand.New(rand.NewSource(b.seed + int64(epoch))) //nolint:gosec // reproducible shuffling
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	batches := make([]Batch, 0, b.Len())
	for start := 0; start < len(order); start += b.batchSize {
		end := min(start+b.batchSize, len(order))
		group := make([]Example, 0, end-start)
		for _, idx := range order[start:end] {
			group = append(group, b.examples[idx])
		}
		batches = append(batches, Collate(group, b.pad))
	}
	return batches
}
