package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Writer encodes containers to an io.Writer.
type Writer struct {
	w io.Writer
}

// NewWriter creates a writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteStateDict writes stateDict with header. The tensor table of header
// is filled in, with tensors ordered by name. Kind defaults to KindModel and
// CreatedAt to the current time.
func (w *Writer) WriteStateDict(stateDict map[string]*tensor.RawTensor, header Header) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	slices.Sort(names)

	header.FormatVersion = FormatVersion
	if header.Kind == "" {
		header.Kind = KindModel
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}

	var dataSize int64
	header.Tensors = make([]TensorMeta, 0, len(names))
	for _, name := range names {
		raw := stateDict[name]
		size := int64(raw.ByteSize())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  raw.DType().String(),
			Shape:  []int(raw.Shape().Clone()),
			Offset: dataSize,
			Size:   size,
		})
		dataSize += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	data := make([]byte, 0, dataSize)
	for _, name := range names {
		data = append(data, stateDict[name].Data()...)
	}

	var flags uint32
	if header.Checkpoint != nil {
		flags |= FlagHasOptimizer
	}
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(dataSize)) //nolint:gosec // G115: sizes are non-negative
	checksum := ComputeChecksum(headerJSON, data)
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	padding := alignedHeaderEnd(int64(len(headerJSON))) - int64(FixedHeaderSize+len(headerJSON))
	for _, part := range [][]byte{fixed, headerJSON, make([]byte, padding), data} {
		if _, err := w.w.Write(part); err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
	}
	return nil
}

// Save writes a container to path. The file is written next to path and
// renamed into place, so an interrupted save never leaves a truncated file.
func Save(path string, stateDict map[string]*tensor.RawTensor, header Header) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // already renamed on success

	if err := NewWriter(tmp).WriteStateDict(stateDict, header); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
