package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Reader decodes a container. The checksum is verified when the reader is
// created, so tensors read afterwards are known to be intact.
type Reader struct {
	src        io.ReaderAt
	closer     io.Closer
	header     Header
	flags      uint32
	dataOffset int64
}

// NewReader parses and verifies a container of size bytes read from src.
func NewReader(src io.ReaderAt, size int64) (*Reader, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := src.ReadAt(fixed, 0); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	r := &Reader{src: src, flags: binary.LittleEndian.Uint32(fixed[8:12])}
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	r.dataOffset = alignedHeaderEnd(int64(headerSize))                  //nolint:gosec // G115: bounded by MaxHeaderSize
	if dataSize > uint64(size) || r.dataOffset+int64(dataSize) > size { //nolint:gosec // G115: checked against size first
		return nil, fmt.Errorf("truncated file: need %d data bytes after offset %d, have %d bytes total",
			dataSize, r.dataOffset, size)
	}

	headerJSON := make([]byte, headerSize)
	if _, err := src.ReadAt(headerJSON, FixedHeaderSize); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var stored [32]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])
	computed, err := ComputeChecksumReader(io.MultiReader(
		bytes.NewReader(headerJSON),
		io.NewSectionReader(src, r.dataOffset, int64(dataSize)), //nolint:gosec // G115: checked above
	))
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if err := ValidateChecksum(computed, stored); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(headerJSON, &r.header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	if err := ValidateHeader(&r.header, int64(dataSize)); err != nil { //nolint:gosec // G115: checked above
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return r, nil
}

// Open opens and verifies the container at path.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path) //nolint:gosec // G304: model path comes from the caller
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	r, err := NewReader(file, info.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = file
	return r, nil
}

// Header returns the parsed header.
func (r *Reader) Header() Header {
	return r.header
}

// Flags returns the flag word of the fixed header.
func (r *Reader) Flags() uint32 {
	return r.flags
}

// TensorNames returns the tensor names in storage order.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, t := range r.header.Tensors {
		names[i] = t.Name
	}
	return names
}

// LoadTensor reads one tensor onto device.
func (r *Reader) LoadTensor(name string, device tensor.Device) (*tensor.RawTensor, error) {
	for _, meta := range r.header.Tensors {
		if meta.Name == name {
			return r.load(meta, device)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
}

func (r *Reader) load(meta TensorMeta, device tensor.Device) (*tensor.RawTensor, error) {
	dtype, _ := tensor.ParseDataType(meta.DType) // checked by ValidateHeader
	raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype, device)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
	}
	if _, err := r.src.ReadAt(raw.Data(), r.dataOffset+meta.Offset); err != nil {
		return nil, fmt.Errorf("failed to read tensor %s: %w", meta.Name, err)
	}
	return raw, nil
}

// ReadStateDict reads every tensor onto device.
func (r *Reader) ReadStateDict(device tensor.Device) (map[string]*tensor.RawTensor, error) {
	state := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		raw, err := r.load(meta, device)
		if err != nil {
			return nil, err
		}
		state[meta.Name] = raw
	}
	return state, nil
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Load reads a whole container from path.
func Load(path string, device tensor.Device) (map[string]*tensor.RawTensor, Header, error) {
	r, err := Open(path)
	if err != nil {
		return nil, Header{}, err
	}
	defer r.Close()

	state, err := r.ReadStateDict(device)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%s: %w", path, err)
	}
	return state, r.Header(), nil
}
