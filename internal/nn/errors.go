package nn

import "errors"

// Sentinel errors reported by model construction and the model surface.
var (
	// ErrDimMismatch reports a feature dimension that does not match the layer.
	ErrDimMismatch = errors.New("dimension mismatch")

	// ErrSequenceTooLong reports a sequence longer than the positional table.
	ErrSequenceTooLong = errors.New("sequence exceeds maximum length")
)
