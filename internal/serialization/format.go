package serialization

import (
	"time"
)

// Format constants.
const (
	MagicBytes      = "S2SM"
	FormatVersion   = 1
	FixedHeaderSize = 64 // 0x40
	HeaderAlignment = 64
	ChecksumOffset  = 0x20
	ChecksumSize    = 32
)

// Flags.
const (
	FlagHasOptimizer uint32 = 1 << 0 // checkpoint with optimizer state
	FlagHasMetadata  uint32 = 1 << 1
)

// File kinds.
const (
	KindModel      = "model"
	KindCheckpoint = "checkpoint"
)

// Header is the JSON header of a container.
type Header struct {
	FormatVersion int               `json:"format_version"`
	Kind          string            `json:"kind"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Checkpoint    *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta is the training state saved next to the tensors.
type CheckpointMeta struct {
	Epoch int   `json:"epoch"` // epochs completed
	Step  int64 `json:"step"`  // optimizer steps taken

	// Best validation score behind the "best" file, and the reference
	// value of early stopping. Nil until a score exists.
	BestScore   *float64 `json:"best_score,omitempty"`
	MonitorBest *float64 `json:"monitor_best,omitempty"`
	BadEpochs   int      `json:"bad_epochs"` // epochs without improvement

	Optimizer       string             `json:"optimizer"` // e.g. "adam"
	OptimizerConfig map[string]float64 `json:"optimizer_config,omitempty"`
}

// TensorMeta locates one tensor inside the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`
}

func alignedHeaderEnd(headerSize int64) int64 {
	end := int64(FixedHeaderSize) + headerSize
	padding := (HeaderAlignment - end%HeaderAlignment) % HeaderAlignment
	return end + padding
}
