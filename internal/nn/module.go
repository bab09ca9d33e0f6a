// Package nn implements the neural network modules of the translation model.
//
// This package provides the building blocks of an encoder-decoder
// transformer:
//   - Module interface and Parameter with gradient tracking
//   - Linear, LayerNorm, Dropout, Embedding and sinusoidal positional encoding
//   - Multi-head scaled dot-product attention and the position-wise feed-forward block
//   - Pre-norm residual wrapper over a closed set of sublayers
//   - Encoder and decoder stacks, a projection tied to the embedding table
//   - Mask builders and the label-smoothed cross-entropy loss
//   - Seq2Seq, the complete model
package nn

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Module is the base interface for single-input neural network components.
//
// Modules can be composed to build larger blocks; composites return the
// union of their children's parameters.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	// Returns an empty slice for modules without trainable parameters.
	Parameters() []*Parameter[B]
}

// join builds dotted parameter names such as "encoder.layers.0.ffn.linear1".
func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
