package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Linear implements a fully connected layer: y = x @ W.T + b.
//
// W has shape [out_features, in_features] and b (optional) [out_features].
// Inputs of any rank are accepted; all leading dimensions are flattened for
// the matrix product and restored afterwards.
//
// Weights are initialized with Xavier uniform, biases with zeros.
//
// Example:
//
//	layer := nn.NewLinear("ffn.linear1", 512, 2048, true, rng, backend)
//	out := layer.Forward(x) // [batch, seq, 512] -> [batch, seq, 2048]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B]
	bias        *Parameter[B]
}

// NewLinear creates a new Linear layer named name. When withBias is false
// the layer has no bias parameter.
func NewLinear[B tensor.Backend](name string, inFeatures, outFeatures int, withBias bool, rng *rand.Rand, backend B) *Linear[B] {
	weight := Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng, backend)

	l := &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter(join(name, "weight"), weight),
	}
	if withBias {
		l.bias = NewParameter(join(name, "bias"), Zeros(tensor.Shape{outFeatures}, backend))
	}
	return l
}

// Forward computes y = x @ W.T + b over the last dimension of x.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) == 0 || shape.Last() != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got shape %v", l.inFeatures, shape))
	}

	rows := shape.NumElements() / l.inFeatures
	output := input.Reshape(rows, l.inFeatures).MatMul(l.weight.Tensor().Transpose())
	if l.bias != nil {
		output = output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
	}

	outShape := shape.Clone()
	outShape[len(outShape)-1] = l.outFeatures
	return output.Reshape(outShape...)
}

// Parameters returns [weight, bias], or [weight] without a bias.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	if l.bias != nil {
		return []*Parameter[B]{l.weight, l.bias}
	}
	return []*Parameter[B]{l.weight}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter, or nil.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}
