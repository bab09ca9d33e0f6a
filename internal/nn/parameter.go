package nn

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Parameter represents a trainable tensor of a neural network.
//
// A Parameter is the single owner of its storage: modules that share a
// weight (the embedding table and the output projection) hold the same
// *Parameter, so an optimizer update is visible to every user at once.
//
// Example:
//
//	weight := nn.NewParameter("encoder.layers.0.ffn.linear1.weight", w)
//	grad := weight.Grad() // nil until a backward pass assigns it
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
	grad   *tensor.Tensor[float32, B]
}

// NewParameter creates a new trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Grad returns the gradient tensor, or nil before a backward pass.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}

// NumElements returns the number of scalar weights in the parameter.
func (p *Parameter[B]) NumElements() int {
	return p.tensor.NumElements()
}

// dedupe drops repeated parameters while keeping first-seen order.
func dedupe[B tensor.Backend](params []*Parameter[B]) []*Parameter[B] {
	seen := make(map[*Parameter[B]]bool, len(params))
	out := params[:0:0]
	for _, p := range params {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
