package nn

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// StateDict maps every parameter name to its tensor storage. The returned
// tensors alias the live parameters.
func StateDict[B tensor.Backend](params []*Parameter[B]) map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		state[p.Name()] = p.Tensor().Raw()
	}
	return state
}

// LoadStateDict copies values from state into params in place. Every
// parameter must be present with a matching shape and dtype.
func LoadStateDict[B tensor.Backend](params []*Parameter[B], state map[string]*tensor.RawTensor) error {
	for _, p := range params {
		raw, ok := state[p.Name()]
		if !ok {
			return fmt.Errorf("missing %q in state dict", p.Name())
		}
		if raw.DType() != tensor.Float32 {
			return fmt.Errorf("%q: dtype mismatch: expected float32, got %s", p.Name(), raw.DType())
		}
		if err := p.Tensor().Raw().CopyFrom(raw); err != nil {
			return fmt.Errorf("%q: %w", p.Name(), err)
		}
	}
	return nil
}

// StateDict returns the model's parameters by name.
func (m *Seq2Seq[B]) StateDict() map[string]*tensor.RawTensor {
	return StateDict(m.Parameters())
}

// LoadStateDict restores the model's parameters from state.
func (m *Seq2Seq[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return LoadStateDict(m.Parameters(), state)
}
