package autodiff

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// BackwardCapable is implemented by backends that own a gradient tape.
type BackwardCapable interface {
	tensor.Backend
	Tape() *GradientTape
}

// Backward computes gradients of t with respect to every recorded tensor,
// seeding the output gradient with ones.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := model.Forward(...)
//	grads := autodiff.Backward(loss, backend)
//	grad := grads[param.Tensor().Raw()]
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.Tape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}
	if t.DType() != tensor.Float32 {
		panic(fmt.Sprintf("backward: unsupported dtype %s", t.DType()))
	}

	seed := tensor.MustRaw(t.Shape(), tensor.Float32, backend.Device())
	data := seed.AsFloat32()
	for i := range data {
		data[i] = 1
	}

	return tape.Backward(t.Raw(), seed, backend)
}
