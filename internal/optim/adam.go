package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// State dict keys. Moments are stored per parameter name so a checkpoint
// can be restored into a freshly built model.
const (
	stepKey         = "adam.step"
	firstMomentFmt  = "adam.exp_avg.%s"
	secondMomentFmt = "adam.exp_avg_sq.%s"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)   // Parameter update
//
// The shared embedding table is a single Parameter, so it is updated
// exactly once per Step no matter how many places read it.
//
// Example:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{
//	    LR:    1.0,
//	    Betas: [2]float32{0.9, 0.98},
//	    Eps:   1e-9,
//	}, backend)
type Adam[B tensor.Backend] struct {
	params  []*nn.Parameter[B]
	lr      float32
	beta1   float32
	beta2   float32
	eps     float32
	t       int                                   // Timestep for bias correction
	m       map[string]*tensor.Tensor[float32, B] // First moment estimates by parameter name
	v       map[string]*tensor.Tensor[float32, B] // Second moment estimates by parameter name
	backend B
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer over params. Zero fields of config
// take the defaults listed on AdamConfig.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		m:       make(map[string]*tensor.Tensor[float32, B]),
		v:       make(map[string]*tensor.Tensor[float32, B]),
		backend: backend,
	}
}

// Step performs a single optimization step. Parameters with no gradient
// are skipped but the timestep still advances.
func (a *Adam[B]) Step(grads Gradients) {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		m, v := a.moments(param)
		a.updateParameter(param, grad.AsFloat32(), m.Data(), v.Data(), biasCorrection1, biasCorrection2)
	}
}

func (a *Adam[B]) moments(param *nn.Parameter[B]) (m, v *tensor.Tensor[float32, B]) {
	name := param.Name()
	m, ok := a.m[name]
	if !ok {
		m = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
		a.m[name] = m
	}
	v, ok = a.v[name]
	if !ok {
		v = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
		a.v[name] = v
	}
	return m, v
}

// updateParameter performs the Adam update for a single parameter in place.
func (a *Adam[B]) updateParameter(
	param *nn.Parameter[B],
	gradData, mData, vData []float32,
	biasCorrection1, biasCorrection2 float32,
) {
	paramData := param.Tensor().Data()
	for i := range paramData {
		g := gradData[i]
		mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
		vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2
		paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate. The trainer calls it with the schedule
// value before every Step.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the number of Steps taken so far.
func (a *Adam[B]) GetTimestep() int {
	return a.t
}

// StateDict returns the timestep and both moment estimates of every
// parameter updated so far. Moment tensors are copies.
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, 2*len(a.m)+1)

	step := tensor.MustRaw(tensor.Shape{1}, tensor.Int32, a.backend.Device())
	step.AsInt32()[0] = int32(a.t) //nolint:gosec // step counts stay far below 2^31
	state[stepKey] = step

	for name, m := range a.m {
		state[fmt.Sprintf(firstMomentFmt, name)] = m.Raw().Clone()
		state[fmt.Sprintf(secondMomentFmt, name)] = a.v[name].Raw().Clone()
	}
	return state
}

// LoadStateDict restores the timestep and moment estimates. Parameters
// without saved moments start from zero moments.
func (a *Adam[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	step, ok := state[stepKey]
	if !ok || step.DType() != tensor.Int32 || step.NumElements() != 1 {
		return fmt.Errorf("adam: state dict has no valid %q entry", stepKey)
	}

	m := make(map[string]*tensor.Tensor[float32, B], len(a.params))
	v := make(map[string]*tensor.Tensor[float32, B], len(a.params))
	for _, param := range a.params {
		name := param.Name()
		first, hasFirst := state[fmt.Sprintf(firstMomentFmt, name)]
		second, hasSecond := state[fmt.Sprintf(secondMomentFmt, name)]
		if hasFirst != hasSecond {
			return fmt.Errorf("adam: %q has only one of its two moments", name)
		}
		if !hasFirst {
			continue
		}
		for _, raw := range []*tensor.RawTensor{first, second} {
			if raw.DType() != tensor.Float32 || !raw.Shape().Equal(param.Tensor().Shape()) {
				return fmt.Errorf("adam: %q: moment %s %v does not match parameter %v",
					name, raw.DType(), raw.Shape(), param.Tensor().Shape())
			}
		}
		m[name] = tensor.New[float32](first.Clone(), a.backend)
		v[name] = tensor.New[float32](second.Clone(), a.backend)
	}

	a.t = int(step.AsInt32()[0])
	a.m = m
	a.v = v
	return nil
}
