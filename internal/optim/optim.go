package optim

import (
	"errors"
	"math"

	"cyclegan-forge/internal/autograd"
)

// Optimizer updates a fixed set of parameters from their accumulated gradients.
type Optimizer interface {
	// ZeroGrad clears the gradient buffers of every registered parameter.
	ZeroGrad()
	// Step applies one update using the current gradients.
	Step()
}

// AdamConfig holds the Adam hyperparameters.
type AdamConfig struct {
	LearningRate float32
	Beta1        float32
	Beta2        float32
	Epsilon      float32
}

// DefaultAdamConfig returns the usual Adam defaults.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// Adam implements the Adam optimizer with bias-corrected moment estimates.
type Adam struct {
	cfg      AdamConfig
	params   []*autograd.Tensor
	momentum [][]float32
	variance [][]float32
	// StepCount is the number of Step calls, used for bias correction.
	StepCount uint64
}

// NewAdam registers params with a new Adam optimizer.
func NewAdam(cfg AdamConfig, params []*autograd.Tensor) (*Adam, error) {
	if len(params) == 0 {
		return nil, errors.New("optim: no parameters to optimize")
	}
	if cfg.LearningRate <= 0 {
		return nil, errors.New("optim: learning rate must be > 0")
	}
	if cfg.Beta1 < 0 || cfg.Beta1 >= 1 || cfg.Beta2 < 0 || cfg.Beta2 >= 1 {
		return nil, errors.New("optim: betas must be in [0, 1)")
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 1e-8
	}
	a := &Adam{
		cfg:      cfg,
		params:   params,
		momentum: make([][]float32, len(params)),
		variance: make([][]float32, len(params)),
	}
	for i, p := range params {
		a.momentum[i] = make([]float32, p.Len())
		a.variance[i] = make([]float32, p.Len())
	}
	return a, nil
}

// ZeroGrad clears every registered parameter's gradient.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}

// Step updates every parameter that has received a gradient. Parameters
// that were never reached by a backward pass are left untouched.
func (a *Adam) Step() {
	a.StepCount++
	t := float64(a.StepCount)
	bc1 := 1 - math.Pow(float64(a.cfg.Beta1), t)
	bc2 := 1 - math.Pow(float64(a.cfg.Beta2), t)
	stepSize := float64(a.cfg.LearningRate) / bc1
	b1, b2 := a.cfg.Beta1, a.cfg.Beta2

	for i, p := range a.params {
		if p.Grad == nil {
			continue
		}
		m, v := a.momentum[i], a.variance[i]
		for j, g := range p.Grad {
			m[j] = b1*m[j] + (1-b1)*g
			v[j] = b2*v[j] + (1-b2)*g*g
			denom := math.Sqrt(float64(v[j]))/math.Sqrt(bc2) + float64(a.cfg.Epsilon)
			p.Data[j] -= float32(stepSize * float64(m[j]) / denom)
		}
	}
}
