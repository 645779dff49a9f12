// SPDX-License-Identifier: MIT

package trainer

import (
	"errors"
	"fmt"
	"math"

	"github.com/katalvlaran/lvlnn/tensor"
)

// Sentinel errors.
var (
	// ErrNoParams indicates an optimizer was built over an empty set.
	ErrNoParams = errors.New("trainer: no parameters to optimize")
	// ErrBadLearningRate indicates a non-positive learning rate.
	ErrBadLearningRate = errors.New("trainer: learning rate must be > 0")
)

// Adam defaults.
const (
	DefaultLearningRate = 1e-3
	DefaultBeta1        = 0.9
	DefaultBeta2        = 0.999
	DefaultAdamEps      = 1e-8
)

// AdamConfig carries the optimizer hyperparameters. Zero Beta1/Beta2/Eps
// select the defaults; LearningRate must be set explicitly.
type AdamConfig struct {
	LearningRate float64
	WeightDecay  float64
	Beta1        float64
	Beta2        float64
	Eps          float64
}

// Adam is the Adam optimizer with decoupled parameter lists: first and
// second moment estimates are kept per parameter, indexed by position.
type Adam struct {
	cfg    AdamConfig
	params []*tensor.Tensor
	step   int
	m      [][]float64
	v      [][]float64
}

// NewAdam validates cfg and allocates moment state for params.
//
// Errors: ErrNoParams, ErrBadLearningRate.
func NewAdam(params []*tensor.Tensor, cfg AdamConfig) (*Adam, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("NewAdam: %w", ErrNoParams)
	}
	if cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("NewAdam: %w", ErrBadLearningRate)
	}
	if cfg.Beta1 == 0 {
		cfg.Beta1 = DefaultBeta1
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = DefaultBeta2
	}
	if cfg.Eps == 0 {
		cfg.Eps = DefaultAdamEps
	}

	a := &Adam{
		cfg:    cfg,
		params: params,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
	}
	for i, p := range params {
		n := p.Rows() * p.Cols()
		a.m[i] = make([]float64, n)
		a.v[i] = make([]float64, n)
	}
	return a, nil
}

// ZeroGrad clears every parameter's gradient buffer.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}

// Step applies one Adam update with bias correction. Parameters whose
// gradient buffer was never touched this step are skipped; weight decay
// is added to the gradient before the moment updates.
func (a *Adam) Step() {
	a.step++
	c1 := 1 - math.Pow(a.cfg.Beta1, float64(a.step))
	c2 := 1 - math.Pow(a.cfg.Beta2, float64(a.step))

	for i, p := range a.params {
		grad := p.Grad()
		if grad == nil {
			continue
		}
		w := p.Data()
		m, v := a.m[i], a.v[i]
		for j, g := range grad {
			if a.cfg.WeightDecay != 0 {
				g += a.cfg.WeightDecay * w[j]
			}
			m[j] = a.cfg.Beta1*m[j] + (1-a.cfg.Beta1)*g
			v[j] = a.cfg.Beta2*v[j] + (1-a.cfg.Beta2)*g*g
			w[j] -= a.cfg.LearningRate * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.cfg.Eps)
		}
	}
}
