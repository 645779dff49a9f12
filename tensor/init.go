// SPDX-License-Identifier: MIT

// Parameter initialization & gradient hygiene.
//
// Xavier/Glorot uniform for weight matrices, plain uniform for everything
// the model initializes with a flat ±initWeight band, and value-clipping of
// accumulated gradients. All randomness flows through the RunContext.

package tensor

import (
	"math"

	"golang.org/x/exp/constraints"
)

// ClampMin returns max(v, lo) for any ordered type. Degree normalization
// clamps in-/out-degrees to a minimum of 1 with this helper.
func ClampMin[T constraints.Ordered](v, lo T) T {
	if v < lo {
		return lo
	}
	return v
}

// XavierUniform fills t with Glorot-uniform values drawn from ctx:
// U(-a, a) with a = sqrt(6/(fanIn+fanOut)), fanIn = rows, fanOut = cols.
//
// Errors: ErrNilTensor.
// Complexity: O(r*c).
func XavierUniform(t *Tensor, ctx *RunContext) error {
	if t == nil {
		return tensorErrorf(opXavierUniform, ErrNilTensor)
	}
	a := math.Sqrt(6 / float64(t.r+t.c))
	rng := ctx.Rand()
	for i := range t.data {
		t.data[i] = (rng.Float64()*2 - 1) * a
	}
	return nil
}

// FillUniform fills t with values from U(-bound, bound) drawn from ctx.
//
// Errors: ErrNilTensor.
// Complexity: O(r*c).
func FillUniform(t *Tensor, ctx *RunContext, bound float64) error {
	if t == nil {
		return tensorErrorf(opXavierUniform, ErrNilTensor)
	}
	rng := ctx.Rand()
	for i := range t.data {
		t.data[i] = (rng.Float64()*2 - 1) * bound
	}
	return nil
}

// Zeros clears all values of t (bias init).
// Complexity: O(r*c).
func Zeros(t *Tensor) {
	for i := range t.data {
		t.data[i] = 0
	}
}

// ClipGradValues clamps every accumulated gradient entry of params into
// [-clip, clip]. Parameters without gradients are skipped. A non-positive
// clip is a no-op, matching a disabled clipping bound.
// Complexity: O(total gradient elements).
func ClipGradValues(params []*Tensor, clip float64) {
	if clip <= 0 {
		return
	}
	for _, p := range params {
		if p == nil || p.grad == nil {
			continue
		}
		for i, g := range p.grad {
			if g > clip {
				p.grad[i] = clip
			} else if g < -clip {
				p.grad[i] = -clip
			}
		}
	}
}
