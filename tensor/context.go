// SPDX-License-Identifier: MIT

package tensor

import "math/rand"

// Device identifies the numeric backend a RunContext resolves to.
// The pure-Go backend is the only one compiled into this module.
const (
	// DeviceCPU is the pure-Go float64 backend.
	DeviceCPU = "cpu"
)

// DefaultEpsilon is the numeric floor used when taking logarithms of
// probability mixtures and comparing floats.
const DefaultEpsilon = 1e-12

// RunContext carries the determinism and precision state that every learned
// component receives at construction: the random seed, the resolved device
// and the numeric epsilon. It replaces module-global seeding — there is no
// package-level RNG anywhere in lvlnn.
//
// A RunContext is not safe for concurrent use; the training loop is
// sequential by design and owns exactly one.
type RunContext struct {
	// Seed is the seed the internal RNG was created with.
	Seed int64

	// Device is the resolved numeric backend (always DeviceCPU here).
	Device string

	// Epsilon is the numeric floor for log/compare operations.
	Epsilon float64

	rng *rand.Rand
}

// NewRunContext creates a RunContext seeded with seed, resolved to the
// pure-Go CPU backend with the default epsilon.
// Complexity: O(1).
func NewRunContext(seed int64) *RunContext {
	return &RunContext{
		Seed:    seed,
		Device:  DeviceCPU,
		Epsilon: DefaultEpsilon,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Rand returns the context-owned RNG. All parameter initialization draws
// from this single stream, so a fixed seed reproduces a run exactly.
func (c *RunContext) Rand() *rand.Rand { return c.rng }
