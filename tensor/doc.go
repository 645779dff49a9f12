// SPDX-License-Identifier: MIT

// Package tensor provides dense row-major float64 tensors with reverse-mode
// automatic differentiation.
//
// What & Why:
//
//	Every learned component of lvlnn (graph convolution, tree decoder,
//	embeddings) is expressed through a small set of differentiable kernels
//	declared here. A Tensor records its parents and a backward closure when
//	gradients are required; Backward performs a deterministic topological
//	sweep from a scalar loss and accumulates gradients into every parameter.
//
// Design:
//   - Storage mirrors a flat row-major buffer with the explicit index formula
//     i*cols + j; At/Set are bounds-checked and return sentinel errors.
//   - All kernels perform strict fail-fast validation (nil operands, shape
//     conformance, index ranges) through central validators and wrap failures
//     with a stable operation tag.
//   - Determinism: fixed loop orders everywhere, no map iteration, and all
//     randomness (parameter init) flows through an explicit RunContext.
//
// Complexity quicksheet:
//
//	New/Clone: O(r*c). At/Set: O(1). MatMul: O(n*k*m).
//	Elementwise kernels: O(r*c). Backward: O(ops + total elements touched).
package tensor
