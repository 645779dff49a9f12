// SPDX-License-Identifier: MIT

// Package graph defines the graph data container consumed by the
// message-passing layers: nodes with optional token/type attributes,
// directed edges carrying a forward and a reverse scalar weight, and named
// per-node feature slots holding tensors.
//
// Contract:
//   - The node count is fixed at construction; edges may be appended until
//     the container is handed to a forward pass.
//   - Edge endpoints always reference valid node indices (validated at
//     AddEdge; a malformed edge is a fatal sentinel error).
//   - The container owns the feature storage for the duration of one
//     forward pass; layers read and write named slots but do not own the
//     container. Reverse() shares the feature map with its source so a
//     backward pass sees the same slots.
//
// Determinism: edges live in an append-ordered slice, degrees and endpoint
// vectors are materialized in that order, and batching relabels nodes by
// graph position then node index. No map iteration touches numerics.
package graph
