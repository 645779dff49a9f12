// SPDX-License-Identifier: MIT

// Package trainer runs the optimization and evaluation loop around a
// graph-to-tree model.
//
// Training is sequential per step: zero gradients, forward loss over one
// batch, backward, clip gradient values, optimizer step. A worker-pool
// prefetcher materializes upcoming batches concurrently in front of the
// loop, but batches are always consumed in order and parameters have a
// single writer. Evaluation decodes held-out examples one at a time,
// repairs and parses the output, and scores exact tree-structural
// equality against the reference; the best accuracy seen is tracked and
// checkpointed. A checkpoint stores every named parameter and restores
// them exactly, so a reloaded model reproduces forward and backward
// behavior bit for bit.
package trainer
