// SPDX-License-Identifier: MIT

// Package decoder generates bracketed expression trees from encoder node
// embeddings.
//
// The core is an attention LSTM cell: at every step the cell consumes the
// previous token's embedding, attends over the node embeddings, and emits
// a distribution over the target vocabulary. With the copy mechanism
// enabled the distribution is a mixture over the OOV-extended vocabulary:
// a learned sigmoid gate blends the generate distribution with the
// attention weights scattered onto each source node's extended-vocabulary
// index, letting the decoder emit source tokens it has no target entry for.
//
// Decoding is depth-first over subtrees. A subtree is a token sequence
// terminated by the end-of-sequence symbol; emitting the non-terminal
// symbol spawns a child subtree decoded with a fresh context seeded from
// the hidden state at the point of emission. Search keeps the top-K
// hypotheses per step (beam size 1 is greedy), and the final flat sequence
// is bracket-repaired before parsing.
//
// Training uses teacher forcing: Loss walks a reference tree in the same
// subtree order and sums negative log-likelihood of every reference token
// under the mixture distribution.
package decoder
