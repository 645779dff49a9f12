// SPDX-License-Identifier: MIT

// Package gcn implements direction-aware graph convolution and the stacked
// multi-layer encoder.
//
// What & Why:
//
//	One layer of message passing aggregates neighbor features into every
//	node under a directionality policy fixed at construction:
//
//	  - Undirected: classic degree-normalized aggregation over the graph
//	    as given.
//	  - BiFuse: the undirected algorithm runs twice — once forward, once
//	    over the edge-reversed graph — with independent weight/bias pairs,
//	    and a learned sigmoid gate over [fw, bw, fw⊙bw, fw−bw] blends the
//	    two results.
//	  - BiSep: the same two branches, returned as an unblended pair;
//	    downstream layers process both streams until the encoder
//	    concatenates them after the last layer.
//
//	Normalization modes: none (raw sums), right (divide by in-degree),
//	both (symmetric out^-0.5 / in^-0.5 scaling). Degrees are clamped to a
//	minimum of 1 inside the normalization denominators.
//
// Order of operations: when the input width exceeds the output width the
// weight multiply happens before aggregation, otherwise after — the result
// is mathematically identical, only the work differs.
//
// Error policy: invalid direction or normalization selectors, an external
// weight supplied while the layer registered its own, and zero-in-degree
// nodes without the explicit opt-in are all fatal sentinel errors — never
// silently corrected.
package gcn
