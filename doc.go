// Package lvlnn is an in-memory graph-neural-network toolkit for NLP tasks —
// semantic parsing and graph-to-tree generation on top of pure-Go tensors.
//
// 🚀 What is lvlnn?
//
//	A deterministic, dependency-light library that brings together:
//		• Dense tensors with reverse-mode automatic differentiation
//		• Graph containers with named feature slots and batch union
//		• Direction-aware graph convolution: undirected, bi_fuse, bi_sep
//		• Vocabulary management with per-batch OOV copy extension
//		• Tree decoding with attention, copy mechanism and beam search
//		• A sequential training loop with Adam, gradient clipping and
//		  tree-equality evaluation
//
// ✨ Why choose lvlnn?
//
//   - Explicit run context – seed, device and precision threaded by reference,
//     no global mutable state
//   - Rock-solid guarantees – sentinel errors, fixed iteration orders,
//     fail-fast validation
//   - Pure Go – no cgo, no GPU runtime required
//
// Under the hood, everything is organized under topic subpackages:
//
//	tensor/  — dense float64 storage + autodiff tape, init, clipping
//	graph/   — node/edge containers, feature slots, reverse & batch views
//	gcn/     — directional graph-convolution layers and the stacked encoder
//	vocab/   — token↔index maps and OOV-extended copies
//	tree/    — bracketed tree parsing, flattening, equality, repair
//	decoder/ — attention LSTM tree decoder with copy + beam search
//	model/   — graph2tree composition: embed → encode → decode → loss
//	trainer/ — Adam, epoch loop, batch prefetching, eval, checkpoints
//	config/  — typed, validated configuration with YAML loading
//
// Quick ASCII example:
//
//	    0──▶1──▶2        "( job ( salary 50000 ) )"
//
//	a three-node path graph on the left, a bracketed target tree on the right.
//
// Dive into the package docs and Example tests for full usage.
//
//	go get github.com/katalvlaran/lvlnn
package lvlnn
