// SPDX-License-Identifier: MIT

// Package model composes the full graph-to-tree network: a source token
// embedding written onto the graph, the graph-convolution encoder, and
// the tree decoder with its copy mechanism. The model owns the vocabulary
// pair and handles per-example OOV extension around the decoder.
package model

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/lvlnn/decoder"
	"github.com/katalvlaran/lvlnn/gcn"
	"github.com/katalvlaran/lvlnn/graph"
	"github.com/katalvlaran/lvlnn/tensor"
	"github.com/katalvlaran/lvlnn/tree"
	"github.com/katalvlaran/lvlnn/vocab"
)

// Sentinel errors.
var (
	// ErrNilVocab indicates a missing vocabulary at construction.
	ErrNilVocab = errors.New("model: nil vocabulary")
	// ErrBadBatch indicates Loss received mismatched graph/tree lists.
	ErrBadBatch = errors.New("model: graphs and trees differ in length")
)

// DefaultName prefixes parameter names.
const DefaultName = "g2t"

// Config fixes the network shape. Embedding and hidden widths follow the
// runner defaults when zero is replaced by the config package's values;
// this struct itself performs no defaulting.
type Config struct {
	EmbSize       int // source and target token embedding width
	HiddenSize    int // encoder hidden width, also the decoder hidden width
	NumLayers     int
	Direction     gcn.Direction
	Norm          gcn.Norm
	UseCopy       bool
	UseEdgeWeight bool
	MaxSeqLen     int
	MaxDepth      int

	// InitWeight > 0 re-draws embedding and decoder parameters uniformly
	// in ±InitWeight after construction; convolution weights keep their
	// Xavier draw.
	InitWeight float64

	// Name prefixes parameter names (default "g2t").
	Name string
}

// Graph2Tree is the assembled network plus the vocabularies it was built
// against. Construct with New.
type Graph2Tree struct {
	cfg      Config
	srcVocab *vocab.Vocab
	tgtVocab *vocab.Vocab

	srcEmb *tensor.Tensor // srcVocab.Size() × EmbSize
	enc    *gcn.Encoder
	dec    *decoder.TreeDecoder
}

// New builds the network against the given vocabularies.
//
// Errors: ErrNilVocab, plus encoder and decoder construction errors.
func New(ctx *tensor.RunContext, cfg Config, srcVocab, tgtVocab *vocab.Vocab) (*Graph2Tree, error) {
	if srcVocab == nil || tgtVocab == nil {
		return nil, fmt.Errorf("model.New: %w", ErrNilVocab)
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}

	srcEmb, err := tensor.NewParam(srcVocab.Size(), cfg.EmbSize, cfg.Name+".src_emb")
	if err != nil {
		return nil, fmt.Errorf("model.New: %w", err)
	}
	if err = tensor.XavierUniform(srcEmb, ctx); err != nil {
		return nil, fmt.Errorf("model.New: %w", err)
	}

	enc, err := gcn.NewEncoder(ctx, gcn.EncoderConfig{
		NumLayers:         cfg.NumLayers,
		InFeats:           cfg.EmbSize,
		HiddenSizes:       []int{cfg.HiddenSize},
		OutFeats:          cfg.HiddenSize,
		Direction:         cfg.Direction,
		Norm:              cfg.Norm,
		Activation:        tensor.ReLU,
		AllowZeroInDegree: true,
		UseEdgeWeight:     cfg.UseEdgeWeight,
		Name:              cfg.Name + ".enc",
	})
	if err != nil {
		return nil, fmt.Errorf("model.New: %w", err)
	}

	dec, err := decoder.NewTreeDecoder(ctx, decoder.Config{
		EmbSize:    cfg.EmbSize,
		HiddenSize: cfg.HiddenSize,
		EncSize:    enc.OutputWidth(),
		VocabSize:  tgtVocab.Size(),
		UseCopy:    cfg.UseCopy,
		MaxSeqLen:  cfg.MaxSeqLen,
		MaxDepth:   cfg.MaxDepth,
		Name:       cfg.Name + ".dec",
	})
	if err != nil {
		return nil, fmt.Errorf("model.New: %w", err)
	}

	m := &Graph2Tree{
		cfg:      cfg,
		srcVocab: srcVocab,
		tgtVocab: tgtVocab,
		srcEmb:   srcEmb,
		enc:      enc,
		dec:      dec,
	}
	if cfg.InitWeight > 0 {
		if err = tensor.FillUniform(m.srcEmb, ctx, cfg.InitWeight); err != nil {
			return nil, fmt.Errorf("model.New: %w", err)
		}
		for _, p := range m.dec.Params() {
			if err = tensor.FillUniform(p, ctx, cfg.InitWeight); err != nil {
				return nil, fmt.Errorf("model.New: %w", err)
			}
		}
	}
	return m, nil
}

// Params returns every learned parameter: embedding, encoder, decoder.
func (m *Graph2Tree) Params() []*tensor.Tensor {
	ps := []*tensor.Tensor{m.srcEmb}
	ps = append(ps, m.enc.Params()...)
	return append(ps, m.dec.Params()...)
}

// TargetVocab returns the base target vocabulary the decoder scores over.
func (m *Graph2Tree) TargetVocab() *vocab.Vocab { return m.tgtVocab }

// encode writes source embeddings into the node_feat slot and runs the
// convolution stack, returning the node embeddings.
func (m *Graph2Tree) encode(g *graph.Graph) (*tensor.Tensor, error) {
	ids := make([]int, g.NumNodes())
	for i, n := range g.Nodes() {
		ids[i] = m.srcVocab.Index(n.Token)
	}
	feat, err := tensor.GatherRows(m.srcEmb, ids)
	if err != nil {
		return nil, err
	}
	if err = g.SetNodeFeatures(graph.SlotNodeFeat, feat); err != nil {
		return nil, err
	}
	return m.enc.Forward(g)
}

// Loss encodes the batched union of graphs and teacher-forces each
// reference tree against its member's node block, returning the summed
// negative log-likelihood as a 1×1 tensor. OOV extension is per example:
// each member's unknown source tokens extend a private copy of the target
// vocabulary for that example only.
//
// Errors: ErrBadBatch, graph.ErrEmptyBatch, plus encode/decode errors.
func (m *Graph2Tree) Loss(graphs []*graph.Graph, trees []*tree.Node) (*tensor.Tensor, error) {
	if len(graphs) != len(trees) {
		return nil, fmt.Errorf("Loss: %w", ErrBadBatch)
	}
	batched, err := graph.BatchGraphs(graphs)
	if err != nil {
		return nil, fmt.Errorf("Loss: %w", err)
	}
	encEmb, err := m.encode(batched)
	if err != nil {
		return nil, fmt.Errorf("Loss: %w", err)
	}

	var total *tensor.Tensor
	for i, g := range graphs {
		r := batched.Ranges()[i]
		rows := make([]int, 0, r[1]-r[0])
		for j := r[0]; j < r[1]; j++ {
			rows = append(rows, j)
		}
		member, err := tensor.GatherRows(encEmb, rows)
		if err != nil {
			return nil, fmt.Errorf("Loss: member %d: %w", i, err)
		}

		oov, oovIDs, err := vocab.BuildOOV(m.tgtVocab, g)
		if err != nil {
			return nil, fmt.Errorf("Loss: member %d: %w", i, err)
		}
		nll, err := m.dec.Loss(member, trees[i], oovIDs, oov.Size())
		if err != nil {
			return nil, fmt.Errorf("Loss: member %d: %w", i, err)
		}
		if total == nil {
			total = nll
		} else if total, err = tensor.Add(total, nll); err != nil {
			return nil, fmt.Errorf("Loss: member %d: %w", i, err)
		}
	}
	return total, nil
}

// Translate decodes a single graph into an expression tree. The returned
// ids are the repaired flat sequence over the example's OOV-extended
// vocabulary; the tree is its parsed form.
//
// Errors: decoder errors, tree.ErrEmptyInput when nothing was generated.
func (m *Graph2Tree) Translate(g *graph.Graph, beamSize int) (*tree.Node, []int, error) {
	encEmb, err := m.encode(g)
	if err != nil {
		return nil, nil, fmt.Errorf("Translate: %w", err)
	}
	oov, oovIDs, err := vocab.BuildOOV(m.tgtVocab, g)
	if err != nil {
		return nil, nil, fmt.Errorf("Translate: %w", err)
	}
	ids, err := m.dec.Translate(encEmb, oovIDs, oov.Size(), beamSize)
	if err != nil {
		return nil, nil, fmt.Errorf("Translate: %w", err)
	}
	root, err := tree.Parse(ids)
	if err != nil {
		return nil, ids, fmt.Errorf("Translate: %w", err)
	}
	return root, ids, nil
}
