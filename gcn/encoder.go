// SPDX-License-Identifier: MIT

package gcn

import (
	"fmt"

	"github.com/katalvlaran/lvlnn/graph"
	"github.com/katalvlaran/lvlnn/tensor"
)

// EncoderConfig fixes the shape of a stacked encoder. HiddenSizes may hold
// a single value (broadcast to every hidden layer) or exactly NumLayers-1
// explicit widths.
type EncoderConfig struct {
	NumLayers   int
	InFeats     int
	HiddenSizes []int
	OutFeats    int
	Direction   Direction
	Norm        Norm

	// Activation applies to every layer except the output projection.
	Activation Activation

	// AllowZeroInDegree forwards the layer opt-in (see ErrZeroInDegree).
	AllowZeroInDegree bool

	// UseEdgeWeight reads per-edge scalars off the graph during
	// aggregation; the output projection always runs unweighted.
	UseEdgeWeight bool

	// Name prefixes parameter names (default "gcn").
	Name string
}

// Encoder stacks NumLayers convolution layers: input → hidden* → output.
// Between layers a BiSep pair is carried as two independent streams; after
// the last layer the pair is concatenated along the feature dimension.
type Encoder struct {
	cfg    EncoderConfig
	layers []*Layer
}

// NewEncoder validates cfg, resolves the hidden-size schedule and
// allocates every layer with parameters drawn from ctx.
//
// Errors: ErrBadLayerCount, ErrBadHiddenSizes, plus NewLayer errors.
func NewEncoder(ctx *tensor.RunContext, cfg EncoderConfig) (*Encoder, error) {
	if cfg.NumLayers < 1 {
		return nil, fmt.Errorf("NewEncoder: %w", ErrBadLayerCount)
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}

	hidden := cfg.HiddenSizes
	if cfg.NumLayers > 1 {
		switch {
		case len(hidden) == cfg.NumLayers-1:
			// explicit schedule
		case len(hidden) == 1:
			bc := make([]int, cfg.NumLayers-1)
			for i := range bc {
				bc[i] = hidden[0]
			}
			hidden = bc
		default:
			return nil, fmt.Errorf("NewEncoder: %w", ErrBadHiddenSizes)
		}
	}

	e := &Encoder{cfg: cfg}
	layerOpts := func(idx int, out bool) []LayerOption {
		opts := []LayerOption{
			WithNorm(cfg.Norm),
			WithName(fmt.Sprintf("%s.layer%d", cfg.Name, idx)),
		}
		if cfg.Activation != nil && !out {
			opts = append(opts, WithActivation(cfg.Activation))
		}
		if cfg.AllowZeroInDegree {
			opts = append(opts, WithAllowZeroInDegree())
		}
		return opts
	}

	if cfg.NumLayers == 1 {
		l, err := NewLayer(ctx, cfg.InFeats, cfg.OutFeats, cfg.Direction, layerOpts(0, true)...)
		if err != nil {
			return nil, err
		}
		e.layers = append(e.layers, l)
		return e, nil
	}

	// Input projection.
	l, err := NewLayer(ctx, cfg.InFeats, hidden[0], cfg.Direction, layerOpts(0, false)...)
	if err != nil {
		return nil, err
	}
	e.layers = append(e.layers, l)

	// Hidden layers.
	for i := 1; i < cfg.NumLayers-1; i++ {
		l, err = NewLayer(ctx, hidden[i-1], hidden[i], cfg.Direction, layerOpts(i, false)...)
		if err != nil {
			return nil, err
		}
		e.layers = append(e.layers, l)
	}

	// Output projection.
	l, err = NewLayer(ctx, hidden[len(hidden)-1], cfg.OutFeats, cfg.Direction, layerOpts(cfg.NumLayers-1, true)...)
	if err != nil {
		return nil, err
	}
	e.layers = append(e.layers, l)
	return e, nil
}

// OutputWidth returns the feature width written to the node_emb slot
// (doubled for BiSep, whose streams concatenate after the last layer).
func (e *Encoder) OutputWidth() int {
	if e.cfg.Direction == BiSep {
		return 2 * e.cfg.OutFeats
	}
	return e.cfg.OutFeats
}

// Params returns every learned parameter of the stack in layer order.
func (e *Encoder) Params() []*tensor.Tensor {
	var ps []*tensor.Tensor
	for _, l := range e.layers {
		ps = append(ps, l.Params()...)
	}
	return ps
}

// Forward reads the node_feat slot, runs the stack, and writes the final
// node embeddings into the node_emb slot, returning them as well.
//
// Errors: graph.ErrUnknownSlot when node_feat is missing, plus layer
// forward errors.
func (e *Encoder) Forward(g *graph.Graph) (*tensor.Tensor, error) {
	feat, err := g.NodeFeatures(graph.SlotNodeFeat)
	if err != nil {
		return nil, fmt.Errorf("Encoder.Forward: %w", err)
	}

	var ew *EdgeWeights
	if e.cfg.UseEdgeWeight {
		ew = &EdgeWeights{Forward: g.EdgeWeights()}
		if e.cfg.Direction != Undirected {
			ew.Reverse = g.ReverseEdgeWeights()
		}
	}

	in := Features{Fw: feat}
	if e.cfg.Direction == BiSep {
		in.Bw = feat
	}

	for i, l := range e.layers {
		// The output projection runs without edge weights.
		lw := ew
		if i == len(e.layers)-1 {
			lw = nil
		}
		if in, err = l.Forward(g, in, lw); err != nil {
			return nil, fmt.Errorf("Encoder.Forward: layer %d: %w", i, err)
		}
	}

	out := in.Fw
	if e.cfg.Direction == BiSep {
		if out, err = tensor.ConcatCols(in.Fw, in.Bw); err != nil {
			return nil, fmt.Errorf("Encoder.Forward: %w", err)
		}
	}
	if err = g.SetNodeFeatures(graph.SlotNodeEmb, out); err != nil {
		return nil, fmt.Errorf("Encoder.Forward: %w", err)
	}
	return out, nil
}
