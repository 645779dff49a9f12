// SPDX-License-Identifier: MIT

package gcn

import (
	"fmt"
	"math"

	"github.com/katalvlaran/lvlnn/graph"
	"github.com/katalvlaran/lvlnn/tensor"
)

// Default layer configuration (single source of truth).
const (
	// DefaultNorm is the symmetric normalization, matching the classic GCN.
	DefaultNorm = NormBoth

	// DefaultName prefixes parameter names when none is configured.
	DefaultName = "gcn"
)

// fuseArity is the number of feature blocks entering the fusion gate:
// [fw, bw, fw⊙bw, fw−bw].
const fuseArity = 4

// LayerOption configures a Layer before parameter allocation.
type LayerOption func(*layerConfig)

type layerConfig struct {
	norm              Norm
	activation        Activation
	allowZeroInDegree bool
	withWeight        bool
	withBias          bool
	name              string
}

// WithNorm selects the normalization mode (default NormBoth).
func WithNorm(n Norm) LayerOption {
	return func(c *layerConfig) { c.norm = n }
}

// WithActivation applies fn to updated node features.
func WithActivation(fn Activation) LayerOption {
	return func(c *layerConfig) { c.activation = fn }
}

// WithAllowZeroInDegree suppresses the zero-in-degree check; isolated nodes
// then aggregate to zero vectors and degree clamping keeps the
// normalization finite.
func WithAllowZeroInDegree() LayerOption {
	return func(c *layerConfig) { c.allowZeroInDegree = true }
}

// WithoutWeight skips the learned linear map; the caller must supply an
// external weight at forward time.
func WithoutWeight() LayerOption {
	return func(c *layerConfig) { c.withWeight = false }
}

// WithoutBias skips the learned bias.
func WithoutBias() LayerOption {
	return func(c *layerConfig) { c.withBias = false }
}

// WithName sets the parameter-name prefix (checkpoint identity).
func WithName(name string) LayerOption {
	return func(c *layerConfig) { c.name = name }
}

// Layer is one direction-aware graph-convolution layer. The direction is
// fixed at construction; Undirected layers hold one weight/bias pair,
// bidirectional layers hold independent forward and backward pairs that
// are never mixed, and BiFuse additionally holds the fusion gate.
type Layer struct {
	inFeats, outFeats int
	dir               Direction
	cfg               layerConfig

	// Undirected parameters.
	weight, bias *tensor.Tensor

	// Bidirectional parameters (forward / backward pairs).
	weightFw, weightBw *tensor.Tensor
	biasFw, biasBw     *tensor.Tensor

	// BiFuse gate: fuseWeight is (fuseArity·out)×out, fuseBias 1×out.
	fuseWeight, fuseBias *tensor.Tensor
}

// NewLayer constructs a layer mapping inFeats → outFeats under dir.
// Weights are Glorot-initialized from ctx, biases start at zero.
//
// Errors: ErrUnknownDirection, ErrUnknownNorm, tensor.ErrInvalidDimensions.
// Complexity: O(inFeats*outFeats) allocation/initialization.
func NewLayer(ctx *tensor.RunContext, inFeats, outFeats int, dir Direction, opts ...LayerOption) (*Layer, error) {
	if !dir.valid() {
		return nil, fmt.Errorf("NewLayer: %w", ErrUnknownDirection)
	}
	cfg := layerConfig{
		norm:       DefaultNorm,
		withWeight: true,
		withBias:   true,
		name:       DefaultName,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.norm.valid() {
		return nil, fmt.Errorf("NewLayer: %w", ErrUnknownNorm)
	}

	l := &Layer{inFeats: inFeats, outFeats: outFeats, dir: dir, cfg: cfg}

	newWeight := func(suffix string) (*tensor.Tensor, error) {
		w, err := tensor.NewParam(inFeats, outFeats, cfg.name+suffix)
		if err != nil {
			return nil, fmt.Errorf("NewLayer: %w", err)
		}
		if err = tensor.XavierUniform(w, ctx); err != nil {
			return nil, fmt.Errorf("NewLayer: %w", err)
		}
		return w, nil
	}
	newBias := func(suffix string) (*tensor.Tensor, error) {
		b, err := tensor.NewParam(1, outFeats, cfg.name+suffix)
		if err != nil {
			return nil, fmt.Errorf("NewLayer: %w", err)
		}
		return b, nil
	}

	var err error
	switch dir {
	case Undirected:
		if cfg.withWeight {
			if l.weight, err = newWeight(".weight"); err != nil {
				return nil, err
			}
		}
		if cfg.withBias {
			if l.bias, err = newBias(".bias"); err != nil {
				return nil, err
			}
		}
	case BiFuse, BiSep:
		if cfg.withWeight {
			if l.weightFw, err = newWeight(".weight_fw"); err != nil {
				return nil, err
			}
			if l.weightBw, err = newWeight(".weight_bw"); err != nil {
				return nil, err
			}
		}
		if cfg.withBias {
			if l.biasFw, err = newBias(".bias_fw"); err != nil {
				return nil, err
			}
			if l.biasBw, err = newBias(".bias_bw"); err != nil {
				return nil, err
			}
		}
		if dir == BiFuse {
			l.fuseWeight, err = tensor.NewParam(fuseArity*outFeats, outFeats, cfg.name+".fuse_weight")
			if err != nil {
				return nil, fmt.Errorf("NewLayer: %w", err)
			}
			if err = tensor.XavierUniform(l.fuseWeight, ctx); err != nil {
				return nil, fmt.Errorf("NewLayer: %w", err)
			}
			if l.fuseBias, err = tensor.NewParam(1, outFeats, cfg.name+".fuse_bias"); err != nil {
				return nil, fmt.Errorf("NewLayer: %w", err)
			}
		}
	}
	return l, nil
}

// Direction returns the layer's fixed directionality policy.
func (l *Layer) Direction() Direction { return l.dir }

// Params returns every learned parameter of the layer in a stable order.
func (l *Layer) Params() []*tensor.Tensor {
	var ps []*tensor.Tensor
	for _, p := range []*tensor.Tensor{
		l.weight, l.bias,
		l.weightFw, l.weightBw, l.biasFw, l.biasBw,
		l.fuseWeight, l.fuseBias,
	} {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return ps
}

// Forward computes one layer of message passing with the layer's own
// learned weights. For BiSep the result is the (forward, backward) pair;
// other modes fill only Features.Fw.
//
// Errors: ErrNilFeatures, ErrZeroInDegree, ErrUnexpectedReverseWeight and
// kernel validation errors.
// Complexity: O(E·width + V·inFeats·outFeats).
func (l *Layer) Forward(g *graph.Graph, in Features, ew *EdgeWeights) (Features, error) {
	return l.forward(g, in, ew, nil, nil)
}

// ForwardWithWeight is Forward with externally-supplied weight tensors
// (wBw is ignored by Undirected layers). Supplying an external weight on a
// layer that registered its own is a configuration error.
//
// Errors: ErrWeightConflict plus everything Forward can return.
func (l *Layer) ForwardWithWeight(g *graph.Graph, in Features, ew *EdgeWeights, w, wBw *tensor.Tensor) (Features, error) {
	return l.forward(g, in, ew, w, wBw)
}

func (l *Layer) forward(g *graph.Graph, in Features, ew *EdgeWeights, extW, extWBw *tensor.Tensor) (Features, error) {
	if in.Fw == nil {
		return Features{}, fmt.Errorf("Forward: %w", ErrNilFeatures)
	}
	var fwWeights, bwWeights []float64
	if ew != nil {
		fwWeights, bwWeights = ew.Forward, ew.Reverse
	}

	switch l.dir {
	case Undirected:
		if bwWeights != nil {
			return Features{}, fmt.Errorf("Forward: %w", ErrUnexpectedReverseWeight)
		}
		w, err := l.resolveWeight(l.weight, extW)
		if err != nil {
			return Features{}, err
		}
		out, err := l.conv(g, in.Fw, fwWeights, w, l.bias)
		if err != nil {
			return Features{}, err
		}
		return Features{Fw: out}, nil

	case BiFuse, BiSep:
		featBw := in.Bw
		if featBw == nil {
			featBw = in.Fw
		}
		wFw, err := l.resolveWeight(l.weightFw, extW)
		if err != nil {
			return Features{}, err
		}
		wBw, err := l.resolveWeight(l.weightBw, extWBw)
		if err != nil {
			return Features{}, err
		}

		fw, err := l.conv(g, in.Fw, fwWeights, wFw, l.biasFw)
		if err != nil {
			return Features{}, err
		}
		// The backward branch aggregates over the edge-reversed graph and
		// must use the reverse-direction weights, in both operation orders.
		bw, err := l.conv(g.Reverse(), featBw, bwWeights, wBw, l.biasBw)
		if err != nil {
			return Features{}, err
		}

		if l.dir == BiSep {
			return Features{Fw: fw, Bw: bw}, nil
		}
		out, err := l.fuse(fw, bw)
		if err != nil {
			return Features{}, err
		}
		return Features{Fw: out}, nil
	}
	return Features{}, fmt.Errorf("Forward: %w", ErrUnknownDirection)
}

// resolveWeight enforces the exactly-one-of invariant between a registered
// and an externally-supplied weight.
func (l *Layer) resolveWeight(own, ext *tensor.Tensor) (*tensor.Tensor, error) {
	if ext != nil {
		if own != nil {
			return nil, fmt.Errorf("Forward: %w", ErrWeightConflict)
		}
		return ext, nil
	}
	return own, nil
}

// conv runs the undirected aggregation algorithm against the topology of g:
// optional symmetric pre-scaling, weighted message aggregation (order
// chosen by feature-width comparison), right/both post-scaling, bias and
// activation.
func (l *Layer) conv(g *graph.Graph, feat *tensor.Tensor, edgeWeight []float64, weight, bias *tensor.Tensor) (*tensor.Tensor, error) {
	n := g.NumNodes()

	if !l.cfg.allowZeroInDegree {
		for i, d := range g.InDegrees() {
			if d == 0 {
				return nil, fmt.Errorf("Forward: node %d: %w", i, ErrZeroInDegree)
			}
		}
	}

	var err error
	if l.cfg.norm == NormBoth {
		scale := make([]float64, n)
		for i, d := range g.OutDegrees() {
			scale[i] = math.Pow(tensor.ClampMin(d, 1), -0.5)
		}
		if feat, err = tensor.ScaleRows(feat, scale); err != nil {
			return nil, fmt.Errorf("Forward: %w", err)
		}
	}

	var rst *tensor.Tensor
	if l.inFeats > l.outFeats {
		// Multiply by W first to shrink the width being aggregated.
		if weight != nil {
			if feat, err = tensor.MatMul(feat, weight); err != nil {
				return nil, fmt.Errorf("Forward: %w", err)
			}
		}
		if rst, err = l.aggregate(g, feat, edgeWeight); err != nil {
			return nil, err
		}
	} else {
		if rst, err = l.aggregate(g, feat, edgeWeight); err != nil {
			return nil, err
		}
		if weight != nil {
			if rst, err = tensor.MatMul(rst, weight); err != nil {
				return nil, fmt.Errorf("Forward: %w", err)
			}
		}
	}

	if l.cfg.norm != NormNone {
		scale := make([]float64, n)
		for i, d := range g.InDegrees() {
			c := tensor.ClampMin(d, 1)
			if l.cfg.norm == NormBoth {
				scale[i] = math.Pow(c, -0.5)
			} else {
				scale[i] = 1 / c
			}
		}
		if rst, err = tensor.ScaleRows(rst, scale); err != nil {
			return nil, fmt.Errorf("Forward: %w", err)
		}
	}

	if bias != nil {
		if rst, err = tensor.AddBias(rst, bias); err != nil {
			return nil, fmt.Errorf("Forward: %w", err)
		}
	}
	if l.cfg.activation != nil {
		if rst, err = l.cfg.activation(rst); err != nil {
			return nil, fmt.Errorf("Forward: %w", err)
		}
	}
	return rst, nil
}

// aggregate sums source-node messages at each destination, scaled by the
// optional per-edge weights. An edgeless graph aggregates to zeros.
func (l *Layer) aggregate(g *graph.Graph, feat *tensor.Tensor, edgeWeight []float64) (*tensor.Tensor, error) {
	src, dst := g.EdgeEndpoints()
	if len(src) == 0 {
		zero, err := tensor.New(g.NumNodes(), feat.Cols())
		if err != nil {
			return nil, fmt.Errorf("Forward: %w", err)
		}
		return zero, nil
	}
	msgs, err := tensor.GatherRows(feat, src)
	if err != nil {
		return nil, fmt.Errorf("Forward: %w", err)
	}
	agg, err := tensor.ScatterAddRows(msgs, dst, g.NumNodes(), edgeWeight)
	if err != nil {
		return nil, fmt.Errorf("Forward: %w", err)
	}
	return agg, nil
}

// fuse blends the forward and backward branches:
// gate = σ([fw|bw|fw⊙bw|fw−bw]·Wf + bf), out = gate⊙fw + (1−gate)⊙bw,
// computed as bw + gate⊙(fw−bw).
func (l *Layer) fuse(fw, bw *tensor.Tensor) (*tensor.Tensor, error) {
	prod, err := tensor.Mul(fw, bw)
	if err != nil {
		return nil, fmt.Errorf("Forward: %w", err)
	}
	diff, err := tensor.Sub(fw, bw)
	if err != nil {
		return nil, fmt.Errorf("Forward: %w", err)
	}
	cat, err := tensor.ConcatCols(fw, bw, prod, diff)
	if err != nil {
		return nil, fmt.Errorf("Forward: %w", err)
	}
	pre, err := tensor.MatMul(cat, l.fuseWeight)
	if err != nil {
		return nil, fmt.Errorf("Forward: %w", err)
	}
	pre, err = tensor.AddBias(pre, l.fuseBias)
	if err != nil {
		return nil, fmt.Errorf("Forward: %w", err)
	}
	gate, err := tensor.Sigmoid(pre)
	if err != nil {
		return nil, fmt.Errorf("Forward: %w", err)
	}
	gated, err := tensor.Mul(gate, diff)
	if err != nil {
		return nil, fmt.Errorf("Forward: %w", err)
	}
	out, err := tensor.Add(bw, gated)
	if err != nil {
		return nil, fmt.Errorf("Forward: %w", err)
	}
	return out, nil
}
