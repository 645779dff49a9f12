// SPDX-License-Identifier: MIT

package gcn_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/lvlnn/gcn"
	"github.com/katalvlaran/lvlnn/graph"
	"github.com/katalvlaran/lvlnn/tensor"
)

const tol = 1e-12

// pathGraph builds 0→1→2.
func pathGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New(3)
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(0, 1))
	require.NoError(t, g.AddEdge(1, 2))
	return g
}

// diamondGraph builds 0→1, 0→2, 1→3, 2→3 with the given uniform weight.
func diamondGraph(t *testing.T, w float64) *graph.Graph {
	t.Helper()
	g, err := graph.New(4)
	require.NoError(t, err)
	for _, e := range [][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}} {
		require.NoError(t, g.AddEdge(e[0], e[1], graph.WithWeight(w), graph.WithReverseWeight(w)))
	}
	return g
}

func identity(t *testing.T, n int) *tensor.Tensor {
	t.Helper()
	id, err := tensor.New(n, n)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, id.Set(i, i, 1))
	}
	return id
}

func TestParseDirection(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want gcn.Direction
		err  error
	}{
		{"undirected", gcn.Undirected, nil},
		{"bi_fuse", gcn.BiFuse, nil},
		{"bi_sep", gcn.BiSep, nil},
		{"bidirectional", 0, gcn.ErrUnknownDirection},
		{"", 0, gcn.ErrUnknownDirection},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := gcn.ParseDirection(tc.in)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseNorm(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"none", "right", "both"} {
		if _, err := gcn.ParseNorm(s); err != nil {
			t.Errorf("ParseNorm(%q) = %v; want nil", s, err)
		}
	}
	if _, err := gcn.ParseNorm("left"); !errors.Is(err, gcn.ErrUnknownNorm) {
		t.Errorf("ParseNorm(left) error = %v; want ErrUnknownNorm", err)
	}
}

// With norm=none and no edge weights, aggregation is the plain sum of
// incoming neighbor features followed by the linear map and bias.
func TestUndirected_NormNone_NeighborSum(t *testing.T) {
	t.Parallel()
	ctx := tensor.NewRunContext(7)
	g := diamondGraph(t, 1)

	l, err := gcn.NewLayer(ctx, 2, 2, gcn.Undirected,
		gcn.WithNorm(gcn.NormNone), gcn.WithoutWeight(), gcn.WithoutBias(),
		gcn.WithAllowZeroInDegree())
	require.NoError(t, err)

	feat, err := tensor.FromSlice(4, 2, []float64{
		1, 2,
		10, 20,
		100, 200,
		0, 0,
	})
	require.NoError(t, err)

	out, err := l.ForwardWithWeight(g, gcn.Features{Fw: feat}, nil, identity(t, 2), nil)
	require.NoError(t, err)

	// node1 ← node0; node2 ← node0; node3 ← node1+node2; node0 isolated.
	want := []float64{
		0, 0,
		1, 2,
		1, 2,
		110, 220,
	}
	require.InDeltaSlice(t, want, out.Fw.Data(), tol)
}

func TestUndirected_NormRight_AveragesMessages(t *testing.T) {
	t.Parallel()
	ctx := tensor.NewRunContext(7)
	g := diamondGraph(t, 1)

	l, err := gcn.NewLayer(ctx, 2, 2, gcn.Undirected,
		gcn.WithNorm(gcn.NormRight), gcn.WithoutWeight(), gcn.WithoutBias(),
		gcn.WithAllowZeroInDegree())
	require.NoError(t, err)

	feat, err := tensor.FromSlice(4, 2, []float64{
		2, 4,
		10, 20,
		30, 40,
		0, 0,
	})
	require.NoError(t, err)

	out, err := l.ForwardWithWeight(g, gcn.Features{Fw: feat}, nil, identity(t, 2), nil)
	require.NoError(t, err)

	// node3 receives (10,20)+(30,40), divided by in-degree 2.
	v, err := out.Fw.At(3, 0)
	require.NoError(t, err)
	require.InDelta(t, 20, v, tol)
	v, err = out.Fw.At(3, 1)
	require.NoError(t, err)
	require.InDelta(t, 30, v, tol)
}

// Symmetric normalization depends on degree counts only: when aggregation
// runs without the edge-weight term, re-scaling the stored edge weights by
// a positive constant leaves the output unchanged.
func TestUndirected_NormBoth_EdgeWeightScaleInvariance(t *testing.T) {
	t.Parallel()
	feat := []float64{1, 2, 3, 4, 5, 6, 7, 8}

	run := func(w float64) []float64 {
		ctx := tensor.NewRunContext(7)
		g := diamondGraph(t, w)
		l, err := gcn.NewLayer(ctx, 2, 2, gcn.Undirected,
			gcn.WithNorm(gcn.NormBoth), gcn.WithoutWeight(), gcn.WithoutBias(),
			gcn.WithAllowZeroInDegree())
		require.NoError(t, err)
		in, err := tensor.FromSlice(4, 2, feat)
		require.NoError(t, err)
		out, err := l.ForwardWithWeight(g, gcn.Features{Fw: in}, nil, identity(t, 2), nil)
		require.NoError(t, err)
		return out.Fw.Data()
	}

	base := run(1)
	scaled := run(5)
	require.InDeltaSlice(t, base, scaled, tol)
}

// bi_sep must equal the pair of undirected results computed independently
// against the graph and its edge-reversed counterpart.
func TestBiSep_EqualsIndependentForwardBackward(t *testing.T) {
	t.Parallel()
	ctx := tensor.NewRunContext(11)
	g := pathGraph(t)

	feat, err := tensor.FromSlice(3, 2, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	wFw := mustRandom(t, ctx, 2, 2)
	wBw := mustRandom(t, ctx, 2, 2)

	sep, err := gcn.NewLayer(ctx, 2, 2, gcn.BiSep,
		gcn.WithNorm(gcn.NormBoth), gcn.WithoutWeight(), gcn.WithoutBias(),
		gcn.WithAllowZeroInDegree())
	require.NoError(t, err)
	pair, err := sep.ForwardWithWeight(g, gcn.Features{Fw: feat, Bw: feat}, nil, wFw, wBw)
	require.NoError(t, err)

	und, err := gcn.NewLayer(ctx, 2, 2, gcn.Undirected,
		gcn.WithNorm(gcn.NormBoth), gcn.WithoutWeight(), gcn.WithoutBias(),
		gcn.WithAllowZeroInDegree())
	require.NoError(t, err)
	fw, err := und.ForwardWithWeight(g, gcn.Features{Fw: feat}, nil, wFw, nil)
	require.NoError(t, err)
	bw, err := und.ForwardWithWeight(g.Reverse(), gcn.Features{Fw: feat}, nil, wBw, nil)
	require.NoError(t, err)

	require.InDeltaSlice(t, fw.Fw.Data(), pair.Fw.Data(), tol)
	require.InDeltaSlice(t, bw.Fw.Data(), pair.Bw.Data(), tol)
}

// bi_fuse must equal gate⊙fw + (1−gate)⊙bw with the gate computed from
// the layer's own fusion parameters over [fw, bw, fw⊙bw, fw−bw].
func TestBiFuse_EqualsGatedBlendOfBiSep(t *testing.T) {
	t.Parallel()
	ctx := tensor.NewRunContext(13)
	g := pathGraph(t)

	feat, err := tensor.FromSlice(3, 2, []float64{0.5, -1, 2, 0.25, -0.75, 1.5})
	require.NoError(t, err)
	wFw := mustRandom(t, ctx, 2, 2)
	wBw := mustRandom(t, ctx, 2, 2)

	fuseL, err := gcn.NewLayer(ctx, 2, 2, gcn.BiFuse,
		gcn.WithNorm(gcn.NormBoth), gcn.WithoutWeight(), gcn.WithoutBias(),
		gcn.WithAllowZeroInDegree())
	require.NoError(t, err)
	fused, err := fuseL.ForwardWithWeight(g, gcn.Features{Fw: feat}, nil, wFw, wBw)
	require.NoError(t, err)

	sep, err := gcn.NewLayer(ctx, 2, 2, gcn.BiSep,
		gcn.WithNorm(gcn.NormBoth), gcn.WithoutWeight(), gcn.WithoutBias(),
		gcn.WithAllowZeroInDegree())
	require.NoError(t, err)
	pair, err := sep.ForwardWithWeight(g, gcn.Features{Fw: feat, Bw: feat}, nil, wFw, wBw)
	require.NoError(t, err)

	// Recompute the gate with the fuse layer's own parameters
	// (WithoutWeight/WithoutBias leaves exactly fuse_weight, fuse_bias).
	params := fuseL.Params()
	require.Len(t, params, 2)
	fuseW, fuseB := params[0], params[1]

	prod, err := tensor.Mul(pair.Fw, pair.Bw)
	require.NoError(t, err)
	diff, err := tensor.Sub(pair.Fw, pair.Bw)
	require.NoError(t, err)
	cat, err := tensor.ConcatCols(pair.Fw, pair.Bw, prod, diff)
	require.NoError(t, err)
	pre, err := tensor.MatMul(cat, fuseW)
	require.NoError(t, err)
	pre, err = tensor.AddBias(pre, fuseB)
	require.NoError(t, err)
	gate, err := tensor.Sigmoid(pre)
	require.NoError(t, err)

	want := make([]float64, len(fused.Fw.Data()))
	for i := range want {
		gv := gate.Data()[i]
		want[i] = gv*pair.Fw.Data()[i] + (1-gv)*pair.Bw.Data()[i]
	}
	require.InDeltaSlice(t, want, fused.Fw.Data(), tol)
}

// End-to-end: 3-node path, identity weight, zero bias, norm none, no edge
// weights — node 2's output equals node 1's input (its single incoming
// message).
func TestUndirected_PathIdentity_EndToEnd(t *testing.T) {
	t.Parallel()
	ctx := tensor.NewRunContext(3)
	g := pathGraph(t)

	l, err := gcn.NewLayer(ctx, 4, 4, gcn.Undirected,
		gcn.WithNorm(gcn.NormNone), gcn.WithoutWeight(), gcn.WithoutBias(),
		gcn.WithAllowZeroInDegree())
	require.NoError(t, err)

	feat, err := tensor.FromSlice(3, 4, []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
	})
	require.NoError(t, err)

	out, err := l.ForwardWithWeight(g, gcn.Features{Fw: feat}, nil, identity(t, 4), nil)
	require.NoError(t, err)

	for j := 0; j < 4; j++ {
		v, err := out.Fw.At(2, j)
		require.NoError(t, err)
		in, err := feat.At(1, j)
		require.NoError(t, err)
		require.InDelta(t, in, v, tol, "col %d", j)
	}
}

func TestForward_WeightConflict(t *testing.T) {
	t.Parallel()
	ctx := tensor.NewRunContext(5)
	g := pathGraph(t)
	feat, err := tensor.New(3, 2)
	require.NoError(t, err)

	l, err := gcn.NewLayer(ctx, 2, 2, gcn.Undirected, gcn.WithAllowZeroInDegree())
	require.NoError(t, err)
	_, err = l.ForwardWithWeight(g, gcn.Features{Fw: feat}, nil, identity(t, 2), nil)
	require.ErrorIs(t, err, gcn.ErrWeightConflict)
}

func TestForward_ZeroInDegreeFatalWithoutOptIn(t *testing.T) {
	t.Parallel()
	ctx := tensor.NewRunContext(5)
	g := pathGraph(t) // node 0 has in-degree 0
	feat, err := tensor.New(3, 2)
	require.NoError(t, err)

	l, err := gcn.NewLayer(ctx, 2, 2, gcn.Undirected)
	require.NoError(t, err)
	_, err = l.Forward(g, gcn.Features{Fw: feat}, nil)
	require.ErrorIs(t, err, gcn.ErrZeroInDegree)
}

func TestForward_ReverseWeightsRejectedOnUndirected(t *testing.T) {
	t.Parallel()
	ctx := tensor.NewRunContext(5)
	g := pathGraph(t)
	feat, err := tensor.New(3, 2)
	require.NoError(t, err)

	l, err := gcn.NewLayer(ctx, 2, 2, gcn.Undirected, gcn.WithAllowZeroInDegree())
	require.NoError(t, err)
	_, err = l.Forward(g, gcn.Features{Fw: feat}, &gcn.EdgeWeights{
		Forward: []float64{1, 1},
		Reverse: []float64{1, 1},
	})
	require.ErrorIs(t, err, gcn.ErrUnexpectedReverseWeight)
}

func mustRandom(t *testing.T, ctx *tensor.RunContext, rows, cols int) *tensor.Tensor {
	t.Helper()
	w, err := tensor.New(rows, cols)
	require.NoError(t, err)
	require.NoError(t, tensor.FillUniform(w, ctx, 0.5))
	return w
}
