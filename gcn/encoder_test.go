// SPDX-License-Identifier: MIT

package gcn_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/lvlnn/gcn"
	"github.com/katalvlaran/lvlnn/graph"
	"github.com/katalvlaran/lvlnn/tensor"
)

func encoderInput(t *testing.T, g *graph.Graph, width int) {
	t.Helper()
	feat, err := tensor.New(g.NumNodes(), width)
	require.NoError(t, err)
	ctx := tensor.NewRunContext(99)
	require.NoError(t, tensor.FillUniform(feat, ctx, 1))
	require.NoError(t, g.SetNodeFeatures(graph.SlotNodeFeat, feat))
}

func TestNewEncoder_Validation(t *testing.T) {
	t.Parallel()
	ctx := tensor.NewRunContext(1)

	_, err := gcn.NewEncoder(ctx, gcn.EncoderConfig{NumLayers: 0, InFeats: 4, OutFeats: 4})
	require.ErrorIs(t, err, gcn.ErrBadLayerCount)

	_, err = gcn.NewEncoder(ctx, gcn.EncoderConfig{
		NumLayers:   3,
		InFeats:     4,
		HiddenSizes: []int{8, 8, 8}, // needs exactly 2 (or 1 to broadcast)
		OutFeats:    4,
	})
	require.ErrorIs(t, err, gcn.ErrBadHiddenSizes)
}

func TestEncoder_WritesNodeEmb(t *testing.T) {
	t.Parallel()
	ctx := tensor.NewRunContext(21)
	g := pathGraph(t)
	encoderInput(t, g, 4)

	enc, err := gcn.NewEncoder(ctx, gcn.EncoderConfig{
		NumLayers:         2,
		InFeats:           4,
		HiddenSizes:       []int{6},
		OutFeats:          5,
		Direction:         gcn.Undirected,
		Norm:              gcn.NormBoth,
		Activation:        tensor.ReLU,
		AllowZeroInDegree: true,
	})
	require.NoError(t, err)

	out, err := enc.Forward(g)
	require.NoError(t, err)
	require.Equal(t, 3, out.Rows())
	require.Equal(t, 5, out.Cols())

	stored, err := g.NodeFeatures(graph.SlotNodeEmb)
	require.NoError(t, err)
	require.Same(t, out, stored)
}

func TestEncoder_BiSepConcatenatesAfterLastLayer(t *testing.T) {
	t.Parallel()
	ctx := tensor.NewRunContext(22)
	g := pathGraph(t)
	encoderInput(t, g, 4)

	enc, err := gcn.NewEncoder(ctx, gcn.EncoderConfig{
		NumLayers:         3,
		InFeats:           4,
		HiddenSizes:       []int{6}, // broadcast to both hidden layers
		OutFeats:          5,
		Direction:         gcn.BiSep,
		Norm:              gcn.NormBoth,
		Activation:        tensor.ReLU,
		AllowZeroInDegree: true,
	})
	require.NoError(t, err)
	require.Equal(t, 10, enc.OutputWidth())

	out, err := enc.Forward(g)
	require.NoError(t, err)
	require.Equal(t, 10, out.Cols())
}

func TestEncoder_ParamsAreNamedAndStable(t *testing.T) {
	t.Parallel()
	ctx := tensor.NewRunContext(23)
	enc, err := gcn.NewEncoder(ctx, gcn.EncoderConfig{
		NumLayers:   2,
		InFeats:     4,
		HiddenSizes: []int{6},
		OutFeats:    5,
		Direction:   gcn.BiFuse,
		Norm:        gcn.NormBoth,
		Name:        "enc",
	})
	require.NoError(t, err)

	names := make(map[string]struct{})
	for _, p := range enc.Params() {
		require.NotEmpty(t, p.Name())
		_, dup := names[p.Name()]
		require.False(t, dup, "duplicate parameter name %q", p.Name())
		names[p.Name()] = struct{}{}
	}
	require.Contains(t, names, "enc.layer0.weight_fw")
	require.Contains(t, names, "enc.layer1.fuse_weight")
}
