// SPDX-License-Identifier: MIT

package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/lvlnn/gcn"
	"github.com/katalvlaran/lvlnn/graph"
	"github.com/katalvlaran/lvlnn/model"
	"github.com/katalvlaran/lvlnn/tensor"
	"github.com/katalvlaran/lvlnn/tree"
	"github.com/katalvlaran/lvlnn/vocab"
)

func testVocabs(t *testing.T) (*vocab.Vocab, *vocab.Vocab) {
	t.Helper()
	src := vocab.New()
	for _, tok := range []string{"what", "jobs", "pay", "60000"} {
		src.Add(tok)
	}
	tgt := vocab.New()
	for _, tok := range []string{"lambda", "$0", "e", "job", "salary"} {
		tgt.Add(tok)
	}
	return src, tgt
}

func testModel(t *testing.T, seed int64) *model.Graph2Tree {
	t.Helper()
	src, tgt := testVocabs(t)
	m, err := model.New(tensor.NewRunContext(seed), model.Config{
		EmbSize:    4,
		HiddenSize: 5,
		NumLayers:  2,
		Direction:  gcn.BiFuse,
		Norm:       gcn.NormBoth,
		UseCopy:    true,
		MaxSeqLen:  10,
		MaxDepth:   3,
		InitWeight: 0.08,
	}, src, tgt)
	require.NoError(t, err)
	return m
}

// jobsGraph is a 3-node chain over question tokens; "60000" is absent
// from the target vocabulary and reachable only through the copy path.
func jobsGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.NewFromNodes([]graph.Node{
		{Token: "jobs", Type: 0},
		{Token: "pay", Type: 0},
		{Token: "60000", Type: 0},
	})
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(0, 1))
	require.NoError(t, g.AddEdge(1, 2))
	return g
}

func refTree(t *testing.T, tgt *vocab.Vocab) *tree.Node {
	t.Helper()
	ids := []int{vocab.OpenIndex, tgt.Index("job"), tgt.Index("$0"), vocab.CloseIndex}
	root, err := tree.Parse(ids)
	require.NoError(t, err)
	return root
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	_, tgt := testVocabs(t)
	_, err := model.New(tensor.NewRunContext(1), model.Config{EmbSize: 4, HiddenSize: 4, NumLayers: 1}, nil, tgt)
	require.ErrorIs(t, err, model.ErrNilVocab)
}

func TestParams_UniqueNames(t *testing.T) {
	t.Parallel()
	m := testModel(t, 2)

	names := make(map[string]struct{})
	for _, p := range m.Params() {
		require.NotEmpty(t, p.Name())
		_, dup := names[p.Name()]
		require.False(t, dup, "duplicate parameter name %q", p.Name())
		names[p.Name()] = struct{}{}
	}
	require.Contains(t, names, "g2t.src_emb")
	require.Contains(t, names, "g2t.enc.layer0.weight_fw")
	require.Contains(t, names, "g2t.dec.lstm_wx")
}

func TestLoss_BatchedSumWithGradients(t *testing.T) {
	t.Parallel()
	m := testModel(t, 3)

	g1, g2 := jobsGraph(t), jobsGraph(t)
	ref := refTree(t, m.TargetVocab())

	loss, err := m.Loss([]*graph.Graph{g1, g2}, []*tree.Node{ref, ref})
	require.NoError(t, err)

	val, err := loss.At(0, 0)
	require.NoError(t, err)
	require.Greater(t, val, 0.0)

	require.NoError(t, tensor.Backward(loss))
	var reached bool
	for _, p := range m.Params() {
		for _, g := range p.Grad() {
			if g != 0 {
				reached = true
				break
			}
		}
	}
	require.True(t, reached)
}

func TestLoss_LengthMismatch(t *testing.T) {
	t.Parallel()
	m := testModel(t, 4)
	_, err := m.Loss([]*graph.Graph{jobsGraph(t)}, nil)
	require.ErrorIs(t, err, model.ErrBadBatch)
}

func TestLoss_IdenticalMembersDoubleTheLoss(t *testing.T) {
	t.Parallel()
	ref := refTree(t, testModel(t, 5).TargetVocab())

	single, err := testModel(t, 5).Loss([]*graph.Graph{jobsGraph(t)}, []*tree.Node{ref})
	require.NoError(t, err)
	double, err := testModel(t, 5).Loss([]*graph.Graph{jobsGraph(t), jobsGraph(t)}, []*tree.Node{ref, ref})
	require.NoError(t, err)

	s, err := single.At(0, 0)
	require.NoError(t, err)
	d, err := double.At(0, 0)
	require.NoError(t, err)
	require.InDelta(t, 2*s, d, 1e-9)
}

func TestTranslate_Deterministic(t *testing.T) {
	t.Parallel()

	_, idsA, errA := testModel(t, 6).Translate(jobsGraph(t), 2)
	_, idsB, errB := testModel(t, 6).Translate(jobsGraph(t), 2)
	require.Equal(t, errA == nil, errB == nil)
	require.Equal(t, idsA, idsB)
}
