// SPDX-License-Identifier: MIT

package graph

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/lvlnn/tensor"
)

// Sentinel errors for container operations.
var (
	// ErrNoNodes indicates a graph constructed with zero nodes.
	ErrNoNodes = errors.New("graph: node count must be positive")

	// ErrBadEndpoint indicates an edge endpoint outside [0, NumNodes).
	ErrBadEndpoint = errors.New("graph: edge endpoint out of range")

	// ErrUnknownSlot indicates a read of a feature slot that was never set.
	ErrUnknownSlot = errors.New("graph: unknown feature slot")

	// ErrFeatureShape indicates a feature tensor whose row count does not
	// match the node count.
	ErrFeatureShape = errors.New("graph: feature rows must equal node count")

	// ErrEmptyBatch indicates BatchGraphs was called with no graphs.
	ErrEmptyBatch = errors.New("graph: empty batch")
)

// Well-known feature slot names shared across the toolkit.
const (
	// SlotNodeFeat holds the learned input embeddings of each node.
	SlotNodeFeat = "node_feat"

	// SlotNodeEmb holds the encoder output embeddings of each node.
	SlotNodeEmb = "node_emb"

	// SlotTokenIDOOV holds per-node token ids under the OOV-extended vocab.
	SlotTokenIDOOV = "token_id_oov"
)

// Node is a graph node: an optional surface token and a discrete type tag.
// Type 0 marks ordinary word nodes (the only ones the copy mechanism may
// point at); non-zero types mark structural nodes.
type Node struct {
	Token string
	Type  int
}

// Edge is a directed connection Src→Dst with a scalar forward weight and an
// independent reverse-direction weight. The two must never be conflated:
// the forward pass of a bidirectional layer aggregates with Weight, the
// backward pass with ReverseWeight.
type Edge struct {
	Src, Dst              int
	Weight, ReverseWeight float64
}

// EdgeOption configures an edge at AddEdge time.
type EdgeOption func(*Edge)

// WithWeight sets the forward scalar weight (default 1).
func WithWeight(w float64) EdgeOption {
	return func(e *Edge) { e.Weight = w }
}

// WithReverseWeight sets the reverse-direction scalar weight (default 1).
func WithReverseWeight(w float64) EdgeOption {
	return func(e *Edge) { e.ReverseWeight = w }
}

// Graph is the container handed to the convolution stack: fixed nodes,
// append-ordered directed edges, named tensor feature slots and named
// integer index slots (token ids).
type Graph struct {
	nodes []Node
	edges []Edge

	feats   map[string]*tensor.Tensor
	indexes map[string][]int

	// ranges holds [start, end) node windows of the member graphs after
	// batching; a single graph holds one window covering all nodes.
	ranges [][2]int

	hasEdgeWeights bool
}

// New creates a graph with n attribute-less nodes and no edges.
//
// Errors: ErrNoNodes when n <= 0.
// Complexity: O(n).
func New(n int) (*Graph, error) {
	if n <= 0 {
		return nil, ErrNoNodes
	}
	return &Graph{
		nodes:   make([]Node, n),
		feats:   make(map[string]*tensor.Tensor),
		indexes: make(map[string][]int),
		ranges:  [][2]int{{0, n}},
	}, nil
}

// NewFromNodes creates a graph whose nodes carry the given attributes.
//
// Errors: ErrNoNodes on an empty slice.
// Complexity: O(n).
func NewFromNodes(nodes []Node) (*Graph, error) {
	g, err := New(len(nodes))
	if err != nil {
		return nil, err
	}
	copy(g.nodes, nodes)
	return g, nil
}

// NumNodes returns the fixed node count. Complexity: O(1).
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the current edge count. Complexity: O(1).
func (g *Graph) NumEdges() int { return len(g.edges) }

// Node returns a copy of node i's attributes (no bounds error: callers
// iterate [0, NumNodes)).
func (g *Graph) Node(i int) Node { return g.nodes[i] }

// Nodes returns the node attribute slice (read-only by convention).
func (g *Graph) Nodes() []Node { return g.nodes }

// Edges returns the append-ordered edge slice (read-only by convention).
func (g *Graph) Edges() []Edge { return g.edges }

// Ranges returns the per-member [start, end) node windows (one window for
// an unbatched graph).
func (g *Graph) Ranges() [][2]int { return g.ranges }

// HasEdgeWeights reports whether any edge carries a non-default weight.
func (g *Graph) HasEdgeWeights() bool { return g.hasEdgeWeights }

// AddEdge appends the directed edge src→dst. Both weights default to 1.
//
// Errors: ErrBadEndpoint when either endpoint is outside [0, NumNodes).
// Complexity: O(1) amortized.
func (g *Graph) AddEdge(src, dst int, opts ...EdgeOption) error {
	if src < 0 || src >= len(g.nodes) || dst < 0 || dst >= len(g.nodes) {
		return fmt.Errorf("AddEdge(%d,%d): %w", src, dst, ErrBadEndpoint)
	}
	e := Edge{Src: src, Dst: dst, Weight: 1, ReverseWeight: 1}
	for _, opt := range opts {
		opt(&e)
	}
	if e.Weight != 1 || e.ReverseWeight != 1 {
		g.hasEdgeWeights = true
	}
	g.edges = append(g.edges, e)
	return nil
}

// SetNodeFeatures stores t under the named slot.
//
// Errors: ErrNilTensor via tensor validation semantics (nil t),
// ErrFeatureShape when t.Rows() != NumNodes().
// Complexity: O(1).
func (g *Graph) SetNodeFeatures(name string, t *tensor.Tensor) error {
	if t == nil {
		return fmt.Errorf("SetNodeFeatures(%q): %w", name, tensor.ErrNilTensor)
	}
	if t.Rows() != len(g.nodes) {
		return fmt.Errorf("SetNodeFeatures(%q): %w", name, ErrFeatureShape)
	}
	g.feats[name] = t
	return nil
}

// NodeFeatures retrieves the named feature slot.
//
// Errors: ErrUnknownSlot when the slot was never set.
// Complexity: O(1).
func (g *Graph) NodeFeatures(name string) (*tensor.Tensor, error) {
	t, ok := g.feats[name]
	if !ok {
		return nil, fmt.Errorf("NodeFeatures(%q): %w", name, ErrUnknownSlot)
	}
	return t, nil
}

// SetNodeIndex stores an integer per-node vector (token ids) under name.
//
// Errors: ErrFeatureShape when len(ids) != NumNodes().
func (g *Graph) SetNodeIndex(name string, ids []int) error {
	if len(ids) != len(g.nodes) {
		return fmt.Errorf("SetNodeIndex(%q): %w", name, ErrFeatureShape)
	}
	g.indexes[name] = ids
	return nil
}

// NodeIndex retrieves the named integer per-node vector.
//
// Errors: ErrUnknownSlot when the slot was never set.
func (g *Graph) NodeIndex(name string) ([]int, error) {
	ids, ok := g.indexes[name]
	if !ok {
		return nil, fmt.Errorf("NodeIndex(%q): %w", name, ErrUnknownSlot)
	}
	return ids, nil
}

// EdgeEndpoints materializes the source and destination index vectors in
// edge order (the gather/scatter layout of the aggregation kernels).
// Complexity: O(E).
func (g *Graph) EdgeEndpoints() (src, dst []int) {
	src = make([]int, len(g.edges))
	dst = make([]int, len(g.edges))
	for i, e := range g.edges {
		src[i], dst[i] = e.Src, e.Dst
	}
	return src, dst
}

// EdgeWeights materializes forward weights in edge order. Complexity: O(E).
func (g *Graph) EdgeWeights() []float64 {
	w := make([]float64, len(g.edges))
	for i, e := range g.edges {
		w[i] = e.Weight
	}
	return w
}

// ReverseEdgeWeights materializes reverse-direction weights in edge order.
// Complexity: O(E).
func (g *Graph) ReverseEdgeWeights() []float64 {
	w := make([]float64, len(g.edges))
	for i, e := range g.edges {
		w[i] = e.ReverseWeight
	}
	return w
}

// InDegrees counts incoming edges per node (float64 for normalization
// math). Complexity: O(V+E).
func (g *Graph) InDegrees() []float64 {
	d := make([]float64, len(g.nodes))
	for _, e := range g.edges {
		d[e.Dst]++
	}
	return d
}

// OutDegrees counts outgoing edges per node. Complexity: O(V+E).
func (g *Graph) OutDegrees() []float64 {
	d := make([]float64, len(g.nodes))
	for _, e := range g.edges {
		d[e.Src]++
	}
	return d
}

// Reverse returns a view with every edge flipped and forward/reverse
// weights swapped. Nodes, feature slots and index slots are shared with
// the receiver — the backward branch of a bidirectional layer reads the
// same features through the reversed topology.
// Complexity: O(E).
func (g *Graph) Reverse() *Graph {
	rev := &Graph{
		nodes:          g.nodes,
		edges:          make([]Edge, len(g.edges)),
		feats:          g.feats,
		indexes:        g.indexes,
		ranges:         g.ranges,
		hasEdgeWeights: g.hasEdgeWeights,
	}
	for i, e := range g.edges {
		rev.edges[i] = Edge{
			Src:           e.Dst,
			Dst:           e.Src,
			Weight:        e.ReverseWeight,
			ReverseWeight: e.Weight,
		}
	}
	return rev
}
