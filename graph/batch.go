// SPDX-License-Identifier: MIT

package graph

// BatchGraphs forms the disjoint union of gs: nodes are relabelled with a
// running offset in argument order, edges keep their weights, and the
// member windows are recorded so decoders can address each example's node
// block (see Ranges). Feature slots are NOT merged — batching happens
// before embedding, and the model writes batch-level slots afterwards.
//
// Errors: ErrEmptyBatch on an empty argument list.
// Complexity: O(total V + total E).
func BatchGraphs(gs []*Graph) (*Graph, error) {
	if len(gs) == 0 {
		return nil, ErrEmptyBatch
	}
	total := 0
	for _, g := range gs {
		total += g.NumNodes()
	}
	out, err := New(total)
	if err != nil {
		return nil, err
	}
	out.ranges = out.ranges[:0]

	off := 0
	for _, g := range gs {
		copy(out.nodes[off:off+g.NumNodes()], g.nodes)
		for _, e := range g.edges {
			out.edges = append(out.edges, Edge{
				Src:           e.Src + off,
				Dst:           e.Dst + off,
				Weight:        e.Weight,
				ReverseWeight: e.ReverseWeight,
			})
		}
		if g.hasEdgeWeights {
			out.hasEdgeWeights = true
		}
		out.ranges = append(out.ranges, [2]int{off, off + g.NumNodes()})
		off += g.NumNodes()
	}
	return out, nil
}
