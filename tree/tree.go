// SPDX-License-Identifier: MIT

// Package tree parses bracketed token sequences into expression trees and
// serializes them back. The decoder emits flat index sequences where "("
// opens a subtree and ")" closes it; Parse recovers the nesting, Flatten
// inverts it, and RepairBrackets patches the unbalanced sequences a
// truncated decode can produce.
package tree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/katalvlaran/lvlnn/vocab"
)

// Sentinel errors.
var (
	// ErrUnbalanced indicates a close bracket without a matching open, or
	// an open bracket left unclosed at end of input.
	ErrUnbalanced = errors.New("tree: unbalanced brackets")
	// ErrEmptyInput indicates Parse received no tokens.
	ErrEmptyInput = errors.New("tree: empty input")
)

// Node is one expression-tree vertex. Leaves carry a terminal symbol and
// no children; internal nodes carry vocab.NTIndex and at least one child.
// Parent is a back-reference for walking toward the root; it is nil on
// the root itself.
type Node struct {
	Symbol   int
	Children []*Node
	Parent   *Node
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// AddChild appends c and sets its parent back-reference.
func (n *Node) AddChild(c *Node) {
	c.Parent = n
	n.Children = append(n.Children, c)
}

// Parse recovers the tree behind a flat bracketed index sequence. Every
// "(" opens a child subtree of the current node and the matching ")"
// closes it; other indices become leaves. The returned root is a synthetic
// non-terminal holding the top-level items.
//
// Errors: ErrEmptyInput, ErrUnbalanced.
// Complexity: O(len(ids)).
func Parse(ids []int) (*Node, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("Parse: %w", ErrEmptyInput)
	}
	root := &Node{Symbol: vocab.NTIndex}
	cur := root
	for _, id := range ids {
		switch id {
		case vocab.OpenIndex:
			child := &Node{Symbol: vocab.NTIndex}
			cur.AddChild(child)
			cur = child
		case vocab.CloseIndex:
			if cur.Parent == nil {
				return nil, fmt.Errorf("Parse: close without open: %w", ErrUnbalanced)
			}
			cur = cur.Parent
		default:
			cur.AddChild(&Node{Symbol: id})
		}
	}
	if cur != root {
		return nil, fmt.Errorf("Parse: open without close: %w", ErrUnbalanced)
	}
	return root, nil
}

// Flatten serializes the tree back to the flat index form, wrapping every
// internal node below the root in a bracket pair. Flatten(Parse(ids))
// reproduces ids for any balanced input.
// Complexity: O(nodes).
func Flatten(root *Node) []int {
	var out []int
	for _, c := range root.Children {
		out = appendNode(out, c)
	}
	return out
}

func appendNode(out []int, n *Node) []int {
	if n.IsLeaf() {
		return append(out, n.Symbol)
	}
	out = append(out, vocab.OpenIndex)
	for _, c := range n.Children {
		out = appendNode(out, c)
	}
	return append(out, vocab.CloseIndex)
}

// Equal reports structural equality: same symbols, same arity, same child
// order at every position. Parent pointers are ignored.
// Complexity: O(min nodes).
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Symbol != b.Symbol || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// String renders the tree as a bracketed token string using v for symbol
// lookup; indices outside v render as the unknown token. Intended for
// logging and test diagnostics.
func String(root *Node, v *vocab.Vocab) string {
	var sb strings.Builder
	for i, id := range Flatten(root) {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sym, err := v.Symbol(id)
		if err != nil {
			sym = vocab.UnkToken
		}
		sb.WriteString(sym)
	}
	return sb.String()
}

// RepairBrackets returns a count-balanced copy of ids: when opens exceed
// closes the missing closes are appended, and when closes exceed opens
// exactly that many tokens are cut from the tail. Greedy or truncated
// beam decodes routinely stop mid-subtree; this heuristic restores the
// bracket count, not well-formedness — a close preceding every open
// still fails Parse, which the caller surfaces.
// Complexity: O(len(ids)).
func RepairBrackets(ids []int) []int {
	diff := 0
	for _, id := range ids {
		switch id {
		case vocab.OpenIndex:
			diff++
		case vocab.CloseIndex:
			diff--
		}
	}

	if diff < 0 {
		out := make([]int, len(ids)+diff)
		copy(out, ids)
		return out
	}
	out := make([]int, len(ids), len(ids)+diff)
	copy(out, ids)
	for ; diff > 0; diff-- {
		out = append(out, vocab.CloseIndex)
	}
	return out
}
