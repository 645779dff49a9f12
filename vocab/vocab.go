// SPDX-License-Identifier: MIT

// Package vocab maintains bidirectional token↔index maps and the per-batch
// OOV-extended copies that back the decoder's copy mechanism.
//
// The reserved control tokens occupy fixed low indices in every vocabulary,
// and an OOV-extended clone only ever appends, so it agrees with its base
// on all shared symbols. The OOV copy is a deep copy: new OOV entries are
// invisible to the canonical vocabulary and to other batches.
package vocab

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/lvlnn/graph"
)

// Sentinel errors.
var (
	// ErrBadIndex indicates Symbol was asked for an index outside the table.
	ErrBadIndex = errors.New("vocab: index out of range")
)

// Reserved control tokens.
const (
	PadToken   = "<P>"
	SOSToken   = "<S>"
	EOSToken   = "</S>"
	UnkToken   = "<UNK>"
	NTToken    = "<NT>"
	OpenToken  = "("
	CloseToken = ")"
)

// Fixed indices of the reserved tokens; every vocabulary built by this
// package places them first, in this order.
const (
	PadIndex = iota
	SOSIndex
	EOSIndex
	UnkIndex
	NTIndex
	OpenIndex
	CloseIndex
)

// reserved lists the control tokens in index order.
var reserved = []string{PadToken, SOSToken, EOSToken, UnkToken, NTToken, OpenToken, CloseToken}

// Vocab is a bidirectional symbol↔index mapping with a reserved unknown
// index. Zero value is not usable; construct with New or FromCorpus.
type Vocab struct {
	symbolToIdx map[string]int
	idxToSymbol []string
}

// New creates a vocabulary holding only the reserved control tokens.
// Complexity: O(1).
func New() *Vocab {
	v := &Vocab{
		symbolToIdx: make(map[string]int, len(reserved)),
		idxToSymbol: make([]string, 0, len(reserved)),
	}
	for _, tok := range reserved {
		v.Add(tok)
	}
	return v
}

// FromCorpus builds a vocabulary from tokens, keeping symbols whose
// occurrence count reaches minFreq (minFreq < 1 behaves as 1). First-seen
// order decides index assignment, so a fixed corpus yields a fixed table.
// Complexity: O(len(tokens)).
func FromCorpus(tokens []string, minFreq int) *Vocab {
	if minFreq < 1 {
		minFreq = 1
	}
	freq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}
	v := New()
	for _, tok := range tokens { // first-seen order, not map order
		if freq[tok] >= minFreq {
			v.Add(tok)
		}
	}
	return v
}

// Size returns the number of entries. Complexity: O(1).
func (v *Vocab) Size() int { return len(v.idxToSymbol) }

// Index maps a token to its index, returning UnkIndex for absent symbols.
// Complexity: O(1).
func (v *Vocab) Index(token string) int {
	if idx, ok := v.symbolToIdx[token]; ok {
		return idx
	}
	return UnkIndex
}

// Symbol maps an index back to its token.
//
// Errors: ErrBadIndex.
// Complexity: O(1).
func (v *Vocab) Symbol(idx int) (string, error) {
	if idx < 0 || idx >= len(v.idxToSymbol) {
		return "", fmt.Errorf("Symbol(%d): %w", idx, ErrBadIndex)
	}
	return v.idxToSymbol[idx], nil
}

// Add appends token with the next integer index; idempotent, an existing
// token keeps and returns its current index.
// Complexity: O(1) amortized.
func (v *Vocab) Add(token string) int {
	if idx, ok := v.symbolToIdx[token]; ok {
		return idx
	}
	idx := len(v.idxToSymbol)
	v.symbolToIdx[token] = idx
	v.idxToSymbol = append(v.idxToSymbol, token)
	return idx
}

// IndicesOf maps a token sequence to indices. With addMissing, absent
// tokens are appended first (the OOV-extension side effect); otherwise
// they map to UnkIndex.
// Complexity: O(len(tokens)).
func (v *Vocab) IndicesOf(tokens []string, addMissing bool) []int {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		if addMissing {
			ids[i] = v.Add(tok)
		} else {
			ids[i] = v.Index(tok)
		}
	}
	return ids
}

// Clone returns a deep copy: the clone and receiver share no storage, so
// appending to one never disturbs the other.
// Complexity: O(size).
func (v *Vocab) Clone() *Vocab {
	c := &Vocab{
		symbolToIdx: make(map[string]int, len(v.symbolToIdx)),
		idxToSymbol: make([]string, len(v.idxToSymbol)),
	}
	for tok, idx := range v.symbolToIdx {
		c.symbolToIdx[tok] = idx
	}
	copy(c.idxToSymbol, v.idxToSymbol)
	return c
}

// BuildOOV deep-copies base, extends the copy with every unknown type-0
// node token of g, writes the token_id_oov index slot onto g, and returns
// the extended vocabulary with the per-node ids. The base vocabulary is
// never mutated; the returned copy lives for one batch and is then
// discarded. Nodes with an empty token (attribute-less construction) map
// to the unknown index and never widen the table.
// Complexity: O(V).
func BuildOOV(base *Vocab, g *graph.Graph) (*Vocab, []int, error) {
	oov := base.Clone()
	ids := make([]int, g.NumNodes())
	for i, n := range g.Nodes() {
		if n.Type == 0 && n.Token != "" && oov.Index(n.Token) == UnkIndex {
			oov.Add(n.Token)
		}
		ids[i] = oov.Index(n.Token)
	}
	if err := g.SetNodeIndex(graph.SlotTokenIDOOV, ids); err != nil {
		return nil, nil, fmt.Errorf("BuildOOV: %w", err)
	}
	return oov, ids, nil
}
