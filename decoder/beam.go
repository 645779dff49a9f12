// SPDX-License-Identifier: MIT

package decoder

import (
	"fmt"
	"math"
	"sort"

	"github.com/katalvlaran/lvlnn/tensor"
	"github.com/katalvlaran/lvlnn/tree"
	"github.com/katalvlaran/lvlnn/vocab"
)

// hypothesis is one partial decode of a single subtree: emitted tokens,
// the state recorded after each emission (needed to seed child subtrees
// at non-terminal positions), the live state, and the cumulative
// log-probability.
type hypothesis struct {
	ids    []int
	states []*state
	st     *state
	score  float64
	done   bool
}

// extend returns a copy of h with one more emitted token. The terminator
// marks the hypothesis done without entering the token sequence.
func (h *hypothesis) extend(tok int, logp float64, next *state) *hypothesis {
	n := &hypothesis{
		ids:    make([]int, len(h.ids), len(h.ids)+1),
		states: make([]*state, len(h.states), len(h.states)+1),
		st:     next,
		score:  h.score + logp,
	}
	copy(n.ids, h.ids)
	copy(n.states, h.states)
	if tok == vocab.EOSIndex {
		n.done = true
		return n
	}
	n.ids = append(n.ids, tok)
	n.states = append(n.states, next)
	return n
}

// candidate pairs a hypothesis with the token index that produced it, so
// equal scores break toward the lower token.
type candidate struct {
	hyp *hypothesis
	tok int
}

// Translate decodes one graph's embeddings into a flat bracketed token
// sequence, beam-searching each subtree depth-first and repairing bracket
// balance at the end. Beam size 1 is greedy decoding on the same path.
// oovIDs and extSize are ignored when the copy mechanism is off.
//
// Errors: ErrBadBeamSize, ErrEncoderWidth, ErrBadOOVIDs.
func (d *TreeDecoder) Translate(enc *tensor.Tensor, oovIDs []int, extSize, beamSize int) ([]int, error) {
	if beamSize < 1 {
		return nil, fmt.Errorf("Translate: %w", ErrBadBeamSize)
	}
	if !d.cfg.UseCopy {
		extSize = d.cfg.VocabSize
	}
	if err := d.validateInputs(enc, oovIDs, extSize); err != nil {
		return nil, fmt.Errorf("Translate: %w", err)
	}
	encProj, err := tensor.MatMul(enc, d.attnEnc)
	if err != nil {
		return nil, fmt.Errorf("Translate: %w", err)
	}
	seed, err := d.zeroState()
	if err != nil {
		return nil, fmt.Errorf("Translate: %w", err)
	}
	ids, err := d.decodeSubtree(enc, encProj, oovIDs, extSize, beamSize, seed, 0)
	if err != nil {
		return nil, fmt.Errorf("Translate: %w", err)
	}
	return tree.RepairBrackets(ids), nil
}

// decodeSubtree beam-searches one subtree from seed, then recursively
// expands every non-terminal emission into a bracketed child sequence.
// Recursion stops at the depth cap, leaving the non-terminal as a leaf.
func (d *TreeDecoder) decodeSubtree(enc, encProj *tensor.Tensor, oovIDs []int, extSize, beamSize int, seed *state, depth int) ([]int, error) {
	beam := []*hypothesis{{st: seed}}

	for step := 0; step < d.cfg.MaxSeqLen; step++ {
		var cands []candidate
		live := 0
		for _, h := range beam {
			if h.done {
				cands = append(cands, candidate{hyp: h, tok: vocab.EOSIndex})
				continue
			}
			live++

			input := vocab.SOSIndex
			if len(h.ids) > 0 {
				input = h.ids[len(h.ids)-1]
			}
			so, err := d.step(enc, encProj, input, h.st)
			if err != nil {
				return nil, err
			}
			dist, err := d.distribution(so, oovIDs, extSize)
			if err != nil {
				return nil, err
			}
			row := dist.Data()
			for tok, p := range row {
				// Padding and start-of-sequence never appear in output, and
				// brackets are structural: they enter the sequence only when
				// a non-terminal's subtree is spliced in, never as emissions.
				if tok == vocab.PadIndex || tok == vocab.SOSIndex ||
					tok == vocab.OpenIndex || tok == vocab.CloseIndex {
					continue
				}
				cands = append(cands, candidate{
					hyp: h.extend(tok, math.Log(p+d.eps), so.next),
					tok: tok,
				})
			}
		}
		if live == 0 {
			break
		}

		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].hyp.score != cands[j].hyp.score {
				return cands[i].hyp.score > cands[j].hyp.score
			}
			return cands[i].tok < cands[j].tok
		})
		if len(cands) > beamSize {
			cands = cands[:beamSize]
		}
		beam = beam[:0]
		for _, c := range cands {
			beam = append(beam, c.hyp)
		}
	}

	best := pickBest(beam)
	out := make([]int, 0, len(best.ids))
	for i, tok := range best.ids {
		if tok != vocab.NTIndex || depth >= d.cfg.MaxDepth {
			out = append(out, tok)
			continue
		}
		child, err := d.decodeSubtree(enc, encProj, oovIDs, extSize, beamSize, best.states[i], depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, vocab.OpenIndex)
		out = append(out, child...)
		out = append(out, vocab.CloseIndex)
	}
	return out, nil
}

// pickBest prefers the highest-scoring finished hypothesis, falling back
// to the best live one when the length cap cut everything short.
func pickBest(beam []*hypothesis) *hypothesis {
	var best *hypothesis
	for _, h := range beam {
		if h.done && (best == nil || h.score > best.score) {
			best = h
		}
	}
	if best != nil {
		return best
	}
	for _, h := range beam {
		if best == nil || h.score > best.score {
			best = h
		}
	}
	return best
}
