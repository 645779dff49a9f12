// SPDX-License-Identifier: MIT

package decoder

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/lvlnn/tensor"
	"github.com/katalvlaran/lvlnn/tree"
	"github.com/katalvlaran/lvlnn/vocab"
)

// Sentinel errors.
var (
	// ErrBadConfig indicates a non-positive size in Config.
	ErrBadConfig = errors.New("decoder: invalid configuration")
	// ErrBadBeamSize indicates Translate was asked for a beam of width < 1.
	ErrBadBeamSize = errors.New("decoder: beam size must be >= 1")
	// ErrNilTree indicates Loss received a nil reference tree.
	ErrNilTree = errors.New("decoder: nil reference tree")
	// ErrEncoderWidth indicates the node-embedding width does not match
	// the configured encoder size.
	ErrEncoderWidth = errors.New("decoder: encoder embedding width mismatch")
	// ErrBadOOVIDs indicates the per-node OOV index list does not cover
	// every encoder row, or an index falls outside the extended vocabulary.
	ErrBadOOVIDs = errors.New("decoder: per-node OOV ids do not match encoder rows")
)

// Defaults.
const (
	DefaultMaxSeqLen = 50
	DefaultMaxDepth  = 50
	DefaultName      = "dec"
)

// Config fixes the decoder's shape at construction.
type Config struct {
	EmbSize    int // target token embedding width
	HiddenSize int // LSTM hidden width
	EncSize    int // encoder node-embedding width
	VocabSize  int // base target vocabulary size

	// UseCopy enables the pointer mixture over the OOV-extended vocabulary.
	UseCopy bool

	// MaxSeqLen caps tokens per subtree; MaxDepth caps subtree nesting.
	// Zero selects the defaults.
	MaxSeqLen int
	MaxDepth  int

	// Name prefixes parameter names (default "dec").
	Name string
}

// TreeDecoder holds the learned parameters of the attention LSTM cell and
// the output/copy heads. Construct with NewTreeDecoder.
type TreeDecoder struct {
	cfg Config
	eps float64

	emb *tensor.Tensor // VocabSize × EmbSize

	wx *tensor.Tensor // EmbSize × 4·HiddenSize
	wh *tensor.Tensor // HiddenSize × 4·HiddenSize
	b  *tensor.Tensor // 1 × 4·HiddenSize

	attnEnc *tensor.Tensor // EncSize × HiddenSize
	attnDec *tensor.Tensor // HiddenSize × HiddenSize
	attnV   *tensor.Tensor // HiddenSize × 1

	outW *tensor.Tensor // (HiddenSize+EncSize) × VocabSize
	outB *tensor.Tensor // 1 × VocabSize

	gateW *tensor.Tensor // (HiddenSize+EncSize) × 1, copy mode only
	gateB *tensor.Tensor // 1 × 1, copy mode only
}

// NewTreeDecoder validates cfg and allocates parameters drawn from ctx.
//
// Errors: ErrBadConfig.
func NewTreeDecoder(ctx *tensor.RunContext, cfg Config) (*TreeDecoder, error) {
	if cfg.EmbSize < 1 || cfg.HiddenSize < 1 || cfg.EncSize < 1 || cfg.VocabSize < 1 {
		return nil, fmt.Errorf("NewTreeDecoder: %w", ErrBadConfig)
	}
	if cfg.MaxSeqLen == 0 {
		cfg.MaxSeqLen = DefaultMaxSeqLen
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.MaxSeqLen < 1 || cfg.MaxDepth < 1 {
		return nil, fmt.Errorf("NewTreeDecoder: %w", ErrBadConfig)
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}

	d := &TreeDecoder{cfg: cfg, eps: ctx.Epsilon}
	h := cfg.HiddenSize
	var err error

	param := func(rows, cols int, suffix string, xavier bool) *tensor.Tensor {
		if err != nil {
			return nil
		}
		var p *tensor.Tensor
		if p, err = tensor.NewParam(rows, cols, cfg.Name+"."+suffix); err != nil {
			return nil
		}
		if xavier {
			err = tensor.XavierUniform(p, ctx)
		}
		return p
	}

	d.emb = param(cfg.VocabSize, cfg.EmbSize, "emb", true)
	d.wx = param(cfg.EmbSize, 4*h, "lstm_wx", true)
	d.wh = param(h, 4*h, "lstm_wh", true)
	d.b = param(1, 4*h, "lstm_b", false)
	d.attnEnc = param(cfg.EncSize, h, "attn_enc", true)
	d.attnDec = param(h, h, "attn_dec", true)
	d.attnV = param(h, 1, "attn_v", true)
	d.outW = param(h+cfg.EncSize, cfg.VocabSize, "out_weight", true)
	d.outB = param(1, cfg.VocabSize, "out_bias", false)
	if cfg.UseCopy {
		d.gateW = param(h+cfg.EncSize, 1, "copy_gate_weight", true)
		d.gateB = param(1, 1, "copy_gate_bias", false)
	}
	if err != nil {
		return nil, fmt.Errorf("NewTreeDecoder: %w", err)
	}
	return d, nil
}

// Params returns every learned parameter in a stable order.
func (d *TreeDecoder) Params() []*tensor.Tensor {
	ps := []*tensor.Tensor{
		d.emb, d.wx, d.wh, d.b,
		d.attnEnc, d.attnDec, d.attnV,
		d.outW, d.outB,
	}
	if d.cfg.UseCopy {
		ps = append(ps, d.gateW, d.gateB)
	}
	return ps
}

// state is one decoding context: hidden and cell rows, both 1×HiddenSize.
type state struct {
	h, c *tensor.Tensor
}

func (d *TreeDecoder) zeroState() (*state, error) {
	h, err := tensor.New(1, d.cfg.HiddenSize)
	if err != nil {
		return nil, err
	}
	c, err := tensor.New(1, d.cfg.HiddenSize)
	if err != nil {
		return nil, err
	}
	return &state{h: h, c: c}, nil
}

// validateInputs checks the encoder embeddings and OOV index list against
// the configuration once per decode or loss call.
func (d *TreeDecoder) validateInputs(enc *tensor.Tensor, oovIDs []int, extSize int) error {
	if enc == nil || enc.Cols() != d.cfg.EncSize {
		return ErrEncoderWidth
	}
	if !d.cfg.UseCopy {
		return nil
	}
	if len(oovIDs) != enc.Rows() {
		return ErrBadOOVIDs
	}
	for _, id := range oovIDs {
		if id < 0 || id >= extSize {
			return ErrBadOOVIDs
		}
	}
	return nil
}

// stepOut carries everything one cell step produces: the post-attention
// feature row, the attention weights over nodes, and the next state.
type stepOut struct {
	concat *tensor.Tensor // 1 × (HiddenSize+EncSize)
	alpha  *tensor.Tensor // 1 × nodes
	next   *state
}

// step advances the cell by one token. Input ids past the base vocabulary
// (per-batch OOV entries) embed as the unknown token; the distribution
// side still covers them through the copy scatter.
func (d *TreeDecoder) step(enc, encProj *tensor.Tensor, tokenID int, st *state) (*stepOut, error) {
	if tokenID < 0 || tokenID >= d.cfg.VocabSize {
		tokenID = vocab.UnkIndex
	}
	x, err := tensor.GatherRows(d.emb, []int{tokenID})
	if err != nil {
		return nil, err
	}

	// Gate pre-activations: z = x·Wx + h·Wh + b, sliced i|f|o|g.
	zx, err := tensor.MatMul(x, d.wx)
	if err != nil {
		return nil, err
	}
	zh, err := tensor.MatMul(st.h, d.wh)
	if err != nil {
		return nil, err
	}
	z, err := tensor.Add(zx, zh)
	if err != nil {
		return nil, err
	}
	if z, err = tensor.AddBias(z, d.b); err != nil {
		return nil, err
	}

	h := d.cfg.HiddenSize
	gate := func(lo int, act func(*tensor.Tensor) (*tensor.Tensor, error)) *tensor.Tensor {
		if err != nil {
			return nil
		}
		var s *tensor.Tensor
		if s, err = tensor.SliceCols(z, lo, lo+h); err != nil {
			return nil
		}
		s, err = act(s)
		return s
	}
	in := gate(0, tensor.Sigmoid)
	fg := gate(h, tensor.Sigmoid)
	og := gate(2*h, tensor.Sigmoid)
	cg := gate(3*h, tensor.Tanh)
	if err != nil {
		return nil, err
	}

	keep, err := tensor.Mul(fg, st.c)
	if err != nil {
		return nil, err
	}
	write, err := tensor.Mul(in, cg)
	if err != nil {
		return nil, err
	}
	cNext, err := tensor.Add(keep, write)
	if err != nil {
		return nil, err
	}
	cAct, err := tensor.Tanh(cNext)
	if err != nil {
		return nil, err
	}
	hNext, err := tensor.Mul(og, cAct)
	if err != nil {
		return nil, err
	}

	// Additive attention over the node embeddings.
	hProj, err := tensor.MatMul(hNext, d.attnDec)
	if err != nil {
		return nil, err
	}
	mixed, err := tensor.AddBias(encProj, hProj)
	if err != nil {
		return nil, err
	}
	if mixed, err = tensor.Tanh(mixed); err != nil {
		return nil, err
	}
	scores, err := tensor.MatMul(mixed, d.attnV)
	if err != nil {
		return nil, err
	}
	if scores, err = tensor.Transpose(scores); err != nil {
		return nil, err
	}
	alpha, err := tensor.Softmax(scores)
	if err != nil {
		return nil, err
	}
	ctxRow, err := tensor.MatMul(alpha, enc)
	if err != nil {
		return nil, err
	}

	concat, err := tensor.ConcatCols(hNext, ctxRow)
	if err != nil {
		return nil, err
	}
	return &stepOut{concat: concat, alpha: alpha, next: &state{h: hNext, c: cNext}}, nil
}

// distribution turns one step's outputs into probabilities over the
// (possibly OOV-extended) vocabulary. Without the copy mechanism the
// result is the plain generate softmax over the base vocabulary.
func (d *TreeDecoder) distribution(so *stepOut, oovIDs []int, extSize int) (*tensor.Tensor, error) {
	logits, err := tensor.MatMul(so.concat, d.outW)
	if err != nil {
		return nil, err
	}
	if logits, err = tensor.AddBias(logits, d.outB); err != nil {
		return nil, err
	}
	pGen, err := tensor.Softmax(logits)
	if err != nil {
		return nil, err
	}
	if !d.cfg.UseCopy {
		return pGen, nil
	}

	gRaw, err := tensor.MatMul(so.concat, d.gateW)
	if err != nil {
		return nil, err
	}
	if gRaw, err = tensor.AddBias(gRaw, d.gateB); err != nil {
		return nil, err
	}
	g, err := tensor.Sigmoid(gRaw)
	if err != nil {
		return nil, err
	}

	padded, err := tensor.PadCols(pGen, extSize)
	if err != nil {
		return nil, err
	}
	genPart, err := tensor.MulScalar(padded, g)
	if err != nil {
		return nil, err
	}

	pCopy, err := tensor.ScatterAddCols(so.alpha, oovIDs, extSize)
	if err != nil {
		return nil, err
	}
	one, err := tensor.FromSlice(1, 1, []float64{1})
	if err != nil {
		return nil, err
	}
	inv, err := tensor.Sub(one, g)
	if err != nil {
		return nil, err
	}
	copyPart, err := tensor.MulScalar(pCopy, inv)
	if err != nil {
		return nil, err
	}
	return tensor.Add(genPart, copyPart)
}

// lossJob is one subtree awaiting teacher forcing, with its seed context.
type lossJob struct {
	node *tree.Node
	st   *state
}

// Loss teacher-forces the reference tree against the encoder embeddings
// and returns the summed negative log-likelihood as a 1×1 tensor. Every
// subtree is decoded with the sequence of its children's symbols plus the
// end-of-sequence terminator; an internal child contributes the
// non-terminal symbol and queues its own subtree seeded from the context
// right after that emission.
//
// Errors: ErrNilTree, ErrEncoderWidth, ErrBadOOVIDs.
func (d *TreeDecoder) Loss(enc *tensor.Tensor, root *tree.Node, oovIDs []int, extSize int) (*tensor.Tensor, error) {
	if root == nil {
		return nil, fmt.Errorf("Loss: %w", ErrNilTree)
	}
	if !d.cfg.UseCopy {
		extSize = d.cfg.VocabSize
	}
	if err := d.validateInputs(enc, oovIDs, extSize); err != nil {
		return nil, fmt.Errorf("Loss: %w", err)
	}
	encProj, err := tensor.MatMul(enc, d.attnEnc)
	if err != nil {
		return nil, fmt.Errorf("Loss: %w", err)
	}
	seed, err := d.zeroState()
	if err != nil {
		return nil, fmt.Errorf("Loss: %w", err)
	}

	var total *tensor.Tensor
	jobs := []lossJob{{node: root, st: seed}}
	for len(jobs) > 0 {
		job := jobs[len(jobs)-1]
		jobs = jobs[:len(jobs)-1]

		st := job.st
		input := vocab.SOSIndex
		targets := make([]int, 0, len(job.node.Children)+1)
		for _, c := range job.node.Children {
			targets = append(targets, c.Symbol)
		}
		targets = append(targets, vocab.EOSIndex)

		for i, target := range targets {
			so, err := d.step(enc, encProj, input, st)
			if err != nil {
				return nil, fmt.Errorf("Loss: %w", err)
			}
			dist, err := d.distribution(so, oovIDs, extSize)
			if err != nil {
				return nil, fmt.Errorf("Loss: %w", err)
			}
			logp, err := tensor.Log(dist, d.eps)
			if err != nil {
				return nil, fmt.Errorf("Loss: %w", err)
			}
			if target >= extSize {
				target = vocab.UnkIndex
			}
			nll, err := tensor.PickNLL(logp, []int{target})
			if err != nil {
				return nil, fmt.Errorf("Loss: %w", err)
			}
			if total == nil {
				total = nll
			} else if total, err = tensor.Add(total, nll); err != nil {
				return nil, fmt.Errorf("Loss: %w", err)
			}

			st = so.next
			if i < len(job.node.Children) {
				if c := job.node.Children[i]; !c.IsLeaf() {
					jobs = append(jobs, lossJob{node: c, st: st})
				}
				input = targets[i]
			}
		}
	}
	return total, nil
}
