// SPDX-License-Identifier: MIT

package trainer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/katalvlaran/lvlnn/model"
	"github.com/katalvlaran/lvlnn/tensor"
	"github.com/katalvlaran/lvlnn/tree"
	"github.com/katalvlaran/lvlnn/vocab"
)

// Sentinel errors.
var (
	// ErrNilModel indicates construction without a model or optimizer.
	ErrNilModel = errors.New("trainer: nil model or optimizer")
	// ErrBadEpochs indicates MaxEpochs < 1.
	ErrBadEpochs = errors.New("trainer: epoch count must be >= 1")
)

// Loop defaults.
const (
	DefaultWarmupEpochs     = 2
	DefaultEvalEveryNEpochs = 5
	DefaultBeamSize         = 2
)

// Config steers the epoch loop. Zero WarmupEpochs, EvalEveryNEpochs and
// BeamSize select the defaults; GradClip 0 disables clipping; an empty
// CheckpointPath disables best-model persistence.
type Config struct {
	MaxEpochs        int
	WarmupEpochs     int
	EvalEveryNEpochs int
	GradClip         float64
	BeamSize         int
	CheckpointPath   string
	PrefetchWorkers  int

	// Logger receives progress lines; default prints to stdout.
	Logger func(format string, args ...any)
}

// Trainer drives optimization of one model with one optimizer.
type Trainer struct {
	model *model.Graph2Tree
	opt   *Adam
	cfg   Config
}

// New validates the loop configuration.
//
// Errors: ErrNilModel, ErrBadEpochs.
func New(m *model.Graph2Tree, opt *Adam, cfg Config) (*Trainer, error) {
	if m == nil || opt == nil {
		return nil, fmt.Errorf("trainer.New: %w", ErrNilModel)
	}
	if cfg.MaxEpochs < 1 {
		return nil, fmt.Errorf("trainer.New: %w", ErrBadEpochs)
	}
	if cfg.WarmupEpochs == 0 {
		cfg.WarmupEpochs = DefaultWarmupEpochs
	}
	if cfg.EvalEveryNEpochs == 0 {
		cfg.EvalEveryNEpochs = DefaultEvalEveryNEpochs
	}
	if cfg.BeamSize == 0 {
		cfg.BeamSize = DefaultBeamSize
	}
	if cfg.Logger == nil {
		cfg.Logger = func(format string, args ...any) {
			fmt.Printf(format+"\n", args...)
		}
	}
	return &Trainer{model: m, opt: opt, cfg: cfg}, nil
}

// TrainEpoch consumes every batch of l once, in order, behind the
// prefetch pool, and returns the mean batch loss. Any forward, backward
// or loading failure aborts the epoch and surfaces to the caller.
func (t *Trainer) TrainEpoch(ctx context.Context, l Loader) (float64, error) {
	pf, err := NewPrefetcher(ctx, l, t.cfg.PrefetchWorkers)
	if err != nil {
		return 0, fmt.Errorf("TrainEpoch: %w", err)
	}

	total, n := 0.0, 0
	for {
		b, err := pf.Next()
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("TrainEpoch: %w", err)
		}

		t.opt.ZeroGrad()
		loss, err := t.model.Loss(b.Graphs, b.Trees)
		if err != nil {
			return 0, fmt.Errorf("TrainEpoch: %w", err)
		}
		val, err := loss.At(0, 0)
		if err != nil {
			return 0, fmt.Errorf("TrainEpoch: %w", err)
		}
		if err = tensor.Backward(loss); err != nil {
			return 0, fmt.Errorf("TrainEpoch: %w", err)
		}
		if t.cfg.GradClip > 0 {
			tensor.ClipGradValues(t.model.Params(), t.cfg.GradClip)
		}
		t.opt.Step()

		total += val
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return total / float64(n), nil
}

// Evaluate decodes every example of l one at a time and returns the share
// whose predicted tree is structurally equal to the reference. Decode or
// parse failures count as misses, never as errors: a model that produces
// garbage scores zero, it does not abort evaluation.
func (t *Trainer) Evaluate(l Loader) (float64, error) {
	if l == nil {
		return 0, fmt.Errorf("Evaluate: %w", ErrNilLoader)
	}
	correct, total := 0, 0
	for i := 0; i < l.Len(); i++ {
		b, err := l.Load(i)
		if err != nil {
			return 0, fmt.Errorf("Evaluate: %w", err)
		}
		for j := range b.Graphs {
			total++
			pred, _, err := t.model.Translate(b.Graphs[j], t.cfg.BeamSize)
			if err != nil {
				continue
			}
			ref := t.referenceTree(b, j)
			if ref != nil && tree.Equal(pred, ref) {
				correct++
			}
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(correct) / float64(total), nil
}

// referenceTree rebuilds the reference under the example's OOV-extended
// vocabulary when raw target text is available, so copied tokens compare
// by their extended index rather than collapsing to unknown. Without raw
// text it falls back to the pre-built tree.
func (t *Trainer) referenceTree(b *Batch, j int) *tree.Node {
	if j < len(b.RawTargets) && b.RawTargets[j] != "" {
		oov, _, err := vocab.BuildOOV(t.model.TargetVocab(), b.Graphs[j])
		if err != nil {
			return nil
		}
		ids := oov.IndicesOf(strings.Fields(b.RawTargets[j]), false)
		root, err := tree.Parse(tree.RepairBrackets(ids))
		if err != nil {
			return nil
		}
		return root
	}
	if j < len(b.Trees) {
		return b.Trees[j]
	}
	return nil
}

// Run executes the full loop: MaxEpochs training epochs over train, with
// evaluation on dev after the warm-up period every EvalEveryNEpochs
// epochs. The best accuracy seen is returned and, when a checkpoint path
// is configured, the matching parameters are persisted at that moment.
func (t *Trainer) Run(ctx context.Context, train, dev Loader) (float64, error) {
	if train == nil {
		return 0, fmt.Errorf("Run: %w", ErrNilLoader)
	}

	best := 0.0
	for epoch := 1; epoch <= t.cfg.MaxEpochs; epoch++ {
		avg, err := t.TrainEpoch(ctx, train)
		if err != nil {
			return best, fmt.Errorf("Run: epoch %d: %w", epoch, err)
		}
		t.cfg.Logger("epoch %d: train loss %.4f", epoch, avg)

		if dev == nil || epoch <= t.cfg.WarmupEpochs || epoch%t.cfg.EvalEveryNEpochs != 0 {
			continue
		}
		acc, err := t.Evaluate(dev)
		if err != nil {
			return best, fmt.Errorf("Run: epoch %d: %w", epoch, err)
		}
		t.cfg.Logger("epoch %d: dev accuracy %.4f", epoch, acc)
		if acc > best {
			best = acc
			if t.cfg.CheckpointPath != "" {
				if err = SaveCheckpoint(t.cfg.CheckpointPath, t.model.Params()); err != nil {
					return best, fmt.Errorf("Run: epoch %d: %w", epoch, err)
				}
			}
		}
	}
	return best, nil
}
