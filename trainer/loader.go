// SPDX-License-Identifier: MIT

package trainer

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/lvlnn/graph"
	"github.com/katalvlaran/lvlnn/tree"
)

// Sentinel errors.
var (
	// ErrNilLoader indicates a nil Loader was handed to the loop.
	ErrNilLoader = errors.New("trainer: nil loader")
	// ErrExhausted indicates Next was called past the last batch.
	ErrExhausted = errors.New("trainer: prefetcher exhausted")
)

// DefaultPrefetchWorkers bounds the batch-materialization pool.
const DefaultPrefetchWorkers = 4

// Batch is one training unit: the member graphs, their reference trees,
// and the raw flat target strings used to rebuild reference indices under
// each example's OOV-extended vocabulary.
type Batch struct {
	Graphs     []*graph.Graph
	Trees      []*tree.Node
	RawTargets []string
}

// Loader materializes batches by index. Load may be called concurrently
// from the prefetch pool; implementations must be safe for that.
type Loader interface {
	Len() int
	Load(i int) (*Batch, error)
}

// SliceLoader serves pre-built batches from memory.
type SliceLoader []*Batch

// Len returns the batch count.
func (s SliceLoader) Len() int { return len(s) }

// Load returns batch i.
//
// Errors: ErrExhausted when i is out of range.
func (s SliceLoader) Load(i int) (*Batch, error) {
	if i < 0 || i >= len(s) {
		return nil, fmt.Errorf("SliceLoader.Load(%d): %w", i, ErrExhausted)
	}
	return s[i], nil
}

// Prefetcher materializes batches ahead of the training loop on a small
// worker pool while preserving batch order: Next returns batch 0, 1, 2...
// regardless of which worker finished first. The training step stays
// strictly sequential; only loading overlaps.
type Prefetcher struct {
	slots []chan *Batch
	group *errgroup.Group
	next  int
}

// NewPrefetcher starts workers fetching every batch of l. Worker errors
// surface on the Next call for the failed index and again from Wait.
func NewPrefetcher(ctx context.Context, l Loader, workers int) (*Prefetcher, error) {
	if l == nil {
		return nil, fmt.Errorf("NewPrefetcher: %w", ErrNilLoader)
	}
	if workers < 1 {
		workers = DefaultPrefetchWorkers
	}

	p := &Prefetcher{slots: make([]chan *Batch, l.Len())}
	for i := range p.slots {
		p.slots[i] = make(chan *Batch, 1)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	p.group = g
	for i := 0; i < l.Len(); i++ {
		i := i
		g.Go(func() error {
			b, err := l.Load(i)
			if err != nil {
				close(p.slots[i])
				return fmt.Errorf("prefetch batch %d: %w", i, err)
			}
			select {
			case p.slots[i] <- b:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return p, nil
}

// Next returns the following batch in order. A closed slot means the
// worker for that index failed; the underlying error comes from Wait.
//
// Errors: ErrExhausted past the last batch.
func (p *Prefetcher) Next() (*Batch, error) {
	if p.next >= len(p.slots) {
		return nil, ErrExhausted
	}
	b, ok := <-p.slots[p.next]
	p.next++
	if !ok {
		if err := p.group.Wait(); err != nil {
			return nil, err
		}
		return nil, ErrExhausted
	}
	return b, nil
}

// Wait blocks until every worker finished and returns the first error.
func (p *Prefetcher) Wait() error { return p.group.Wait() }
