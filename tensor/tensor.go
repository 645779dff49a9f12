// SPDX-License-Identifier: MIT

// Tensor storage (row-major) & safe accessors.
//
// The backing buffer layout is identical for every (rows, cols): a flat
// []float64 of length rows*cols with offset = i*cols + j. Gradient buffers
// share the layout and are allocated lazily on first accumulation.

package tensor

import (
	"fmt"
	"strings"
)

// Formatting literals for String().
const (
	fmtRowOpen  = "["
	fmtRowClose = "]\n"
	fmtSep      = ", "
)

// Tensor is a dense row-major matrix of float64 values that optionally
// participates in reverse-mode automatic differentiation.
//
// A Tensor produced by a kernel holds references to its operands (prev) and
// a backward closure (back) when at least one operand requires gradients.
// Leaf parameters are created with NewParam and carry a stable name used by
// the optimizer and checkpoint layer.
type Tensor struct {
	r, c int       // row and column counts (>0)
	data []float64 // contiguous row-major storage (len == r*c)
	grad []float64 // gradient buffer, lazily allocated, same layout as data

	requiresGrad bool      // leaf flag or inherited from operands
	prev         []*Tensor // operands, in kernel argument order
	back         func()    // gradient accumulation closure (nil for leaves)
	name         string    // parameter name; empty for intermediates
}

var _ fmt.Stringer = (*Tensor)(nil)

// New creates a rows×cols zero tensor.
//
// Errors: ErrInvalidDimensions when rows <= 0 or cols <= 0.
// Complexity: O(r*c).
func New(rows, cols int) (*Tensor, error) {
	if rows <= 0 || cols <= 0 {
		return nil, tensorErrorf(opNew, ErrInvalidDimensions)
	}
	return &Tensor{r: rows, c: cols, data: make([]float64, rows*cols)}, nil
}

// FromSlice creates a rows×cols tensor copying data (row-major order).
//
// Errors: ErrInvalidDimensions on a bad shape, ErrShapeMismatch when
// len(data) != rows*cols.
// Complexity: O(r*c).
func FromSlice(rows, cols int, data []float64) (*Tensor, error) {
	if rows <= 0 || cols <= 0 {
		return nil, tensorErrorf(opFromSlice, ErrInvalidDimensions)
	}
	if len(data) != rows*cols {
		return nil, tensorErrorf(opFromSlice, ErrShapeMismatch)
	}
	buf := make([]float64, len(data))
	copy(buf, data)
	return &Tensor{r: rows, c: cols, data: buf}, nil
}

// NewParam creates a rows×cols zero leaf parameter that requires gradients
// and is registered under name for optimization and checkpointing.
//
// Errors: ErrInvalidDimensions on a bad shape.
// Complexity: O(r*c).
func NewParam(rows, cols int, name string) (*Tensor, error) {
	t, err := New(rows, cols)
	if err != nil {
		return nil, tensorErrorf(opNewParam, ErrInvalidDimensions)
	}
	t.requiresGrad = true
	t.name = name
	return t, nil
}

// Rows returns the number of rows. Complexity: O(1).
func (t *Tensor) Rows() int { return t.r }

// Cols returns the number of columns. Complexity: O(1).
func (t *Tensor) Cols() int { return t.c }

// Name returns the parameter name ("" for intermediates).
func (t *Tensor) Name() string { return t.name }

// RequiresGrad reports whether gradients flow into this tensor.
func (t *Tensor) RequiresGrad() bool { return t.requiresGrad }

// At retrieves the element at (i, j).
//
// Errors: ErrOutOfRange on invalid indices.
// Complexity: O(1).
func (t *Tensor) At(i, j int) (float64, error) {
	if i < 0 || i >= t.r || j < 0 || j >= t.c {
		return 0, fmt.Errorf("Tensor.%s(%d,%d): %w", opAt, i, j, ErrOutOfRange)
	}
	return t.data[i*t.c+j], nil
}

// Set assigns v at (i, j).
//
// Errors: ErrOutOfRange on invalid indices.
// Complexity: O(1).
func (t *Tensor) Set(i, j int, v float64) error {
	if i < 0 || i >= t.r || j < 0 || j >= t.c {
		return fmt.Errorf("Tensor.%s(%d,%d): %w", opSet, i, j, ErrOutOfRange)
	}
	t.data[i*t.c+j] = v
	return nil
}

// Data exposes the backing row-major buffer. Mutations are visible to the
// tensor; the optimizer and checkpoint layer rely on this.
func (t *Tensor) Data() []float64 { return t.data }

// Grad exposes the gradient buffer, or nil when nothing has been
// accumulated since the last ZeroGrad.
func (t *Tensor) Grad() []float64 { return t.grad }

// ZeroGrad clears the accumulated gradient buffer (keeps the allocation).
// Complexity: O(r*c).
func (t *Tensor) ZeroGrad() {
	for i := range t.grad {
		t.grad[i] = 0
	}
}

// Clone returns a deep copy of the values. The clone is a detached leaf:
// it does not require gradients and records no history.
// Complexity: O(r*c).
func (t *Tensor) Clone() *Tensor {
	buf := make([]float64, len(t.data))
	copy(buf, t.data)
	return &Tensor{r: t.r, c: t.c, data: buf}
}

// String renders the tensor row by row, mainly for debugging and tests.
func (t *Tensor) String() string {
	var sb strings.Builder
	var i, j int
	for i = 0; i < t.r; i++ {
		sb.WriteString(fmtRowOpen)
		for j = 0; j < t.c; j++ {
			if j > 0 {
				sb.WriteString(fmtSep)
			}
			fmt.Fprintf(&sb, "%g", t.data[i*t.c+j])
		}
		sb.WriteString(fmtRowClose)
	}
	return sb.String()
}

// gradBuf returns the gradient buffer, allocating it on first use.
func (t *Tensor) gradBuf() []float64 {
	if t.grad == nil {
		t.grad = make([]float64, len(t.data))
	}
	return t.grad
}

// ---------- central validators (plain sentinels; call sites wrap) ----------

// validateNotNil ensures every operand is non-nil.
func validateNotNil(ts ...*Tensor) error {
	for _, t := range ts {
		if t == nil {
			return ErrNilTensor
		}
	}
	return nil
}

// validateSameShape ensures a and b have identical dimensions.
// Assumes non-nil operands (caller must ensure).
func validateSameShape(a, b *Tensor) error {
	if a.r != b.r || a.c != b.c {
		return ErrShapeMismatch
	}
	return nil
}
