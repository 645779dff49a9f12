// SPDX-License-Identifier: MIT

// Differentiable kernels.
//
// Every kernel validates its operands fail-fast, allocates exactly one
// result tensor, computes the forward value with fixed loop orders, and —
// only when some operand requires gradients — records the operand list and
// a backward closure on the result. Backward closures accumulate (+=) into
// operand gradient buffers; they never overwrite.

package tensor

import "math"

// newResult allocates the result tensor and wires autodiff metadata when
// any operand participates in gradient flow.
func newResult(rows, cols int, prev ...*Tensor) *Tensor {
	out := &Tensor{r: rows, c: cols, data: make([]float64, rows*cols)}
	for _, p := range prev {
		if p.requiresGrad {
			out.requiresGrad = true
			out.prev = prev
			break
		}
	}
	return out
}

// MatMul computes C = A·B for A (n×k) and B (k×m).
//
// Backward: dA += dC·Bᵀ, dB += Aᵀ·dC.
// Errors: ErrNilTensor, ErrShapeMismatch (inner dimensions differ).
// Complexity: O(n*k*m).
func MatMul(a, b *Tensor) (*Tensor, error) {
	if err := validateNotNil(a, b); err != nil {
		return nil, tensorErrorf(opMatMul, err)
	}
	if a.c != b.r {
		return nil, tensorErrorf(opMatMul, ErrShapeMismatch)
	}
	n, k, m := a.r, a.c, b.c
	out := newResult(n, m, a, b)
	var i, j, p int
	for i = 0; i < n; i++ {
		for p = 0; p < k; p++ {
			av := a.data[i*k+p]
			if av == 0 {
				continue
			}
			for j = 0; j < m; j++ {
				out.data[i*m+j] += av * b.data[p*m+j]
			}
		}
	}
	if out.requiresGrad {
		out.back = func() {
			g := out.grad
			if a.requiresGrad {
				ga := a.gradBuf()
				for i := 0; i < n; i++ {
					for p := 0; p < k; p++ {
						sum := 0.0
						for j := 0; j < m; j++ {
							sum += g[i*m+j] * b.data[p*m+j]
						}
						ga[i*k+p] += sum
					}
				}
			}
			if b.requiresGrad {
				gb := b.gradBuf()
				for p := 0; p < k; p++ {
					for j := 0; j < m; j++ {
						sum := 0.0
						for i := 0; i < n; i++ {
							sum += a.data[i*k+p] * g[i*m+j]
						}
						gb[p*m+j] += sum
					}
				}
			}
		}
	}
	return out, nil
}

// Transpose returns Aᵀ.
//
// Backward: dA += dCᵀ.
// Complexity: O(r*c).
func Transpose(a *Tensor) (*Tensor, error) {
	if err := validateNotNil(a); err != nil {
		return nil, tensorErrorf(opTranspose, err)
	}
	out := newResult(a.c, a.r, a)
	var i, j int
	for i = 0; i < a.r; i++ {
		for j = 0; j < a.c; j++ {
			out.data[j*a.r+i] = a.data[i*a.c+j]
		}
	}
	if out.requiresGrad {
		out.back = func() {
			ga := a.gradBuf()
			for i := 0; i < a.r; i++ {
				for j := 0; j < a.c; j++ {
					ga[i*a.c+j] += out.grad[j*a.r+i]
				}
			}
		}
	}
	return out, nil
}

// Add computes the elementwise sum C = A + B (same shape).
// Complexity: O(r*c).
func Add(a, b *Tensor) (*Tensor, error) {
	return addSub(a, b, 1, opAdd)
}

// Sub computes the elementwise difference C = A - B (same shape).
// Complexity: O(r*c).
func Sub(a, b *Tensor) (*Tensor, error) {
	return addSub(a, b, -1, opSub)
}

// addSub computes out = a + sign*b for sign ∈ {+1, -1}.
// Internal helper sharing validation and the backward wiring.
func addSub(a, b *Tensor, sign float64, tag string) (*Tensor, error) {
	if err := validateNotNil(a, b); err != nil {
		return nil, tensorErrorf(tag, err)
	}
	if err := validateSameShape(a, b); err != nil {
		return nil, tensorErrorf(tag, err)
	}
	out := newResult(a.r, a.c, a, b)
	for idx := range out.data { // deterministic 0..n-1
		out.data[idx] = a.data[idx] + sign*b.data[idx]
	}
	if out.requiresGrad {
		out.back = func() {
			if a.requiresGrad {
				ga := a.gradBuf()
				for idx, g := range out.grad {
					ga[idx] += g
				}
			}
			if b.requiresGrad {
				gb := b.gradBuf()
				for idx, g := range out.grad {
					gb[idx] += sign * g
				}
			}
		}
	}
	return out, nil
}

// Mul computes the Hadamard product C = A ⊙ B (same shape).
// Complexity: O(r*c).
func Mul(a, b *Tensor) (*Tensor, error) {
	if err := validateNotNil(a, b); err != nil {
		return nil, tensorErrorf(opMul, err)
	}
	if err := validateSameShape(a, b); err != nil {
		return nil, tensorErrorf(opMul, err)
	}
	out := newResult(a.r, a.c, a, b)
	for idx := range out.data {
		out.data[idx] = a.data[idx] * b.data[idx]
	}
	if out.requiresGrad {
		out.back = func() {
			if a.requiresGrad {
				ga := a.gradBuf()
				for idx, g := range out.grad {
					ga[idx] += g * b.data[idx]
				}
			}
			if b.requiresGrad {
				gb := b.gradBuf()
				for idx, g := range out.grad {
					gb[idx] += g * a.data[idx]
				}
			}
		}
	}
	return out, nil
}

// Scale computes C = s·A for a constant scalar s.
// Complexity: O(r*c).
func Scale(a *Tensor, s float64) (*Tensor, error) {
	if err := validateNotNil(a); err != nil {
		return nil, tensorErrorf(opScale, err)
	}
	out := newResult(a.r, a.c, a)
	for idx := range out.data {
		out.data[idx] = s * a.data[idx]
	}
	if out.requiresGrad {
		out.back = func() {
			ga := a.gradBuf()
			for idx, g := range out.grad {
				ga[idx] += s * g
			}
		}
	}
	return out, nil
}

// MulScalar computes C = s·A where s is a learned 1×1 tensor (e.g. the copy
// gate). Gradients flow into both operands.
//
// Errors: ErrShapeMismatch when s is not 1×1.
// Complexity: O(r*c).
func MulScalar(a, s *Tensor) (*Tensor, error) {
	if err := validateNotNil(a, s); err != nil {
		return nil, tensorErrorf(opMulScalar, err)
	}
	if s.r != 1 || s.c != 1 {
		return nil, tensorErrorf(opMulScalar, ErrShapeMismatch)
	}
	sv := s.data[0]
	out := newResult(a.r, a.c, a, s)
	for idx := range out.data {
		out.data[idx] = sv * a.data[idx]
	}
	if out.requiresGrad {
		out.back = func() {
			if a.requiresGrad {
				ga := a.gradBuf()
				for idx, g := range out.grad {
					ga[idx] += sv * g
				}
			}
			if s.requiresGrad {
				gs := s.gradBuf()
				sum := 0.0
				for idx, g := range out.grad {
					sum += g * a.data[idx]
				}
				gs[0] += sum
			}
		}
	}
	return out, nil
}

// AddBias computes C[i,j] = A[i,j] + b[0,j], broadcasting a 1×cols row over
// every row of A.
//
// Errors: ErrShapeMismatch when b is not 1×A.Cols().
// Complexity: O(r*c).
func AddBias(a, b *Tensor) (*Tensor, error) {
	if err := validateNotNil(a, b); err != nil {
		return nil, tensorErrorf(opAddBias, err)
	}
	if b.r != 1 || b.c != a.c {
		return nil, tensorErrorf(opAddBias, ErrShapeMismatch)
	}
	out := newResult(a.r, a.c, a, b)
	var i, j int
	for i = 0; i < a.r; i++ {
		for j = 0; j < a.c; j++ {
			out.data[i*a.c+j] = a.data[i*a.c+j] + b.data[j]
		}
	}
	if out.requiresGrad {
		out.back = func() {
			if a.requiresGrad {
				ga := a.gradBuf()
				for idx, g := range out.grad {
					ga[idx] += g
				}
			}
			if b.requiresGrad {
				gb := b.gradBuf()
				for i := 0; i < a.r; i++ {
					for j := 0; j < a.c; j++ {
						gb[j] += out.grad[i*a.c+j]
					}
				}
			}
		}
	}
	return out, nil
}

// ConcatCols concatenates tensors with equal row counts along the feature
// dimension: C = [T0 | T1 | ...].
//
// Errors: ErrNilTensor on an empty or nil operand list, ErrShapeMismatch on
// differing row counts.
// Complexity: O(total elements).
func ConcatCols(ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, tensorErrorf(opConcatCols, ErrNilTensor)
	}
	if err := validateNotNil(ts...); err != nil {
		return nil, tensorErrorf(opConcatCols, err)
	}
	rows := ts[0].r
	cols := 0
	for _, t := range ts {
		if t.r != rows {
			return nil, tensorErrorf(opConcatCols, ErrShapeMismatch)
		}
		cols += t.c
	}
	out := newResult(rows, cols, ts...)
	off := 0
	for _, t := range ts {
		for i := 0; i < rows; i++ {
			copy(out.data[i*cols+off:i*cols+off+t.c], t.data[i*t.c:(i+1)*t.c])
		}
		off += t.c
	}
	if out.requiresGrad {
		out.back = func() {
			off := 0
			for _, t := range ts {
				if t.requiresGrad {
					gt := t.gradBuf()
					for i := 0; i < rows; i++ {
						for j := 0; j < t.c; j++ {
							gt[i*t.c+j] += out.grad[i*cols+off+j]
						}
					}
				}
				off += t.c
			}
		}
	}
	return out, nil
}

// SliceCols extracts columns [lo, hi) as a copy: C = A[:, lo:hi].
//
// Errors: ErrOutOfRange on an invalid column window.
// Complexity: O(r*(hi-lo)).
func SliceCols(a *Tensor, lo, hi int) (*Tensor, error) {
	if err := validateNotNil(a); err != nil {
		return nil, tensorErrorf(opSliceCols, err)
	}
	if lo < 0 || hi > a.c || lo >= hi {
		return nil, tensorErrorf(opSliceCols, ErrOutOfRange)
	}
	w := hi - lo
	out := newResult(a.r, w, a)
	for i := 0; i < a.r; i++ {
		copy(out.data[i*w:(i+1)*w], a.data[i*a.c+lo:i*a.c+hi])
	}
	if out.requiresGrad {
		out.back = func() {
			ga := a.gradBuf()
			for i := 0; i < a.r; i++ {
				for j := 0; j < w; j++ {
					ga[i*a.c+lo+j] += out.grad[i*w+j]
				}
			}
		}
	}
	return out, nil
}

// PadCols right-pads A with zero columns up to newCols. Used to lift a
// base-vocabulary distribution onto an OOV-extended axis.
//
// Errors: ErrShapeMismatch when newCols < A.Cols().
// Complexity: O(r*newCols).
func PadCols(a *Tensor, newCols int) (*Tensor, error) {
	if err := validateNotNil(a); err != nil {
		return nil, tensorErrorf(opPadCols, err)
	}
	if newCols < a.c {
		return nil, tensorErrorf(opPadCols, ErrShapeMismatch)
	}
	out := newResult(a.r, newCols, a)
	for i := 0; i < a.r; i++ {
		copy(out.data[i*newCols:i*newCols+a.c], a.data[i*a.c:(i+1)*a.c])
	}
	if out.requiresGrad {
		out.back = func() {
			ga := a.gradBuf()
			for i := 0; i < a.r; i++ {
				for j := 0; j < a.c; j++ {
					ga[i*a.c+j] += out.grad[i*newCols+j]
				}
			}
		}
	}
	return out, nil
}

// Sigmoid applies 1/(1+e^{-x}) elementwise.
// Backward: dx += dy·y·(1-y).
// Complexity: O(r*c).
func Sigmoid(a *Tensor) (*Tensor, error) {
	if err := validateNotNil(a); err != nil {
		return nil, tensorErrorf(opSigmoid, err)
	}
	out := newResult(a.r, a.c, a)
	for idx := range out.data {
		out.data[idx] = 1 / (1 + math.Exp(-a.data[idx]))
	}
	if out.requiresGrad {
		out.back = func() {
			ga := a.gradBuf()
			for idx, g := range out.grad {
				y := out.data[idx]
				ga[idx] += g * y * (1 - y)
			}
		}
	}
	return out, nil
}

// Tanh applies the hyperbolic tangent elementwise.
// Backward: dx += dy·(1-y²).
// Complexity: O(r*c).
func Tanh(a *Tensor) (*Tensor, error) {
	if err := validateNotNil(a); err != nil {
		return nil, tensorErrorf(opTanh, err)
	}
	out := newResult(a.r, a.c, a)
	for idx := range out.data {
		out.data[idx] = math.Tanh(a.data[idx])
	}
	if out.requiresGrad {
		out.back = func() {
			ga := a.gradBuf()
			for idx, g := range out.grad {
				y := out.data[idx]
				ga[idx] += g * (1 - y*y)
			}
		}
	}
	return out, nil
}

// ReLU applies max(0, x) elementwise.
// Complexity: O(r*c).
func ReLU(a *Tensor) (*Tensor, error) {
	if err := validateNotNil(a); err != nil {
		return nil, tensorErrorf(opReLU, err)
	}
	out := newResult(a.r, a.c, a)
	for idx, v := range a.data {
		if v > 0 {
			out.data[idx] = v
		}
	}
	if out.requiresGrad {
		out.back = func() {
			ga := a.gradBuf()
			for idx, g := range out.grad {
				if a.data[idx] > 0 {
					ga[idx] += g
				}
			}
		}
	}
	return out, nil
}

// Log applies ln(x+eps) elementwise. The eps floor keeps mixture
// probabilities that underflow to zero finite.
// Complexity: O(r*c).
func Log(a *Tensor, eps float64) (*Tensor, error) {
	if err := validateNotNil(a); err != nil {
		return nil, tensorErrorf(opLog, err)
	}
	out := newResult(a.r, a.c, a)
	for idx := range out.data {
		out.data[idx] = math.Log(a.data[idx] + eps)
	}
	if out.requiresGrad {
		out.back = func() {
			ga := a.gradBuf()
			for idx, g := range out.grad {
				ga[idx] += g / (a.data[idx] + eps)
			}
		}
	}
	return out, nil
}

// Softmax applies a numerically-stable row-wise softmax.
// Backward: dx_i += y_i·(dy_i - Σ_j dy_j·y_j) per row.
// Complexity: O(r*c).
func Softmax(a *Tensor) (*Tensor, error) {
	if err := validateNotNil(a); err != nil {
		return nil, tensorErrorf(opSoftmax, err)
	}
	out := newResult(a.r, a.c, a)
	softmaxRows(a.data, out.data, a.r, a.c)
	if out.requiresGrad {
		out.back = func() {
			ga := a.gradBuf()
			for i := 0; i < a.r; i++ {
				row := i * a.c
				dot := 0.0
				for j := 0; j < a.c; j++ {
					dot += out.grad[row+j] * out.data[row+j]
				}
				for j := 0; j < a.c; j++ {
					ga[row+j] += out.data[row+j] * (out.grad[row+j] - dot)
				}
			}
		}
	}
	return out, nil
}

// LogSoftmax applies a numerically-stable row-wise log-softmax.
// Backward: dx += dy - softmax(x)·Σ_j dy_j per row.
// Complexity: O(r*c).
func LogSoftmax(a *Tensor) (*Tensor, error) {
	if err := validateNotNil(a); err != nil {
		return nil, tensorErrorf(opLogSoftmax, err)
	}
	out := newResult(a.r, a.c, a)
	var i, j int
	for i = 0; i < a.r; i++ {
		row := i * a.c
		maxV := a.data[row]
		for j = 1; j < a.c; j++ {
			if a.data[row+j] > maxV {
				maxV = a.data[row+j]
			}
		}
		sum := 0.0
		for j = 0; j < a.c; j++ {
			sum += math.Exp(a.data[row+j] - maxV)
		}
		lse := maxV + math.Log(sum)
		for j = 0; j < a.c; j++ {
			out.data[row+j] = a.data[row+j] - lse
		}
	}
	if out.requiresGrad {
		out.back = func() {
			ga := a.gradBuf()
			for i := 0; i < a.r; i++ {
				row := i * a.c
				gsum := 0.0
				for j := 0; j < a.c; j++ {
					gsum += out.grad[row+j]
				}
				for j := 0; j < a.c; j++ {
					ga[row+j] += out.grad[row+j] - math.Exp(out.data[row+j])*gsum
				}
			}
		}
	}
	return out, nil
}

// softmaxRows fills dst with the row-wise softmax of src (shared kernel).
func softmaxRows(src, dst []float64, rows, cols int) {
	var i, j int
	for i = 0; i < rows; i++ {
		row := i * cols
		maxV := src[row]
		for j = 1; j < cols; j++ {
			if src[row+j] > maxV {
				maxV = src[row+j]
			}
		}
		sum := 0.0
		for j = 0; j < cols; j++ {
			dst[row+j] = math.Exp(src[row+j] - maxV)
			sum += dst[row+j]
		}
		for j = 0; j < cols; j++ {
			dst[row+j] /= sum
		}
	}
}

// GatherRows selects rows of A by index: C[r] = A[idx[r]]. This is the
// embedding-lookup kernel.
//
// Errors: ErrBadIndex on an empty index vector or an out-of-range entry.
// Complexity: O(len(idx)*c).
func GatherRows(a *Tensor, idx []int) (*Tensor, error) {
	if err := validateNotNil(a); err != nil {
		return nil, tensorErrorf(opGatherRows, err)
	}
	if len(idx) == 0 {
		return nil, tensorErrorf(opGatherRows, ErrBadIndex)
	}
	for _, r := range idx {
		if r < 0 || r >= a.r {
			return nil, tensorErrorf(opGatherRows, ErrBadIndex)
		}
	}
	out := newResult(len(idx), a.c, a)
	for r, src := range idx {
		copy(out.data[r*a.c:(r+1)*a.c], a.data[src*a.c:(src+1)*a.c])
	}
	if out.requiresGrad {
		out.back = func() {
			ga := a.gradBuf()
			for r, src := range idx {
				for j := 0; j < a.c; j++ {
					ga[src*a.c+j] += out.grad[r*a.c+j]
				}
			}
		}
	}
	return out, nil
}

// ScatterAddRows accumulates the rows of src into nOut destination rows:
// C[dst[e]] += coef[e]·src[e]. With src holding one message per edge, dst
// the edge destinations and coef the per-edge scalar weights, this is the
// message-aggregation kernel of graph convolution. A nil coef means unit
// weights.
//
// Errors: ErrInvalidDimensions (nOut <= 0), ErrBadIndex (len(dst) !=
// src.Rows(), an out-of-range destination, or len(coef) != src.Rows()).
// Complexity: O(src.Rows()*c).
func ScatterAddRows(src *Tensor, dst []int, nOut int, coef []float64) (*Tensor, error) {
	if err := validateNotNil(src); err != nil {
		return nil, tensorErrorf(opScatterRows, err)
	}
	if nOut <= 0 {
		return nil, tensorErrorf(opScatterRows, ErrInvalidDimensions)
	}
	if len(dst) != src.r {
		return nil, tensorErrorf(opScatterRows, ErrBadIndex)
	}
	if coef != nil && len(coef) != src.r {
		return nil, tensorErrorf(opScatterRows, ErrBadIndex)
	}
	for _, d := range dst {
		if d < 0 || d >= nOut {
			return nil, tensorErrorf(opScatterRows, ErrBadIndex)
		}
	}
	out := newResult(nOut, src.c, src)
	for e := 0; e < src.r; e++ {
		w := 1.0
		if coef != nil {
			w = coef[e]
		}
		d := dst[e] * src.c
		row := e * src.c
		for j := 0; j < src.c; j++ {
			out.data[d+j] += w * src.data[row+j]
		}
	}
	if out.requiresGrad {
		out.back = func() {
			gs := src.gradBuf()
			for e := 0; e < src.r; e++ {
				w := 1.0
				if coef != nil {
					w = coef[e]
				}
				d := dst[e] * src.c
				row := e * src.c
				for j := 0; j < src.c; j++ {
					gs[row+j] += w * out.grad[d+j]
				}
			}
		}
	}
	return out, nil
}

// ScatterAddCols spreads a 1×n row vector into a wider 1×nCols row:
// C[0, cols[i]] += src[0, i]. This lifts per-node copy scores onto the
// OOV-extended vocabulary axis.
//
// Errors: ErrShapeMismatch (src not a row vector), ErrInvalidDimensions,
// ErrBadIndex.
// Complexity: O(n).
func ScatterAddCols(src *Tensor, cols []int, nCols int) (*Tensor, error) {
	if err := validateNotNil(src); err != nil {
		return nil, tensorErrorf(opScatterCols, err)
	}
	if src.r != 1 {
		return nil, tensorErrorf(opScatterCols, ErrShapeMismatch)
	}
	if nCols <= 0 {
		return nil, tensorErrorf(opScatterCols, ErrInvalidDimensions)
	}
	if len(cols) != src.c {
		return nil, tensorErrorf(opScatterCols, ErrBadIndex)
	}
	for _, cIdx := range cols {
		if cIdx < 0 || cIdx >= nCols {
			return nil, tensorErrorf(opScatterCols, ErrBadIndex)
		}
	}
	out := newResult(1, nCols, src)
	for i, cIdx := range cols {
		out.data[cIdx] += src.data[i]
	}
	if out.requiresGrad {
		out.back = func() {
			gs := src.gradBuf()
			for i, cIdx := range cols {
				gs[i] += out.grad[cIdx]
			}
		}
	}
	return out, nil
}

// ScaleRows multiplies every row by a per-row constant: C[i] = s[i]·A[i].
// This is the degree-normalization kernel.
//
// Errors: ErrBadIndex when len(s) != A.Rows().
// Complexity: O(r*c).
func ScaleRows(a *Tensor, s []float64) (*Tensor, error) {
	if err := validateNotNil(a); err != nil {
		return nil, tensorErrorf(opScaleRows, err)
	}
	if len(s) != a.r {
		return nil, tensorErrorf(opScaleRows, ErrBadIndex)
	}
	out := newResult(a.r, a.c, a)
	var i, j int
	for i = 0; i < a.r; i++ {
		for j = 0; j < a.c; j++ {
			out.data[i*a.c+j] = s[i] * a.data[i*a.c+j]
		}
	}
	if out.requiresGrad {
		out.back = func() {
			ga := a.gradBuf()
			for i := 0; i < a.r; i++ {
				for j := 0; j < a.c; j++ {
					ga[i*a.c+j] += s[i] * out.grad[i*a.c+j]
				}
			}
		}
	}
	return out, nil
}

// PickNLL computes the summed negative log-likelihood of targets under
// row-wise log-probabilities: L = -Σ_i logp[i, targets[i]], as a 1×1
// tensor. Summation (not averaging) matches the training objective.
//
// Errors: ErrBadIndex on length mismatch or an out-of-range target.
// Complexity: O(r).
func PickNLL(logp *Tensor, targets []int) (*Tensor, error) {
	if err := validateNotNil(logp); err != nil {
		return nil, tensorErrorf(opPickNLL, err)
	}
	if len(targets) != logp.r {
		return nil, tensorErrorf(opPickNLL, ErrBadIndex)
	}
	for _, t := range targets {
		if t < 0 || t >= logp.c {
			return nil, tensorErrorf(opPickNLL, ErrBadIndex)
		}
	}
	out := newResult(1, 1, logp)
	sum := 0.0
	for i, t := range targets {
		sum -= logp.data[i*logp.c+t]
	}
	out.data[0] = sum
	if out.requiresGrad {
		out.back = func() {
			gl := logp.gradBuf()
			for i, t := range targets {
				gl[i*logp.c+t] -= out.grad[0]
			}
		}
	}
	return out, nil
}
