// SPDX-License-Identifier: MIT

package tensor

import (
	"errors"
	"fmt"
)

// Sentinel errors for tensor construction and kernel validation.
var (
	// ErrNilTensor indicates a nil operand was passed to a kernel.
	ErrNilTensor = errors.New("tensor: nil tensor")

	// ErrInvalidDimensions indicates a non-positive row or column count.
	ErrInvalidDimensions = errors.New("tensor: invalid dimensions")

	// ErrShapeMismatch indicates operands whose shapes do not conform.
	ErrShapeMismatch = errors.New("tensor: shape mismatch")

	// ErrOutOfRange indicates an element index outside the tensor bounds.
	ErrOutOfRange = errors.New("tensor: index out of range")

	// ErrBadIndex indicates an index vector referencing invalid rows/columns.
	ErrBadIndex = errors.New("tensor: bad index vector")

	// ErrNotScalar indicates Backward was invoked on a non-1×1 tensor.
	ErrNotScalar = errors.New("tensor: backward root must be a 1x1 scalar")
)

// Operation tags for uniform error wrapping (no magic strings at call sites).
const (
	opMatMul        = "MatMul"
	opTranspose     = "Transpose"
	opAdd           = "Add"
	opSub           = "Sub"
	opMul           = "Mul"
	opScale         = "Scale"
	opMulScalar     = "MulScalar"
	opAddBias       = "AddBias"
	opConcatCols    = "ConcatCols"
	opSliceCols     = "SliceCols"
	opPadCols       = "PadCols"
	opSigmoid       = "Sigmoid"
	opTanh          = "Tanh"
	opReLU          = "ReLU"
	opLog           = "Log"
	opSoftmax       = "Softmax"
	opLogSoftmax    = "LogSoftmax"
	opGatherRows    = "GatherRows"
	opScatterRows   = "ScatterAddRows"
	opScatterCols   = "ScatterAddCols"
	opScaleRows     = "ScaleRows"
	opPickNLL       = "PickNLL"
	opBackward      = "Backward"
	opAt            = "At"
	opSet           = "Set"
	opNew           = "New"
	opFromSlice     = "FromSlice"
	opNewParam      = "NewParam"
	opXavierUniform = "XavierUniform"
)

// tensorErrorf wraps err with an operation tag, preserving the sentinel via %w.
// Call only with err != nil.
func tensorErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
