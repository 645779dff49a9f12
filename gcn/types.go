// SPDX-License-Identifier: MIT

package gcn

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/lvlnn/tensor"
)

// Sentinel errors for layer construction and forward passes.
var (
	// ErrUnknownDirection indicates an unrecognized direction selector.
	ErrUnknownDirection = errors.New("gcn: unknown direction option")

	// ErrUnknownNorm indicates an unrecognized normalization selector.
	ErrUnknownNorm = errors.New("gcn: unknown norm option")

	// ErrWeightConflict indicates an external weight was supplied while the
	// layer registered its own learned weight. Create the layer with
	// WithoutWeight to drive it externally.
	ErrWeightConflict = errors.New("gcn: external weight conflicts with registered weight")

	// ErrZeroInDegree indicates a zero-in-degree node reached the layer
	// without the AllowZeroInDegree opt-in. Such nodes receive no messages
	// and their output would silently degrade.
	ErrZeroInDegree = errors.New("gcn: zero in-degree node (set AllowZeroInDegree to override)")

	// ErrUnexpectedReverseWeight indicates reverse-direction edge weights
	// passed to an undirected layer, which has no backward branch.
	ErrUnexpectedReverseWeight = errors.New("gcn: reverse edge weights on undirected layer")

	// ErrBadLayerCount indicates an encoder with fewer than one layer.
	ErrBadLayerCount = errors.New("gcn: layer count must be >= 1")

	// ErrBadHiddenSizes indicates a hidden-size schedule whose length is
	// neither 1 (broadcast) nor numLayers-1.
	ErrBadHiddenSizes = errors.New("gcn: hidden sizes must broadcast or match layer count")

	// ErrNilFeatures indicates a forward pass without input features.
	ErrNilFeatures = errors.New("gcn: nil input features")
)

// Direction selects the message-passing directionality policy of a layer;
// fixed for the layer's lifetime.
type Direction int

const (
	// Undirected aggregates over the graph as given.
	Undirected Direction = iota
	// BiFuse blends forward and backward branches through a learned gate.
	BiFuse
	// BiSep keeps forward and backward branches as an unblended pair.
	BiSep
)

// Direction selector strings, as they appear in configuration.
const (
	dirUndirectedStr = "undirected"
	dirBiFuseStr     = "bi_fuse"
	dirBiSepStr      = "bi_sep"
)

// ParseDirection maps a selector string to a Direction.
//
// Errors: ErrUnknownDirection (fatal configuration error).
func ParseDirection(s string) (Direction, error) {
	switch s {
	case dirUndirectedStr:
		return Undirected, nil
	case dirBiFuseStr:
		return BiFuse, nil
	case dirBiSepStr:
		return BiSep, nil
	default:
		return 0, fmt.Errorf("ParseDirection(%q): %w", s, ErrUnknownDirection)
	}
}

// String returns the configuration selector of d.
func (d Direction) String() string {
	switch d {
	case Undirected:
		return dirUndirectedStr
	case BiFuse:
		return dirBiFuseStr
	case BiSep:
		return dirBiSepStr
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// valid reports whether d is a declared variant.
func (d Direction) valid() bool { return d >= Undirected && d <= BiSep }

// Norm selects how aggregated messages are degree-normalized.
type Norm int

const (
	// NormNone applies no scaling.
	NormNone Norm = iota
	// NormRight divides aggregated messages by destination in-degree.
	NormRight
	// NormBoth applies the symmetric out^-0.5 / in^-0.5 scaling.
	NormBoth
)

// Norm selector strings, as they appear in configuration.
const (
	normNoneStr  = "none"
	normRightStr = "right"
	normBothStr  = "both"
)

// ParseNorm maps a selector string to a Norm.
//
// Errors: ErrUnknownNorm (fatal configuration error).
func ParseNorm(s string) (Norm, error) {
	switch s {
	case normNoneStr:
		return NormNone, nil
	case normRightStr:
		return NormRight, nil
	case normBothStr:
		return NormBoth, nil
	default:
		return 0, fmt.Errorf("ParseNorm(%q): %w", s, ErrUnknownNorm)
	}
}

// String returns the configuration selector of n.
func (n Norm) String() string {
	switch n {
	case NormNone:
		return normNoneStr
	case NormRight:
		return normRightStr
	case NormBoth:
		return normBothStr
	default:
		return fmt.Sprintf("norm(%d)", int(n))
	}
}

// valid reports whether n is a declared variant.
func (n Norm) valid() bool { return n >= NormNone && n <= NormBoth }

// Activation is an optional nonlinearity applied to updated node features
// (tensor.ReLU and tensor.Tanh satisfy it).
type Activation func(*tensor.Tensor) (*tensor.Tensor, error)

// Features carries per-node features through the stack. Bw is nil for
// single-stream modes; BiSep layers produce and consume the pair.
type Features struct {
	Fw *tensor.Tensor
	Bw *tensor.Tensor
}

// EdgeWeights carries optional per-edge scalar multipliers in edge order.
// Forward feeds the forward branch, Reverse the backward branch — the two
// must never be conflated.
type EdgeWeights struct {
	Forward []float64
	Reverse []float64
}
