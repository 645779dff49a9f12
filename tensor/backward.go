// SPDX-License-Identifier: MIT

// Reverse-mode sweep.
//
// Backward runs a deterministic depth-first topological sort over the
// recorded operand graph and invokes backward closures in reverse order.
// Gradients accumulate; ZeroGrad between steps is the caller's duty (the
// trainer does it before every forward pass).

package tensor

// Backward seeds d(root)/d(root) = 1 and propagates gradients to every
// tensor that requires them.
//
// Errors: ErrNilTensor, ErrNotScalar (root must be 1×1).
// Complexity: O(nodes + edges) for the sort plus each closure's own cost.
func Backward(root *Tensor) error {
	if root == nil {
		return tensorErrorf(opBackward, ErrNilTensor)
	}
	if root.r != 1 || root.c != 1 {
		return tensorErrorf(opBackward, ErrNotScalar)
	}

	// Iterative DFS post-order: parents appear before their operands are
	// processed in the reversed walk below.
	var order []*Tensor
	seen := make(map[*Tensor]struct{})
	type frame struct {
		t *Tensor
		i int // next operand to visit
	}
	stack := []frame{{t: root}}
	seen[root] = struct{}{}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.i < len(top.t.prev) {
			child := top.t.prev[top.i]
			top.i++
			if _, ok := seen[child]; !ok && child.requiresGrad {
				seen[child] = struct{}{}
				stack = append(stack, frame{t: child})
			}
			continue
		}
		order = append(order, top.t)
		stack = stack[:len(stack)-1]
	}

	root.gradBuf()[0] = 1
	for i := len(order) - 1; i >= 0; i-- {
		if order[i].back != nil && order[i].grad != nil {
			order[i].back()
		}
	}
	return nil
}
