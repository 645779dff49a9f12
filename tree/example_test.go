// SPDX-License-Identifier: MIT

package tree_test

import (
	"fmt"

	"github.com/katalvlaran/lvlnn/tree"
	"github.com/katalvlaran/lvlnn/vocab"
)

// ExampleParse demonstrates the round trip between the flat bracketed
// form and the recovered tree.
func ExampleParse() {
	v := vocab.New()
	ids := v.IndicesOf([]string{"(", "job", "$0", ")"}, true)

	root, err := tree.Parse(ids)
	if err != nil {
		fmt.Println("parse:", err)
		return
	}
	fmt.Println(tree.String(root, v))
	fmt.Println("top-level items:", len(root.Children))
	// Output:
	// ( job $0 )
	// top-level items: 1
}

// ExampleRepairBrackets shows the well-formedness repair applied to a
// decode that stopped before closing its subtrees.
func ExampleRepairBrackets() {
	v := vocab.New()
	truncated := v.IndicesOf([]string{"(", "and", "(", "job"}, true)

	repaired := tree.RepairBrackets(truncated)
	root, err := tree.Parse(repaired)
	if err != nil {
		fmt.Println("parse:", err)
		return
	}
	fmt.Println(tree.String(root, v))
	// Output:
	// ( and ( job ) )
}
