// SPDX-License-Identifier: MIT

package vocab_test

import (
	"fmt"

	"github.com/katalvlaran/lvlnn/graph"
	"github.com/katalvlaran/lvlnn/vocab"
)

// ExampleBuildOOV shows per-batch vocabulary extension: the unknown source
// token becomes addressable in the copy distribution while the base
// vocabulary stays untouched.
func ExampleBuildOOV() {
	base := vocab.New()
	base.Add("job")

	g, err := graph.NewFromNodes([]graph.Node{
		{Token: "job", Type: 0},
		{Token: "60000", Type: 0},
	})
	if err != nil {
		fmt.Println("graph:", err)
		return
	}

	oov, ids, err := vocab.BuildOOV(base, g)
	if err != nil {
		fmt.Println("oov:", err)
		return
	}
	fmt.Println("base size:", base.Size())
	fmt.Println("oov size:", oov.Size())
	fmt.Println("node ids:", ids)
	fmt.Println("base sees 60000 as unk:", base.Index("60000") == vocab.UnkIndex)
	// Output:
	// base size: 8
	// oov size: 9
	// node ids: [7 8]
	// base sees 60000 as unk: true
}
