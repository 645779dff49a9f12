// SPDX-License-Identifier: MIT

package decoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/lvlnn/vocab"
)

func TestHypothesisExtend_CopiesAndTerminates(t *testing.T) {
	t.Parallel()
	base := &hypothesis{ids: []int{7}, states: []*state{nil}, score: -1}

	grown := base.extend(8, -0.5, nil)
	require.Equal(t, []int{7, 8}, grown.ids)
	require.InDelta(t, -1.5, grown.score, 1e-12)
	require.False(t, grown.done)
	require.Equal(t, []int{7}, base.ids, "parent hypothesis must stay untouched")

	ended := base.extend(vocab.EOSIndex, -0.25, nil)
	require.True(t, ended.done)
	require.Equal(t, []int{7}, ended.ids, "terminator never enters the sequence")
	require.InDelta(t, -1.25, ended.score, 1e-12)
}

func TestPickBest_PrefersFinished(t *testing.T) {
	t.Parallel()

	liveHigh := &hypothesis{ids: []int{7}, score: -0.1}
	doneLow := &hypothesis{ids: []int{8}, score: -2, done: true}
	doneHigh := &hypothesis{ids: []int{9}, score: -1, done: true}

	require.Same(t, doneHigh, pickBest([]*hypothesis{liveHigh, doneLow, doneHigh}))
	require.Same(t, liveHigh, pickBest([]*hypothesis{liveHigh, {ids: []int{8}, score: -3}}))
}
