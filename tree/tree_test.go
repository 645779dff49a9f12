// SPDX-License-Identifier: MIT

package tree_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/lvlnn/tree"
	"github.com/katalvlaran/lvlnn/vocab"
)

// testVocab returns a vocabulary with a handful of terminals past the
// reserved block, plus their indices for readable test sequences.
func testVocab(t *testing.T) (*vocab.Vocab, map[string]int) {
	t.Helper()
	v := vocab.New()
	ids := map[string]int{
		"(": vocab.OpenIndex,
		")": vocab.CloseIndex,
	}
	for _, tok := range []string{"lambda", "$0", "e", "and", "job", "salary"} {
		ids[tok] = v.Add(tok)
	}
	return v, ids
}

// seq maps a whitespace-free token list to indices via the ids table.
func seq(ids map[string]int, toks ...string) []int {
	out := make([]int, len(toks))
	for i, tok := range toks {
		out[i] = ids[tok]
	}
	return out
}

func TestParse_Flatten_RoundTrip(t *testing.T) {
	t.Parallel()
	_, ids := testVocab(t)

	tests := []struct {
		name string
		in   []int
	}{
		{name: "flat terminals", in: seq(ids, "job", "$0")},
		{name: "single group", in: seq(ids, "(", "job", "$0", ")")},
		{name: "nested groups", in: seq(ids, "(", "lambda", "$0", "e", "(", "and", "(", "job", "$0", ")", "(", "salary", "$0", ")", ")", ")")},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			root, err := tree.Parse(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.in, tree.Flatten(root))
		})
	}
}

func TestParse_Structure(t *testing.T) {
	t.Parallel()
	_, ids := testVocab(t)

	root, err := tree.Parse(seq(ids, "(", "and", "(", "job", "$0", ")", ")"))
	require.NoError(t, err)

	require.Len(t, root.Children, 1)
	outer := root.Children[0]
	require.Equal(t, vocab.NTIndex, outer.Symbol)
	require.Len(t, outer.Children, 2)
	require.Equal(t, ids["and"], outer.Children[0].Symbol)

	inner := outer.Children[1]
	require.Equal(t, vocab.NTIndex, inner.Symbol)
	require.Same(t, outer, inner.Parent)
	require.Equal(t, ids["job"], inner.Children[0].Symbol)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()
	_, ids := testVocab(t)

	tests := []struct {
		name string
		in   []int
		want error
	}{
		{name: "empty", in: nil, want: tree.ErrEmptyInput},
		{name: "unclosed open", in: seq(ids, "(", "job"), want: tree.ErrUnbalanced},
		{name: "stray close", in: seq(ids, "job", ")"), want: tree.ErrUnbalanced},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := tree.Parse(tc.in)
			require.True(t, errors.Is(err, tc.want), "got %v, want %v", err, tc.want)
		})
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()
	_, ids := testVocab(t)

	a, err := tree.Parse(seq(ids, "(", "and", "(", "job", "$0", ")", ")"))
	require.NoError(t, err)
	b, err := tree.Parse(seq(ids, "(", "and", "(", "job", "$0", ")", ")"))
	require.NoError(t, err)
	c, err := tree.Parse(seq(ids, "(", "and", "(", "salary", "$0", ")", ")"))
	require.NoError(t, err)
	d, err := tree.Parse(seq(ids, "(", "and", "job", "$0", ")"))
	require.NoError(t, err)

	require.True(t, tree.Equal(a, b))
	require.False(t, tree.Equal(a, c)) // differing leaf
	require.False(t, tree.Equal(a, d)) // differing shape
	require.True(t, tree.Equal(nil, nil))
	require.False(t, tree.Equal(a, nil))
}

func TestString(t *testing.T) {
	t.Parallel()
	v, ids := testVocab(t)

	root, err := tree.Parse(seq(ids, "(", "job", "$0", ")"))
	require.NoError(t, err)
	require.Equal(t, "( job $0 )", tree.String(root, v))
}

func TestRepairBrackets(t *testing.T) {
	t.Parallel()
	_, ids := testVocab(t)

	tests := []struct {
		name   string
		in     []int
		want   []int
		parses bool
	}{
		{
			name:   "already balanced",
			in:     seq(ids, "(", "job", "$0", ")"),
			want:   seq(ids, "(", "job", "$0", ")"),
			parses: true,
		},
		{
			name:   "two missing closes appended",
			in:     seq(ids, "(", "and", "(", "job"),
			want:   seq(ids, "(", "and", "(", "job", ")", ")"),
			parses: true,
		},
		{
			name:   "two surplus closes truncate the last two tokens",
			in:     seq(ids, "(", "job", ")", ")", ")"),
			want:   seq(ids, "(", "job", ")"),
			parses: true,
		},
		{
			name: "truncation cuts tokens, not the offending closes",
			in:   seq(ids, ")", ")", "job", "$0"),
			want: seq(ids, ")", ")"),
		},
		{
			name: "balanced counts are left alone even when ill-formed",
			in:   seq(ids, ")", "job", "(", "$0"),
			want: seq(ids, ")", "job", "(", "$0"),
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := tree.RepairBrackets(tc.in)
			require.Equal(t, tc.want, got)

			_, err := tree.Parse(got)
			if tc.parses {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tree.ErrUnbalanced)
			}
		})
	}
}
