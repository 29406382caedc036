// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func preprocess(t *testing.T, input string) []Token {
	t.Helper()
	tokens, err := NewLexer(input).Tokenize()
	require.NoError(t, err)
	out, err := NewPreprocessor().Preprocess(tokens)
	require.NoError(t, err)
	return out
}

func TestPreprocessPlainLine(t *testing.T) {
	out := preprocess(t, "block from a to b")
	assert.Equal(t, []Token{
		tok(TokenBlock), tok(TokenFrom), val("a"), tok(TokenTo), val("b"), tok(TokenNewline),
	}, out)
}

func TestPreprocessSubstitution(t *testing.T) {
	out := preprocess(t, "a = 10.0.0.1\nblock from $a to 10.0.0.2\n")
	assert.Equal(t, []Token{
		tok(TokenBlock), tok(TokenFrom), val("10.0.0.1"), tok(TokenTo), val("10.0.0.2"), tok(TokenNewline),
	}, out)
}

func TestPreprocessRedefinition(t *testing.T) {
	out := preprocess(t, "a = one\na = two\nblock from $a to b\n")
	assert.Equal(t, []Token{
		tok(TokenBlock), tok(TokenFrom), val("two"), tok(TokenTo), val("b"), tok(TokenNewline),
	}, out)
}

func TestPreprocessChainedDefinition(t *testing.T) {
	out := preprocess(t, "a = 10.0.0.1\nb = $a\nblock from $b to c\n")
	assert.Equal(t, []Token{
		tok(TokenBlock), tok(TokenFrom), val("10.0.0.1"), tok(TokenTo), val("c"), tok(TokenNewline),
	}, out)
}

func TestPreprocessListBinding(t *testing.T) {
	out := preprocess(t, "hosts = { a b }\nblock from $hosts to c\n")
	assert.Equal(t, []Token{
		tok(TokenBlock), tok(TokenFrom), val("a"), tok(TokenTo), val("c"), tok(TokenNewline),
		tok(TokenBlock), tok(TokenFrom), val("b"), tok(TokenTo), val("c"), tok(TokenNewline),
	}, out)
}

func TestPreprocessUnknownIdent(t *testing.T) {
	tokens, err := NewLexer("block from $nope to b\n").Tokenize()
	require.NoError(t, err)
	_, err = NewPreprocessor().Preprocess(tokens)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown identifier nope")
}

func TestPreprocessCartesianOrder(t *testing.T) {
	out := preprocess(t, "block from { 1.1.1.1 2.2.2.2 } to { 3.3.3.3 4.4.4.4 }\n")

	want := []Token{
		tok(TokenBlock), tok(TokenFrom), val("1.1.1.1"), tok(TokenTo), val("3.3.3.3"), tok(TokenNewline),
		tok(TokenBlock), tok(TokenFrom), val("1.1.1.1"), tok(TokenTo), val("4.4.4.4"), tok(TokenNewline),
		tok(TokenBlock), tok(TokenFrom), val("2.2.2.2"), tok(TokenTo), val("3.3.3.3"), tok(TokenNewline),
		tok(TokenBlock), tok(TokenFrom), val("2.2.2.2"), tok(TokenTo), val("4.4.4.4"), tok(TokenNewline),
	}
	assert.Equal(t, want, out)
}

func TestPreprocessExpansionCount(t *testing.T) {
	// Three lists of sizes 2, 3, 2 expand into 12 lines.
	out := preprocess(t, "block proto { tcp udp } from { a b c } to { d e }\n")

	lines := 0
	for _, tk := range out {
		if tk.Type == TokenNewline {
			lines++
		}
	}
	assert.Equal(t, 12, lines)

	// Every combination appears exactly once.
	seen := make(map[string]int)
	var cur []Token
	for _, tk := range out {
		if tk.Type == TokenNewline {
			key := cur[2].Text + "/" + cur[4].Text + "/" + cur[6].Text
			seen[key]++
			cur = cur[:0]
			continue
		}
		cur = append(cur, tk)
	}
	assert.Len(t, seen, 12)
	for key, n := range seen {
		assert.Equal(t, 1, n, "combination %s repeated", key)
	}
}

func TestPreprocessOutputContract(t *testing.T) {
	out := preprocess(t, "a = x\nports = { 80 443 }\nblock from $a port { 1 2 } to b port $ports\n")

	for _, tk := range out {
		switch tk.Type {
		case TokenDef, TokenIdent, TokenList:
			t.Fatalf("preprocessed stream still contains %s token", tk.Type)
		}
	}
}

func TestPreprocessBlankLinesAndMissingTerminator(t *testing.T) {
	out := preprocess(t, "\n\nblock from a to b")
	assert.Equal(t, []Token{
		tok(TokenBlock), tok(TokenFrom), val("a"), tok(TokenTo), val("b"), tok(TokenNewline),
	}, out)
}

func TestPreprocessEmptyInput(t *testing.T) {
	out := preprocess(t, "")
	assert.Empty(t, out)
}
