package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cqlgate/internal/dberr"
)

func kinds(toks []token) []tokenKind {
	out := make([]tokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.kind
	}
	return out
}

func TestTokenize(t *testing.T) {
	toks, err := tokenize(`a>=1 AND (b <> 'it''s' OR c IN (:x, "y"))`)
	require.NoError(t, err)

	assert.Equal(t, []tokenKind{
		tokWord, tokOp, tokWord, tokWord,
		tokLParen, tokWord, tokOp, tokString, tokWord,
		tokWord, tokWord, tokLParen, tokParam, tokComma, tokString, tokRParen,
		tokRParen, tokEOF,
	}, kinds(toks))

	assert.Equal(t, ">=", toks[1].text)
	assert.Equal(t, "<>", toks[6].text)
	assert.Equal(t, "it's", toks[7].text)
	assert.Equal(t, byte('\''), toks[7].quote)
	assert.Equal(t, "x", toks[12].text)
	assert.Equal(t, byte('"'), toks[14].quote)
}

func TestTokenizePositions(t *testing.T) {
	toks, err := tokenize("ab = 12")
	require.NoError(t, err)
	require.Len(t, toks, 4)

	assert.Equal(t, 0, toks[0].pos)
	assert.Equal(t, 2, toks[0].end)
	assert.Equal(t, 3, toks[1].pos)
	assert.Equal(t, 5, toks[2].pos)
	assert.Equal(t, 7, toks[3].pos)
}

func TestTokenizeColonInsideWord(t *testing.T) {
	toks, err := tokenize("t = 12:30:00")
	require.NoError(t, err)
	require.Len(t, toks, 4)
	assert.Equal(t, tokWord, toks[2].kind)
	assert.Equal(t, "12:30:00", toks[2].text)
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated string", "a = 'abc"},
		{"lone bang", "a ! 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokenize(tt.input)
			require.Error(t, err)
			assert.True(t, dberr.IsCompile(err))
		})
	}
}

func TestLookupOperator(t *testing.T) {
	tests := []struct {
		name   string
		native string
		ok     bool
	}{
		{"=", "=", true},
		{"eq", "=", true},
		{"<>", "!=", true},
		{"not   in", "NOT IN", true},
		{"starts with", "LIKE", true},
		{"does not exist", "IS NULL", true},
		{"is not null", "IS NOT NULL", true},
		{"between", "", false},
		{"= 1", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, ok := LookupOperator(tt.name)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.native, op.Native)
			}
		})
	}
}

func TestOperatorWrap(t *testing.T) {
	get := func(name string) *Operator {
		op, ok := LookupOperator(name)
		require.True(t, ok)
		return op
	}
	assert.Equal(t, "ab%", get("STARTS WITH").wrap("ab"))
	assert.Equal(t, "%ab", get("ENDS WITH").wrap("ab"))
	assert.Equal(t, "%ab%", get("CONTAINS").wrap("ab"))
	assert.Equal(t, "ab", get("LIKE").wrap("ab"))
}
