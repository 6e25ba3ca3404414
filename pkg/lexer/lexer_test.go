package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quartz.dev/qcc/pkg/lexer"
	"quartz.dev/qcc/pkg/token"
)

func scan(t *testing.T, src string) []token.Token {
	t.Helper()
	l := lexer.New(&token.File{Path: "<test>", Text: src})
	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Kind == token.End || tok.Kind == token.Error {
			break
		}
	}
	return tokens
}

func kinds(tokens []token.Token) []token.Kind {
	out := make([]token.Kind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Kind
	}
	return out
}

func TestPunctuatorsAndCompounds(t *testing.T) {
	tokens := scan(t, "== != <= >= && || = < > ! + - * / %")
	require.Equal(t, []token.Kind{
		token.EqualEqual, token.BangEqual, token.LowerEqual, token.GreaterEqual,
		token.AmpAmp, token.PipePipe, token.Equal, token.Lower, token.Greater,
		token.Bang, token.Plus, token.Minus, token.Star, token.Slash, token.Percent,
		token.End,
	}, kinds(tokens))
}

func TestIdentifiersVsKeywords(t *testing.T) {
	tokens := scan(t, "var fn classifier class return_value")
	require.Len(t, tokens, 6)
	assert.Equal(t, token.Var, tokens[0].Kind)
	assert.Equal(t, token.Fn, tokens[1].Kind)
	assert.Equal(t, token.Identifier, tokens[2].Kind, "classifier must not fall through keyword matching for class")
	assert.Equal(t, token.Class, tokens[3].Kind)
	assert.Equal(t, token.Identifier, tokens[4].Kind, "return_value must not be misread after matching 'return'")
}

func TestNumberLiterals(t *testing.T) {
	t.Run("integer", func(t *testing.T) {
		tok := scan(t, "42")[0]
		assert.Equal(t, token.Number, tok.Kind)
		assert.Equal(t, "42", tok.Lexeme)
	})

	t.Run("decimal", func(t *testing.T) {
		tok := scan(t, "3.14")[0]
		assert.Equal(t, token.Number, tok.Kind)
		assert.Equal(t, "3.14", tok.Lexeme)
	})

	t.Run("trailing dot is an error", func(t *testing.T) {
		tok := scan(t, "3.")[0]
		assert.Equal(t, token.Error, tok.Kind)
	})
}

func TestStringLiterals(t *testing.T) {
	t.Run("double quoted", func(t *testing.T) {
		tok := scan(t, `"hello"`)[0]
		assert.Equal(t, token.String, tok.Kind)
	})

	t.Run("single quoted", func(t *testing.T) {
		tok := scan(t, `'hello'`)[0]
		assert.Equal(t, token.String, tok.Kind)
	})

	t.Run("unterminated is an error", func(t *testing.T) {
		tok := scan(t, `"hello`)[0]
		assert.Equal(t, token.Error, tok.Kind)
	})
}

func TestCommentsAreSkipped(t *testing.T) {
	tokens := scan(t, "var a; // trailing comment\nvar b;")
	require.Len(t, tokens, 7)
	assert.Equal(t, token.Var, tokens[0].Kind)
	assert.Equal(t, 2, tokens[4].Line, "var b; should be on line 2 after the comment")
}

func TestLineAndColumnTracking(t *testing.T) {
	tokens := scan(t, "var a;\n  var b;")
	// first 'var' at 1:1
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 1, tokens[0].Column)
	// second 'var' at 2:3 (two leading spaces)
	second := tokens[3]
	assert.Equal(t, token.Var, second.Kind)
	assert.Equal(t, 2, second.Line)
	assert.Equal(t, 3, second.Column)
}

func TestTerminalTokenIsIdempotent(t *testing.T) {
	l := lexer.New(&token.File{Path: "<test>", Text: ""})
	first := l.NextToken()
	second := l.NextToken()
	assert.Equal(t, token.End, first.Kind)
	assert.Equal(t, first, second)
}

func TestSliceRoundTrip(t *testing.T) {
	src := "var a: Number = 1;"
	tokens := scan(t, src)
	// Concatenating every token's lexeme (minus the implicit End's empty
	// slice) should reproduce the source modulo whitespace.
	reconstructed := ""
	for _, tok := range tokens {
		if tok.Kind == token.End {
			continue
		}
		reconstructed += tok.Lexeme
	}
	assert.Equal(t, "vara:Number=1;", reconstructed)
}
