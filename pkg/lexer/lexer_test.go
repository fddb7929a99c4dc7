package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-lang/kestrel/pkg/token"
)

func TestAllKeywordsAndOperators(t *testing.T) {
	toks := All("fn let mut return if elif else enum true false & * + == != :: ( ) { } , :")
	var kinds []token.Kind
	for _, tk := range toks {
		if tk.Kind == token.EOF {
			continue
		}
		kinds = append(kinds, tk.Kind)
	}
	require.Equal(t, []token.Kind{
		token.KwFn, token.KwLet, token.KwMut, token.KwReturn, token.KwIf, token.KwElif,
		token.KwElse, token.KwEnum, token.KwTrue, token.KwFalse,
		token.Amp, token.Star, token.Plus, token.EqEq, token.BangEq, token.ColonColon,
		token.LParen, token.RParen, token.LCurly, token.RCurly, token.Comma, token.Colon,
	}, kinds)
}

func TestAllSkipsComments(t *testing.T) {
	toks := All("let x = 1 # this is a comment\nlet y = 2")
	require.Equal(t, token.EOF, toks[len(toks)-1].Kind)
	for _, tk := range toks {
		require.NotContains(t, tk.Literal, "comment")
	}
}

func TestIdentSpanColumns(t *testing.T) {
	toks := All("fn main")
	require.Equal(t, token.KwFn, toks[0].Kind)
	require.Equal(t, 1, toks[0].Span.Start.Col)
	require.Equal(t, token.Ident, toks[1].Kind)
	require.Equal(t, "main", toks[1].Literal)
	require.Equal(t, 4, toks[1].Span.Start.Col)
}
