package ast

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-lang/kestrel/pkg/token"
)

func TestBinOpKindString(t *testing.T) {
	require.Equal(t, "+", Add.String())
	require.Equal(t, "==", Eq.String())
	require.Equal(t, "!=", Ne.String())
}

func TestNodeSpansRoundTrip(t *testing.T) {
	lit := &IntLit{Value: 42, SpanVal: token.Span{}}
	require.Equal(t, token.Span{}, lit.Span())
}
