package diag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-lang/kestrel/pkg/token"
)

func TestSinkCollectsInOrder(t *testing.T) {
	sink := NewSink()
	require.False(t, sink.HasErrors())

	sink.Report(&Diagnostic{Code: EParse, Summary: "first"})
	sink.Report(&Diagnostic{Code: EUseAfterMove, Summary: "second"})

	require.True(t, sink.HasErrors())
	items := sink.Items()
	require.Len(t, items, 2)
	require.Equal(t, "first", items[0].Summary)
	require.Equal(t, "second", items[1].Summary)
}

func TestDiagnosticErrorString(t *testing.T) {
	d := &Diagnostic{Code: EDerefNonRef, Summary: "cannot dereference non-reference type i32"}
	require.Equal(t, "E018: cannot dereference non-reference type i32", d.Error())
}

func TestRenderIncludesCodeAndCaret(t *testing.T) {
	src := "fn x{ }"
	d := &Diagnostic{
		Code:    EParse,
		Summary: "expected lparen, got lcurly",
		File:    "program.ke",
		Primary: token.Span{
			Start: token.Pos{Offset: 4, Line: 1, Col: 5},
			End:   token.Pos{Offset: 5, Line: 1, Col: 6},
		},
	}

	var buf bytes.Buffer
	Render(&buf, src, []*Diagnostic{d})
	out := buf.String()

	require.Contains(t, out, "E001")
	require.Contains(t, out, "expected lparen, got lcurly")
	require.Contains(t, out, "program.ke:1:5")
	require.Contains(t, out, "fn x{ }")
}
