package mirdump

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-lang/kestrel/pkg/analysis"
	"github.com/kestrel-lang/kestrel/pkg/mir"
	"github.com/kestrel-lang/kestrel/pkg/parser"
)

func TestWriteIsStableAndAnnotatesLastUse(t *testing.T) {
	prog, perr := parser.New("program.ke", "fn main() { let x = 1 + 2 }").ParseProgram()
	require.Nil(t, perr)
	l := mir.NewLowerer("program.ke", prog)
	mprog, diags := l.LowerProgram(prog)
	require.Empty(t, diags)
	require.Empty(t, analysis.RunLifetimePass("program.ke", mprog))

	var buf1, buf2 bytes.Buffer
	require.NoError(t, Write(&buf1, mprog))
	require.NoError(t, Write(&buf2, mprog))

	require.Equal(t, buf1.String(), buf2.String(), "dumping the same program twice must be byte-identical")
	require.Contains(t, buf1.String(), "fn main:")
	require.Contains(t, buf1.String(), "last_use=")
}
