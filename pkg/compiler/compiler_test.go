package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-lang/kestrel/pkg/diag"
)

func TestRunSucceedsOnWellFormedProgram(t *testing.T) {
	ctx := NewContext("program.ke", Options{})
	res, diags := ctx.Run("fn main() { let x = 1 + 2 }")
	require.Empty(t, diags)
	require.NotNil(t, res)
	require.Contains(t, res.LLVMIR, "define i32 @main")
}

func TestRunStopsAtParseStage(t *testing.T) {
	ctx := NewContext("program.ke", Options{})
	res, diags := ctx.Run("fn x{ }")
	require.Nil(t, res)
	require.Len(t, diags, 1)
	require.Equal(t, diag.EParse, diags[0].Code)
}

// Scenario 2: the lifetime pass must abort the pipeline before codegen
// runs, so no LLVM IR is produced for an ill-typed program.
func TestRunStopsAtLifetimeStage(t *testing.T) {
	ctx := NewContext("program.ke", Options{})
	res, diags := ctx.Run("fn main() { let x = 1 let y = x let n = x }")
	require.Nil(t, res)
	require.Len(t, diags, 1)
	require.Equal(t, diag.EUseAfterMove, diags[0].Code)
}

func TestRunEmitsMIRDumpWhenRequested(t *testing.T) {
	ctx := NewContext("program.ke", Options{EmitMIR: true})
	res, diags := ctx.Run("fn main() { let x = 1 + 2 }")
	require.Empty(t, diags)
	require.NotEmpty(t, res.MIRDump)
}
