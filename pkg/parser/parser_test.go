package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-lang/kestrel/pkg/ast"
	"github.com/kestrel-lang/kestrel/pkg/diag"
)

func TestParseSimpleFunction(t *testing.T) {
	prog, err := New("program.ke", "fn main() { let x = 1 }").ParseProgram()
	require.Nil(t, err)
	require.Len(t, prog.Functions, 1)
	require.Equal(t, "main", prog.Functions[0].Name)
	require.Len(t, prog.Functions[0].Body.Stmts, 1)

	let, ok := prog.Functions[0].Body.Stmts[0].(*ast.LetStmt)
	require.True(t, ok)
	require.Equal(t, "x", let.Name)
}

func TestParseEnum(t *testing.T) {
	prog, err := New("program.ke", "enum Color { Red, Green, Blue }").ParseProgram()
	require.Nil(t, err)
	require.Len(t, prog.Enums, 1)
	require.Equal(t, []string{"Red", "Green", "Blue"}, prog.Enums[0].Variants)
}

func TestParseIfElseAsStatement(t *testing.T) {
	src := "fn main() { if 1==2 { let a = 1 } else { let b = 2 } }"
	prog, err := New("program.ke", src).ParseProgram()
	require.Nil(t, err)
	stmt, ok := prog.Functions[0].Body.Stmts[0].(*ast.ExprStmt)
	require.True(t, ok)
	ifExpr, ok := stmt.Value.(*ast.IfExpr)
	require.True(t, ok)
	require.NotNil(t, ifExpr.Else)
}

// Scenario 7: `fn x{ … }` is rejected with E001, "expected lparen, got
// lcurly", caret at column 5 (spec.md §8).
func TestMissingParenAfterFunctionNameIsE001(t *testing.T) {
	prog, err := New("program.ke", "fn x{ }").ParseProgram()
	require.Nil(t, prog)
	require.NotNil(t, err)
	require.Equal(t, diag.EParse, err.Code)
	require.Contains(t, err.Summary, "expected lparen, got lcurly")
	require.Equal(t, 5, err.Primary.Start.Col)
}

func TestReferenceAndDerefExpressions(t *testing.T) {
	src := "fn main() { let x = 1 let y = &x let z = *y }"
	prog, err := New("program.ke", src).ParseProgram()
	require.Nil(t, err)
	let := prog.Functions[0].Body.Stmts[2].(*ast.LetStmt)
	_, ok := let.Value.(*ast.DerefExpr)
	require.True(t, ok)
}
