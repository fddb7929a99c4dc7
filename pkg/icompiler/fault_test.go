package icompiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFaultMessage(t *testing.T) {
	f := New("phi with no incoming values")
	require.Equal(t, "internal compiler error: phi with no incoming values", f.Error())
	require.Nil(t, f.Unwrap())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("operand index out of range")
	f := Wrap(cause, "malformed MIR")
	require.Contains(t, f.Error(), "malformed MIR")
	require.Contains(t, f.Error(), "operand index out of range")
	require.NotNil(t, f.Unwrap())
}

func TestExitCodeIsDistinctFromDiagnosticExit(t *testing.T) {
	require.Equal(t, 2, ExitCode)
	require.NotEqual(t, 1, ExitCode)
}
