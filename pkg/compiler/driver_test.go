package compiler

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func skipIfNoClang(t *testing.T) {
	if _, err := exec.LookPath("clang"); err != nil {
		t.Skip("clang not available")
	}
}

func TestDriveProducesBinary(t *testing.T) {
	skipIfNoClang(t)

	ctx := NewContext("program.ke", Options{})
	res, diags := ctx.Run("fn main() { let x = 1 + 2 }")
	require.Empty(t, diags)

	dir := t.TempDir()
	out := filepath.Join(dir, "program")
	path, err := Drive(res, "program.ke", DriverOptions{Output: out})
	require.NoError(t, err)
	require.Equal(t, out, path)

	info, err := os.Stat(out)
	require.NoError(t, err)
	require.False(t, info.IsDir())
}

// The default output path must land in the working directory, not be lost
// inside the scratch directory Drive removes on return.
func TestDriveDefaultOutputSurvivesScratchCleanup(t *testing.T) {
	skipIfNoClang(t)

	ctx := NewContext("program.ke", Options{})
	res, diags := ctx.Run("fn main() { let x = 1 + 2 }")
	require.Empty(t, diags)

	wd, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))
	defer func() { require.NoError(t, os.Chdir(wd)) }()

	path, err := Drive(res, "program.ke", DriverOptions{})
	require.NoError(t, err)
	require.Equal(t, "a.out", path)

	info, err := os.Stat(filepath.Join(dir, "a.out"))
	require.NoError(t, err)
	require.False(t, info.IsDir())
}

func TestDriveKeepsIRAlongsideOutput(t *testing.T) {
	skipIfNoClang(t)

	ctx := NewContext("program.ke", Options{})
	res, diags := ctx.Run("fn main() { let x = 1 + 2 }")
	require.Empty(t, diags)

	dir := t.TempDir()
	out := filepath.Join(dir, "program")
	_, err := Drive(res, "program.ke", DriverOptions{Output: out, KeepIR: true})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "program.ll"))
	require.NoError(t, err)
}
