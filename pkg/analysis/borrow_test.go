package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-lang/kestrel/pkg/mir"
	"github.com/kestrel-lang/kestrel/pkg/parser"
)

func lowerAndRunBorrow(t *testing.T, src string) []string {
	t.Helper()
	prog, perr := parser.New("program.ke", src).ParseProgram()
	require.Nil(t, perr)
	l := mir.NewLowerer("program.ke", prog)
	mprog, lowerDiags := l.LowerProgram(prog)
	require.Empty(t, lowerDiags)
	require.Empty(t, RunLifetimePass("program.ke", mprog))

	diags := RunBorrowPass("program.ke", mprog)
	var codes []string
	for _, d := range diags {
		codes = append(codes, string(d.Code))
	}
	return codes
}

// Scenario 3: a second live reference to the same referent (here, `&y`
// folds to a second reference to `x`) is rejected.
func TestMultipleReferencesRejected(t *testing.T) {
	codes := lowerAndRunBorrow(t, "fn main() { let x = 1 let y = &x let z = &y }")
	require.Equal(t, []string{"E009"}, codes)
}

func TestSingleReferenceAccepted(t *testing.T) {
	codes := lowerAndRunBorrow(t, "fn main() { let x = 1 let y = &x }")
	require.Empty(t, codes)
}

func TestSequentialReferencesAfterLastUseAreFine(t *testing.T) {
	// y's last use is the `let a = y` load; z's reference to x starts only
	// after that, so there is never more than one live reference to x.
	src := "fn main() { let x = 1 let y = &x let a = y let z = &x }"
	codes := lowerAndRunBorrow(t, src)
	require.Empty(t, codes)
}
