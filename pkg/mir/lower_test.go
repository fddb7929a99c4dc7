package mir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-lang/kestrel/pkg/parser"
	"github.com/kestrel-lang/kestrel/pkg/types"
)

func lowerSrc(t *testing.T, src string) (*Program, []string) {
	t.Helper()
	prog, perr := parser.New("program.ke", src).ParseProgram()
	require.Nil(t, perr)
	l := NewLowerer("program.ke", prog)
	mprog, diags := l.LowerProgram(prog)
	var codes []string
	for _, d := range diags {
		codes = append(codes, string(d.Code))
	}
	return mprog, codes
}

func TestLowerLetAndAdd(t *testing.T) {
	mprog, diags := lowerSrc(t, "fn main() { let x = 1 + 2 }")
	require.Empty(t, diags)
	require.Len(t, mprog.Functions, 1)
	fn := mprog.Functions[0]

	var sawAdd bool
	for _, instr := range fn.Instrs {
		if instr.Op == OpAdd {
			sawAdd = true
			require.Equal(t, types.TI32, instr.Type)
		}
	}
	require.True(t, sawAdd)
}

func TestLowerOperandCopiesCopyableBinding(t *testing.T) {
	// `x + x`: each operand position is a bare identifier of copyable type,
	// so both should be Load-then-Copy, never a bare consuming Load.
	mprog, diags := lowerSrc(t, "fn main() { let x = 1 let y = x + x }")
	require.Empty(t, diags)
	fn := mprog.Functions[0]

	var copies int
	for _, instr := range fn.Instrs {
		if instr.Op == OpCopy {
			copies++
		}
	}
	require.Equal(t, 2, copies)
}

func TestLowerIfRequiresElseWhenUsedAsValue(t *testing.T) {
	// Scenario 5: `let x = if 1==2 { 1 }` with no else must fail E024.
	_, diags := lowerSrc(t, "fn main() { let x = if 1==2 { 1 } }")
	require.Equal(t, []string{"E024"}, diags)
}

func TestLowerRejectsIntLiteralTooWideForUnsignedType(t *testing.T) {
	_, diags := lowerSrc(t, "fn main() { let x: u8 = 300 }")
	require.Equal(t, []string{"E010"}, diags)
}

func TestLowerAcceptsIntLiteralThatFitsUnsignedType(t *testing.T) {
	_, diags := lowerSrc(t, "fn main() { let x: u8 = 200 }")
	require.Empty(t, diags)
}

func TestLowerIfProducesPhiWithGroupedArmBlocks(t *testing.T) {
	mprog, diags := lowerSrc(t, "fn main() { let x = if 1==2 { 1 } else { 2 } }")
	require.Empty(t, diags)
	fn := mprog.Functions[0]

	var phi *Instruction
	for i := range fn.Instrs {
		if fn.Instrs[i].Op == OpPhi {
			phi = &fn.Instrs[i]
		}
	}
	require.NotNil(t, phi)
	require.Len(t, phi.Incoming, 2)

	groups := map[int]bool{}
	for _, b := range fn.Blocks {
		if b.GroupID != 0 {
			groups[b.GroupID] = true
		}
	}
	require.Len(t, groups, 1)
}

func TestLowerDerefOfNonReferenceIsE018(t *testing.T) {
	_, diags := lowerSrc(t, "fn main() { let x = 1 let y = *x }")
	require.Equal(t, []string{"E018"}, diags)
}

func TestResolveReferentFoldsDoubleReference(t *testing.T) {
	mprog, diags := lowerSrc(t, "fn main() { let x = 1 let y = &x let z = &y }")
	require.Empty(t, diags)
	fn := mprog.Functions[0]

	var refs []Instruction
	for _, instr := range fn.Instrs {
		if instr.Op == OpReference {
			refs = append(refs, instr)
		}
	}
	require.Len(t, refs, 2)
	require.Equal(t, "x", refs[0].Name)
	require.Equal(t, "", refs[0].FoldedVia, "the first &x does not fold through anything")
	require.Equal(t, "x", refs[1].Name, "&y should fold to a second reference to x")
	require.Equal(t, "y", refs[1].FoldedVia, "&y's fold must be attributed back to y so its lifetime extends")
}
