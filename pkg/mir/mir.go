// Package mir defines Kestrel's mid-level intermediate representation: a
// linear, per-function instruction stream with an explicit block graph,
// the direct target of lowering (Lowerer.LowerProgram), ownership/lifetime
// analysis (pkg/analysis), and LLVM-IR emission (pkg/codegen). See
// spec.md §3 "MIR entities".
package mir

import (
	"github.com/kestrel-lang/kestrel/pkg/token"
	"github.com/kestrel-lang/kestrel/pkg/types"
)

// Op is a MIR opcode (spec.md §3).
type Op int

const (
	OpConstBool Op = iota
	OpConstInt
	OpDeclare
	OpStore
	OpOwn
	OpLoad
	OpReference
	OpCopy
	OpDeref
	OpAdd
	OpEq
	OpNe
	OpReturn
	OpCallFunction
	OpPhi
)

func (o Op) String() string {
	switch o {
	case OpConstBool:
		return "ConstBool"
	case OpConstInt:
		return "ConstInt"
	case OpDeclare:
		return "Declare"
	case OpStore:
		return "Store"
	case OpOwn:
		return "Own"
	case OpLoad:
		return "Load"
	case OpReference:
		return "Reference"
	case OpCopy:
		return "Copy"
	case OpDeref:
		return "Deref"
	case OpAdd:
		return "Add"
	case OpEq:
		return "Eq"
	case OpNe:
		return "Ne"
	case OpReturn:
		return "Return"
	case OpCallFunction:
		return "CallFunction"
	case OpPhi:
		return "Phi"
	default:
		return "?"
	}
}

// Incoming is one (predecessor_block, value_index) pair feeding a Phi
// instruction, mirroring the LLVM phi shape (spec.md §9).
type Incoming struct {
	Block int
	Value int
}

// Instruction is one MIR op with operands drawn as indices into the owning
// Function's Instrs slice (spec.md §9: "instructions reference operands by
// index ... no back-pointers").
type Instruction struct {
	Op       Op
	Operands []int // operand value-indices, meaning depends on Op
	Type     *types.Type
	Name     string // binding name for Declare/Store/Load/Reference; callee for CallFunction
	Mut      bool   // set on Declare
	BoolVal  bool   // set on ConstBool
	IntVal   int64  // set on ConstInt
	Incoming []Incoming // set on Phi
	// FoldedVia is set on a Reference instruction when `&e` folded through
	// an intermediate reference-typed binding (e.g. `&y` where y is itself
	// `&x`, spec.md §3/§8.3): the name of that intermediate binding. The
	// fold never emits a Load for it, so the lifetime pass touches it here
	// instead, keeping its borrow liveness from ending early.
	FoldedVia string
	Span      token.Span
}

// Block is a contiguous instruction range sharing a lexical scope
// (spec.md §3 "Block").
type Block struct {
	Start, End int // half-open instruction index range [Start, End)
	Preds      []int
	GroupID    int // shared by sibling if/elif/else arm blocks, 0 otherwise
}

// Lifetime is the per-binding annotation attached by the lifetime pass
// (spec.md §3 "Lifetime annotation").
type Lifetime struct {
	DeclareIdx int
	LastUseIdx int
}

// Function is one lowered `fn` with its flat instruction stream, block
// graph, and (once the lifetime pass has run) per-binding lifetimes.
type Function struct {
	Name      string
	RetType   *types.Type
	Instrs    []Instruction
	Blocks    []Block
	EntryBlock int
	Lifetimes map[string]*Lifetime
}

// NewFunction constructs an empty Function ready for instruction emission.
func NewFunction(name string, retType *types.Type) *Function {
	return &Function{Name: name, RetType: retType, Lifetimes: make(map[string]*Lifetime)}
}

// Emit appends instr to the function and returns its index, the value all
// later operands reference it by.
func (f *Function) Emit(instr Instruction) int {
	f.Instrs = append(f.Instrs, instr)
	return len(f.Instrs) - 1
}

// StartBlock opens a new block beginning at the function's current
// instruction count and returns its index.
func (f *Function) StartBlock(preds []int) int {
	f.Blocks = append(f.Blocks, Block{Start: len(f.Instrs), End: len(f.Instrs), Preds: preds})
	return len(f.Blocks) - 1
}

// StartArmBlock opens a new block tagged as a member of the given if/elif/
// else sibling group (spec.md §4.1 "Block policy").
func (f *Function) StartArmBlock(groupID int) int {
	idx := f.StartBlock(nil)
	f.Blocks[idx].GroupID = groupID
	return idx
}

// CloseBlock sets the block's End to the function's current instruction
// count.
func (f *Function) CloseBlock(idx int) {
	f.Blocks[idx].End = len(f.Instrs)
}

// BlockOf returns the index of the tightest block containing instruction
// idx, or -1. Blocks may nest (an enclosing function-body block contains
// its if-arm sub-blocks), so the smallest matching range wins.
func (f *Function) BlockOf(idx int) int {
	best := -1
	for i, b := range f.Blocks {
		if idx >= b.Start && idx < b.End {
			if best < 0 || (b.End-b.Start) < (f.Blocks[best].End-f.Blocks[best].Start) {
				best = i
			}
		}
	}
	return best
}

// Program is a whole lowered compilation unit.
type Program struct {
	Functions []*Function
}
