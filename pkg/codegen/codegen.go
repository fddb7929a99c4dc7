// Package codegen translates MIR into textual LLVM IR (spec.md §4.4),
// targeting x86_64-unknown-linux-gnu, using the pure-Go LLVM IR builder
// github.com/llir/llvm rather than hand-formatted text (SPEC_FULL.md §6.1).
package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/metadata"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/kestrel-lang/kestrel/pkg/icompiler"
	"github.com/kestrel-lang/kestrel/pkg/mir"
	kt "github.com/kestrel-lang/kestrel/pkg/types"
)

// Flags modify codegen policy without changing its shape (spec.md §4.4
// "Flags").
type Flags struct {
	NoOverflowChecks bool // -fno-ou-checks: emit plain `add`, no intrinsics
	Sanitize         bool // -fsanitize: not read by the emitter, and not passed on to Drive
}

// Emitter lowers a mir.Program to one *ir.Module.
type Emitter struct {
	flags   Flags
	file    string
	module  *ir.Module
	fns     map[string]*ir.Func
	strings map[string]*ir.Global
	intrins map[string]*ir.Func

	f      *mir.Function
	fn     *ir.Func
	values map[int]value.Value
	slots  map[string]*ir.InstAlloca
	// blockOf maps a MIR block's Start index to the LLVM block its arm body
	// ends in, so a later Phi knows which block to wire as each incoming
	// value's predecessor (spec.md §4.4, §9 "phi ... mirrors the LLVM
	// shape").
	blockOf map[int]*ir.Block
}

// NewEmitter constructs an Emitter for a single source file.
func NewEmitter(file string, flags Flags) *Emitter {
	return &Emitter{
		flags:   flags,
		file:    file,
		fns:     map[string]*ir.Func{},
		strings: map[string]*ir.Global{},
		intrins: map[string]*ir.Func{},
	}
}

// Emit lowers prog to a complete LLVM module and returns its textual IR,
// byte-deterministic given identical prog and flags (spec.md §8 "Codegen
// determinism").
func (e *Emitter) Emit(prog *mir.Program) (string, error) {
	e.module = ir.NewModule()
	e.module.TargetTriple = "x86_64-unknown-linux-gnu"
	e.module.SourceFilename = e.file

	e.declarePrintf()
	e.attachDebugInfo()

	// Declare every function signature first so forward calls resolve.
	for _, fn := range prog.Functions {
		e.declareFunc(fn)
	}
	for _, fn := range prog.Functions {
		if err := e.emitFunc(fn); err != nil {
			return "", err
		}
	}

	return e.module.String(), nil
}

func (e *Emitter) llvmType(t *kt.Type) types.Type {
	if t == nil {
		return types.Void
	}
	switch t.Kind {
	case kt.Bool:
		return types.I1
	case kt.SignedInt, kt.UnsignedInt:
		return types.NewInt(uint64(t.Width))
	case kt.Enum:
		return e.llvmType(t.Elem)
	case kt.Reference:
		return types.NewPointer(e.llvmType(t.Elem))
	default:
		return types.Void
	}
}

func (e *Emitter) declareFunc(fn *mir.Function) {
	retType := e.llvmType(fn.RetType)
	name := fn.Name
	if name == "main" {
		// spec.md §9 Open Questions: "the emitted IR declares define i32
		// @main(i32 %0, i32** %1) unused" — mirrored verbatim (i32**, not
		// the conventional i8** argv) for linker compatibility; the
		// parameters are never read.
		argv := types.NewPointer(types.NewPointer(types.I32))
		lf := e.module.NewFunc("main", types.I32, ir.NewParam("", types.I32), ir.NewParam("", argv))
		e.fns[name] = lf
		return
	}
	lf := e.module.NewFunc(name, retType)
	e.fns[name] = lf
}

func (e *Emitter) declarePrintf() {
	fn := e.module.NewFunc("printf", types.I32, ir.NewParam("", types.NewPointer(types.I8)))
	fn.Sig.Variadic = true
	e.fns["printf"] = fn
}

// attachDebugInfo emits the module-level debug metadata spec.md §4.4 always
// requires: a DIFile, a DICompileUnit tagged DW_LANG_C, and the "Debug Info
// Version" module flag.
func (e *Emitter) attachDebugInfo() {
	diFile := e.module.NewMetadataDef("", &metadata.DIFile{
		Filename: e.file,
	})
	e.module.NewMetadataDef("", &metadata.DICompileUnit{
		Language: enum.DwarfLangC,
		File:     diFile,
		Producer: "kestrel",
	})
	e.module.ModuleFlags = append(e.module.ModuleFlags, &ir.ModuleFlag{
		Name:  "Debug Info Version",
		Value: constant.NewInt(types.I32, 3),
	})
}

func (e *Emitter) emitFunc(fn *mir.Function) error {
	lf, ok := e.fns[fn.Name]
	if !ok {
		return icompiler.New(fmt.Sprintf("function %q was not predeclared", fn.Name))
	}
	e.f = fn
	e.fn = lf
	e.values = map[int]value.Value{}
	e.slots = map[string]*ir.InstAlloca{}
	e.blockOf = map[int]*ir.Block{}

	entry := lf.NewBlock("entry")
	e.allocateLocals(entry)

	cur, err := e.emitRange(entry, 0, len(fn.Instrs))
	if err != nil {
		return err
	}

	if cur.Term == nil {
		if fn.Name == "main" {
			cur.NewRet(constant.NewInt(types.I32, 0))
		} else {
			cur.NewRet(nil)
		}
	}
	return nil
}

// allocateLocals hoists every Declare's stack slot to the entry block
// (spec.md §4.4: "Declare allocates stack space ... once, at the function
// entry block").
func (e *Emitter) allocateLocals(entry *ir.Block) {
	for _, instr := range e.f.Instrs {
		if instr.Op != mir.OpDeclare {
			continue
		}
		if _, ok := e.slots[instr.Name]; ok {
			continue
		}
		slot := entry.NewAlloca(e.llvmType(instr.Type))
		slot.SetName(instr.Name)
		e.slots[instr.Name] = slot
	}
}

// emitRange walks instructions [start, end), descending into grouped
// if/elif/else arm blocks as real conditional branches rather than
// emitting their bodies linearly (spec.md §4.1 "Block policy", §4.4).
func (e *Emitter) emitRange(cur *ir.Block, start, end int) (*ir.Block, error) {
	i := start
	for i < end {
		if blk, ok := e.blockStartingAt(i); ok {
			next, err := e.emitGroup(cur, blk.GroupID)
			if err != nil {
				return nil, err
			}
			cur = next
			i = e.groupEnd(blk.GroupID)
			continue
		}
		var err error
		cur, i, err = e.emitInstr(cur, i)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func (e *Emitter) blockStartingAt(idx int) (mir.Block, bool) {
	for _, b := range e.f.Blocks {
		if b.Start == idx && b.GroupID != 0 {
			return b, true
		}
	}
	return mir.Block{}, false
}

func (e *Emitter) siblingsOf(groupID int) []mir.Block {
	var out []mir.Block
	for _, b := range e.f.Blocks {
		if b.GroupID == groupID {
			out = append(out, b)
		}
	}
	return out
}

func (e *Emitter) groupEnd(groupID int) int {
	sibs := e.siblingsOf(groupID)
	return sibs[len(sibs)-1].End
}

// groupHasElse reports whether some downstream Phi references one of this
// group's blocks — exactly the value-producing if/elif/else shape, which
// lowerIf only permits with a trailing else (E024 otherwise). A statement
// `if`, with or without an else, has no such Phi; emitGroup then joins its
// arms at a synthesized merge block.
func (e *Emitter) groupHasElse(groupID int) bool {
	for _, instr := range e.f.Instrs {
		if instr.Op != mir.OpPhi {
			continue
		}
		for _, inc := range instr.Incoming {
			if e.f.Blocks[inc.Block].GroupID == groupID {
				return true
			}
		}
	}
	return false
}

// emitGroup lowers one if/elif/else sibling group to real conditional
// branches. Each arm's body is emitted into its own block; the block it
// ends in (which may differ from the one it started in, if the arm itself
// branches) is recorded in blockOf for the Phi that follows to consume.
func (e *Emitter) emitGroup(cur *ir.Block, groupID int) (*ir.Block, error) {
	siblings := e.siblingsOf(groupID)
	hasElse := e.groupHasElse(groupID)

	llBlocks := make([]*ir.Block, len(siblings))
	for k := range siblings {
		llBlocks[k] = e.fn.NewBlock("")
	}

	var merge *ir.Block
	if !hasElse {
		merge = e.fn.NewBlock("")
	}

	condCursor := cur
	prevEnd := siblings[0].Start
	for k, sib := range siblings {
		// An if/elif arm is preceded by its condition's instructions; an
		// else arm starts exactly where the previous arm ended.
		isConditionArm := k == 0 || sib.Start > prevEnd

		// Each arm after the first re-evaluates its own condition in the
		// gap between the previous arm's block and this one (lowerIf calls
		// lowerExprValue(arm.Cond) again right before StartArmBlock); that
		// gap sits outside every sibling's [Start,End) range, so it must be
		// emitted into the block reached when the prior conditions failed
		// before this arm's branch can reference its value.
		if k > 0 {
			next, err := e.emitRange(condCursor, prevEnd, sib.Start)
			if err != nil {
				return nil, err
			}
			condCursor = next
		}
		prevEnd = sib.End

		if isConditionArm {
			cond := e.values[sib.Start-1]
			var onFalse *ir.Block
			if k+1 < len(siblings) {
				onFalse = e.fn.NewBlock("")
			} else {
				onFalse = merge
			}
			condCursor.NewCondBr(cond, llBlocks[k], onFalse)
			condCursor = onFalse
		} else {
			condCursor.NewBr(llBlocks[k])
		}

		armEnd, err := e.emitRange(llBlocks[k], sib.Start, sib.End)
		if err != nil {
			return nil, err
		}
		e.blockOf[sib.Start] = armEnd
		if !hasElse && armEnd.Term == nil {
			armEnd.NewBr(merge)
		}
	}

	if hasElse {
		return cur, nil
	}
	return merge, nil
}

func (e *Emitter) emitInstr(cur *ir.Block, idx int) (*ir.Block, int, error) {
	instr := e.f.Instrs[idx]
	switch instr.Op {
	case mir.OpConstBool:
		b := int64(0)
		if instr.BoolVal {
			b = 1
		}
		e.values[idx] = constant.NewInt(types.I1, b)

	case mir.OpConstInt:
		e.values[idx] = constant.NewInt(e.llvmType(instr.Type).(*types.IntType), instr.IntVal)

	case mir.OpDeclare:
		// Slot already allocated by allocateLocals; nothing to emit here.

	case mir.OpStore:
		slot := e.slots[instr.Name]
		cur.NewStore(e.values[instr.Operands[0]], slot)

	case mir.OpLoad:
		slot := e.slots[instr.Name]
		e.values[idx] = cur.NewLoad(e.llvmType(instr.Type), slot)

	case mir.OpCopy:
		e.values[idx] = e.values[instr.Operands[0]]

	case mir.OpReference:
		e.values[idx] = e.slots[instr.Name]

	case mir.OpDeref:
		e.values[idx] = cur.NewLoad(e.llvmType(instr.Type), e.values[instr.Operands[0]])

	case mir.OpAdd:
		return e.emitAdd(cur, idx, instr)

	case mir.OpEq:
		e.values[idx] = cur.NewICmp(enum.IPredEQ, e.values[instr.Operands[0]], e.values[instr.Operands[1]])

	case mir.OpNe:
		e.values[idx] = cur.NewICmp(enum.IPredNE, e.values[instr.Operands[0]], e.values[instr.Operands[1]])

	case mir.OpCallFunction:
		callee, ok := e.fns[instr.Name]
		if !ok {
			return nil, 0, icompiler.New(fmt.Sprintf("call to undeclared function %q", instr.Name))
		}
		e.values[idx] = cur.NewCall(callee)

	case mir.OpReturn:
		return e.emitReturn(cur, idx, instr)

	case mir.OpPhi:
		return e.emitPhi(cur, idx, instr)
	}
	return cur, idx + 1, nil
}

func (e *Emitter) emitReturn(cur *ir.Block, idx int, instr mir.Instruction) (*ir.Block, int, error) {
	var v value.Value
	if len(instr.Operands) > 0 {
		v = e.values[instr.Operands[0]]
	}
	if e.f.Name == "main" {
		// spec.md §4.4: main's return is always replaced by `ret i32 0`
		// after evaluating its operand for side effects.
		cur.NewRet(constant.NewInt(types.I32, 0))
	} else {
		cur.NewRet(v)
	}
	return cur, idx + 1, nil
}

// emitPhi materializes the already-emitted arm blocks' terminators (each
// arm falls through to this join point) and builds the LLVM phi over their
// values.
func (e *Emitter) emitPhi(cur *ir.Block, idx int, instr mir.Instruction) (*ir.Block, int, error) {
	join := e.fn.NewBlock("")
	var incs []*ir.Incoming
	for _, inc := range instr.Incoming {
		armBlock := e.blockOf[e.f.Blocks[inc.Block].Start]
		if armBlock == nil {
			armBlock = cur
		}
		if armBlock.Term == nil {
			armBlock.NewBr(join)
		}
		incs = append(incs, ir.NewIncoming(e.values[inc.Value], armBlock))
	}
	phi := join.NewPhi(incs...)
	e.values[idx] = phi
	return join, idx + 1, nil
}

// emitAdd wraps integer addition in the checked intrinsic policy of
// spec.md §4.4, unless -fno-ou-checks (Flags.NoOverflowChecks) is set.
func (e *Emitter) emitAdd(cur *ir.Block, idx int, instr mir.Instruction) (*ir.Block, int, error) {
	lhs, rhs := e.values[instr.Operands[0]], e.values[instr.Operands[1]]

	if e.flags.NoOverflowChecks {
		e.values[idx] = cur.NewAdd(lhs, rhs)
		return cur, idx + 1, nil
	}

	signed := instr.Type.Kind == kt.SignedInt
	width := instr.Type.Width
	intrin := e.overflowIntrinsic(width, signed)

	call := cur.NewCall(intrin, lhs, rhs)
	result := cur.NewExtractValue(call, 0)
	overflow := cur.NewExtractValue(call, 1)
	expected := e.expectIntrinsic()
	expectCall := cur.NewCall(expected, overflow, constant.False)

	okBlock := e.fn.NewBlock("")
	errBlock := e.fn.NewBlock("")
	joinBlock := e.fn.NewBlock("")
	cur.NewCondBr(expectCall, errBlock, okBlock)

	msg := fmt.Sprintf("Error: %s addition overflow!\n    %s:%d:%d\n", instr.Type, e.file, instr.Span.Start.Line, instr.Span.Start.Col)
	fmtPtr := e.globalString(msg)
	errBlock.NewCall(e.fns["printf"], fmtPtr)
	errBlock.NewBr(joinBlock)
	okBlock.NewBr(joinBlock)

	sentinel := sentinelFor(instr.Type)
	phi := joinBlock.NewPhi(ir.NewIncoming(result, okBlock), ir.NewIncoming(sentinel, errBlock))
	e.values[idx] = phi
	return joinBlock, idx + 1, nil
}

func sentinelFor(t *kt.Type) constant.Constant {
	bits := uint64(t.Width)
	if t.Kind == kt.SignedInt {
		return constant.NewInt(types.NewInt(bits), -1)
	}
	max := int64(-1) // all-ones bit pattern, interpreted unsigned by the IR
	return constant.NewInt(types.NewInt(bits), max)
}

func (e *Emitter) overflowIntrinsic(width int, signed bool) *ir.Func {
	kind := "u"
	if signed {
		kind = "s"
	}
	// spec.md §4.4/§8 scenario 1 call for the doubled type suffix
	// (llvm.sadd.with.overflow.i32.i32); real LLVM mangles this intrinsic
	// with a single suffix, but the doubled form is the literal testable
	// property, so it is mirrored verbatim here (DESIGN.md Open Questions).
	name := fmt.Sprintf("llvm.%sadd.with.overflow.i%d.i%d", kind, width, width)
	if fn, ok := e.intrins[name]; ok {
		return fn
	}
	it := types.NewInt(uint64(width))
	structTy := types.NewStruct(it, types.I1)
	fn := e.module.NewFunc(name, structTy, ir.NewParam("", it), ir.NewParam("", it))
	e.intrins[name] = fn
	return fn
}

func (e *Emitter) expectIntrinsic() *ir.Func {
	const name = "llvm.expect.i1.i1"
	if fn, ok := e.intrins[name]; ok {
		return fn
	}
	fn := e.module.NewFunc(name, types.I1, ir.NewParam("", types.I1), ir.NewParam("", types.I1))
	e.intrins[name] = fn
	return fn
}

func (e *Emitter) globalString(s string) *constant.GetElementPtr {
	g, ok := e.strings[s]
	if !ok {
		data := constant.NewCharArrayFromString(s + "\x00")
		g = e.module.NewGlobalDef(fmt.Sprintf(".str.%d", len(e.strings)), data)
		e.strings[s] = g
	}
	zero := constant.NewInt(types.I64, 0)
	return constant.NewGetElementPtr(g.ContentType, g, zero, zero)
}
