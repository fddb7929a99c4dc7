package mir

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/kestrel-lang/kestrel/pkg/ast"
	"github.com/kestrel-lang/kestrel/pkg/diag"
	"github.com/kestrel-lang/kestrel/pkg/token"
	"github.com/kestrel-lang/kestrel/pkg/types"
)

// EnumInfo is the resolved shape of a declared enum: its backing width and
// the C-style discriminant assigned to each variant, in declaration order.
type EnumInfo struct {
	Backing      *types.Type
	Type         *types.Type
	VariantIndex map[string]int
}

type bindingInfo struct {
	Type         *types.Type
	Mut          bool
	DeclareIdx   int
	ReferentName string // non-empty when Type.Kind == types.Reference
}

type lowerError struct{ d *diag.Diagnostic }

func (e *lowerError) Error() string { return e.d.Error() }

// Lowerer lowers a type-resolved AST program into MIR, one function at a
// time (spec.md §4.1).
type Lowerer struct {
	file    string
	enums   map[string]*EnumInfo
	funcRet map[string]*types.Type

	f          *Function
	scopes     []map[string]*bindingInfo
	tmpCounter int
	groupSeq   int
}

// NewLowerer builds a Lowerer for prog, resolving enum declarations and
// function return types up front so calls and variant constructors can be
// lowered in any order.
func NewLowerer(file string, prog *ast.Program) *Lowerer {
	l := &Lowerer{file: file, enums: map[string]*EnumInfo{}, funcRet: map[string]*types.Type{}}
	for _, e := range prog.Enums {
		backing := types.SmallestUnsignedFor(len(e.Variants))
		info := &EnumInfo{Backing: backing, Type: types.EnumType(e.Name, backing), VariantIndex: map[string]int{}}
		for i, v := range e.Variants {
			info.VariantIndex[v] = i
		}
		l.enums[e.Name] = info
	}
	for _, fn := range prog.Functions {
		if fn.RetType != nil {
			l.funcRet[fn.Name] = l.resolveTypeExpr(fn.RetType)
		}
	}
	return l
}

func (l *Lowerer) resolveTypeExpr(t *ast.TypeExpr) *types.Type {
	if t == nil {
		return nil
	}
	if t.Ref != nil {
		return types.RefTo(l.resolveTypeExpr(t.Ref))
	}
	if prim, ok := types.Lookup(t.Name); ok {
		return prim
	}
	if info, ok := l.enums[t.Name]; ok {
		return info.Type
	}
	return nil
}

// LowerProgram lowers every function in prog. Functions that fail to lower
// are skipped and their diagnostic is appended to diags; lowering continues
// to the next function (spec.md §5 pass-abort-per-function semantics).
func (l *Lowerer) LowerProgram(prog *ast.Program) (*Program, []*diag.Diagnostic) {
	out := &Program{}
	var diags []*diag.Diagnostic
	for _, fn := range prog.Functions {
		mf, d := l.lowerFunction(fn)
		if d != nil {
			diags = append(diags, d)
			continue
		}
		out.Functions = append(out.Functions, mf)
	}
	return out, diags
}

func (l *Lowerer) lowerFunction(fn *ast.Function) (mf *Function, err *diag.Diagnostic) {
	retType := l.resolveTypeExpr(fn.RetType)
	l.f = NewFunction(fn.Name, retType)
	l.scopes = []map[string]*bindingInfo{{}}
	l.tmpCounter = 0
	entry := l.f.StartBlock(nil)
	l.f.EntryBlock = entry

	defer func() {
		if r := recover(); r != nil {
			if le, ok := r.(*lowerError); ok {
				err = le.d
				return
			}
			panic(r)
		}
	}()

	for _, stmt := range fn.Body.Stmts {
		l.lowerStmt(stmt)
	}
	l.f.CloseBlock(entry)
	return l.f, nil
}

func (l *Lowerer) fail(code diag.Code, span token.Span, format string, args ...any) {
	panic(&lowerError{d: &diag.Diagnostic{Code: code, Summary: fmt.Sprintf(format, args...), File: l.file, Primary: span}})
}

func (l *Lowerer) pushScope() { l.scopes = append(l.scopes, map[string]*bindingInfo{}) }
func (l *Lowerer) popScope()  { l.scopes = l.scopes[:len(l.scopes)-1] }

func (l *Lowerer) declare(name string, info *bindingInfo) {
	l.scopes[len(l.scopes)-1][name] = info
}

func (l *Lowerer) lookup(name string) (*bindingInfo, bool) {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if info, ok := l.scopes[i][name]; ok {
			return info, true
		}
	}
	return nil, false
}

func (l *Lowerer) newTemp() string {
	l.tmpCounter++
	return fmt.Sprintf("%%tmp%d", l.tmpCounter)
}

func (l *Lowerer) lowerStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		var expected *types.Type
		if s.Declared != nil {
			expected = l.resolveTypeExpr(s.Declared)
		}
		valIdx, valType, referent := l.lowerExprValue(s.Value, expected)
		declIdx := l.f.Emit(Instruction{Op: OpDeclare, Name: s.Name, Mut: s.Mut, Type: valType, Span: s.SpanVal})
		l.f.Emit(Instruction{Op: OpStore, Name: s.Name, Operands: []int{valIdx}, Type: valType, Span: s.SpanVal})
		l.declare(s.Name, &bindingInfo{Type: valType, Mut: s.Mut, DeclareIdx: declIdx, ReferentName: referent})
	case *ast.ReturnStmt:
		idx, typ, _ := l.lowerExprValue(s.Value, nil)
		l.f.Emit(Instruction{Op: OpReturn, Operands: []int{idx}, Type: typ, Span: s.SpanVal})
	case *ast.ExprStmt:
		if ifExpr, ok := s.Value.(*ast.IfExpr); ok {
			l.lowerIf(ifExpr, false, nil)
			return
		}
		l.lowerExprValue(s.Value, nil)
	}
}

// lowerExprValue lowers e to a value-producing instruction, returning its
// index, resolved type, and (when typ is a reference) the referent binding
// name.
func (l *Lowerer) lowerExprValue(e ast.Expr, expected *types.Type) (idx int, typ *types.Type, referent string) {
	switch e := e.(type) {
	case *ast.ParenExpr:
		return l.lowerExprValue(e.Inner, expected)

	case *ast.IntLit:
		typ = expected
		if typ == nil || !typ.IsInteger() {
			typ = types.TI32
		}
		// An unsigned target rejects a literal that doesn't fit its backing
		// width; fortio's safecast catches this the way surge's HIR lowerer
		// validates literal-to-operand conversions (SPEC_FULL.md §6.3).
		if typ.Kind == types.UnsignedInt {
			var fitErr error
			switch typ.Width {
			case 8:
				_, fitErr = safecast.Conv[uint8](e.Value)
			case 16:
				_, fitErr = safecast.Conv[uint16](e.Value)
			case 32:
				_, fitErr = safecast.Conv[uint32](e.Value)
			default:
				_, fitErr = safecast.Conv[uint64](e.Value)
			}
			if fitErr != nil {
				l.fail(diag.ELiteralRange, e.SpanVal, "integer literal %d does not fit type %s", e.Value, typ)
			}
		}
		idx = l.f.Emit(Instruction{Op: OpConstInt, IntVal: e.Value, Type: typ, Span: e.SpanVal})
		return idx, typ, ""

	case *ast.BoolLit:
		idx = l.f.Emit(Instruction{Op: OpConstBool, BoolVal: e.Value, Type: types.TBool, Span: e.SpanVal})
		return idx, types.TBool, ""

	case *ast.Ident:
		info, ok := l.lookup(e.Name)
		if !ok {
			l.fail(diag.EParse, e.SpanVal, "use of undeclared binding %q", e.Name)
		}
		idx = l.f.Emit(Instruction{Op: OpLoad, Name: e.Name, Type: info.Type, Span: e.SpanVal})
		return idx, info.Type, info.ReferentName

	case *ast.RefExpr:
		referentName, via := l.resolveReferent(e.Target)
		info, ok := l.lookup(referentName)
		if !ok {
			l.fail(diag.EParse, e.SpanVal, "reference to undeclared binding %q", referentName)
		}
		refType := types.RefTo(info.Type)
		idx = l.f.Emit(Instruction{Op: OpReference, Name: referentName, FoldedVia: via, Type: refType, Span: e.SpanVal})
		return idx, refType, referentName

	case *ast.DerefExpr:
		innerIdx, innerType, _ := l.lowerExprValue(e.Target, nil)
		if innerType == nil || innerType.Kind != types.Reference {
			l.fail(diag.EDerefNonRef, e.SpanVal, "cannot dereference non-reference type %s", innerType)
		}
		idx = l.f.Emit(Instruction{Op: OpDeref, Operands: []int{innerIdx}, Type: innerType.Elem, Span: e.SpanVal})
		return idx, innerType.Elem, ""

	case *ast.BinExpr:
		lIdx, lTyp := l.lowerOperand(e.Left, expected)
		rIdx, _ := l.lowerOperand(e.Right, lTyp)
		var op Op
		var resType *types.Type
		switch e.Op {
		case ast.Add:
			op, resType = OpAdd, lTyp
		case ast.Eq:
			op, resType = OpEq, types.TBool
		case ast.Ne:
			op, resType = OpNe, types.TBool
		}
		idx = l.f.Emit(Instruction{Op: op, Operands: []int{lIdx, rIdx}, Type: resType, Span: e.SpanVal})
		return idx, resType, ""

	case *ast.CallExpr:
		retType := l.funcRet[e.Callee]
		idx = l.f.Emit(Instruction{Op: OpCallFunction, Name: e.Callee, Type: retType, Span: e.SpanVal})
		return idx, retType, ""

	case *ast.EnumVariantExpr:
		info, ok := l.enums[e.Enum]
		if !ok {
			l.fail(diag.EParse, e.SpanVal, "unknown enum %q", e.Enum)
		}
		variant, ok := info.VariantIndex[e.Variant]
		if !ok {
			l.fail(diag.EParse, e.SpanVal, "enum %q has no variant %q", e.Enum, e.Variant)
		}
		idx = l.f.Emit(Instruction{Op: OpConstInt, IntVal: int64(variant), Type: info.Type, Span: e.SpanVal})
		return idx, info.Type, ""

	case *ast.IfExpr:
		return l.lowerIf(e, true, expected)

	default:
		l.fail(diag.EParse, e.Span(), "unsupported expression")
		return 0, nil, ""
	}
}

// lowerOperand lowers an operand of Add/Eq/Ne. A bare identifier of
// copyable type is loaded and then duplicated with Copy, so the binding
// itself is not consumed by the binary op (spec.md §4.1 table, §3
// invariants).
func (l *Lowerer) lowerOperand(e ast.Expr, expected *types.Type) (int, *types.Type) {
	if ident, ok := e.(*ast.Ident); ok {
		info, ok := l.lookup(ident.Name)
		if !ok {
			l.fail(diag.EParse, ident.SpanVal, "use of undeclared binding %q", ident.Name)
		}
		loadIdx := l.f.Emit(Instruction{Op: OpLoad, Name: ident.Name, Type: info.Type, Span: ident.SpanVal})
		if info.Type.IsCopyable() {
			copyIdx := l.f.Emit(Instruction{Op: OpCopy, Operands: []int{loadIdx}, Type: info.Type, Span: ident.SpanVal})
			return copyIdx, info.Type
		}
		return loadIdx, info.Type
	}
	idx, typ, _ := l.lowerExprValue(e, expected)
	return idx, typ
}

// resolveReferent resolves the binding a `&e` ultimately refers to, folding
// `&&x` and `&y` (where y is itself a reference) into a single reference to
// the original referent (spec.md §3: "Taking &&x is one reference"). The
// second return value is the immediate reference-typed binding folded
// through, if any — e.g. "y" for `&y` — so its lifetime can be extended to
// this point even though the fold never emits a Load for it (spec.md §8.3).
func (l *Lowerer) resolveReferent(e ast.Expr) (string, string) {
	switch e := e.(type) {
	case *ast.ParenExpr:
		return l.resolveReferent(e.Inner)
	case *ast.RefExpr:
		return l.resolveReferent(e.Target)
	case *ast.Ident:
		if info, ok := l.lookup(e.Name); ok && info.Type != nil && info.Type.Kind == types.Reference {
			return info.ReferentName, e.Name
		}
		return e.Name, ""
	default:
		// Referencing a non-binding expression (e.g. a literal) materializes
		// a synthetic temporary in the current block so the reference has a
		// binding to point at; its lifetime is scoped to that block, which
		// is exactly what makes `if c { &1 } else { &2 }` escape-unsound.
		idx, typ, _ := l.lowerExprValue(e, nil)
		name := l.newTemp()
		declIdx := l.f.Emit(Instruction{Op: OpDeclare, Name: name, Type: typ, Span: e.Span()})
		l.f.Emit(Instruction{Op: OpStore, Name: name, Operands: []int{idx}, Type: typ, Span: e.Span()})
		l.declare(name, &bindingInfo{Type: typ, DeclareIdx: declIdx})
		return name, ""
	}
}

// lowerIf lowers an if/elif/else chain. wantValue distinguishes a
// value-producing conditional (requires else, spec.md §4.1 / E024) from a
// statement conditional.
func (l *Lowerer) lowerIf(e *ast.IfExpr, wantValue bool, expected *types.Type) (int, *types.Type, string) {
	if wantValue && e.Else == nil {
		l.fail(diag.EMissingElse, e.SpanVal, "conditional expression used as a value must have an else branch")
	}

	type armResult struct {
		block int
		value int
		typ   *types.Type
	}
	var results []armResult

	l.groupSeq++
	groupID := l.groupSeq

	for _, arm := range e.Arms {
		l.lowerExprValue(arm.Cond, types.TBool)
		blockIdx := l.f.StartArmBlock(groupID)
		l.pushScope()
		val, typ := l.lowerBlockBody(arm.Body, wantValue)
		l.popScope()
		l.f.CloseBlock(blockIdx)
		if wantValue {
			results = append(results, armResult{block: blockIdx, value: val, typ: typ})
		}
	}

	if e.Else != nil {
		blockIdx := l.f.StartArmBlock(groupID)
		l.pushScope()
		val, typ := l.lowerBlockBody(e.Else, wantValue)
		l.popScope()
		l.f.CloseBlock(blockIdx)
		if wantValue {
			results = append(results, armResult{block: blockIdx, value: val, typ: typ})
		}
	}

	if !wantValue {
		return 0, nil, ""
	}

	var incoming []Incoming
	var resultType *types.Type
	for _, r := range results {
		incoming = append(incoming, Incoming{Block: r.block, Value: r.value})
		if resultType == nil {
			resultType = r.typ
		}
	}
	idx := l.f.Emit(Instruction{Op: OpPhi, Type: resultType, Incoming: incoming, Span: e.SpanVal})
	return idx, resultType, ""
}

// lowerBlockBody lowers a block's statements; when wantValue is set, the
// last statement must be an expression statement and its value becomes the
// block's value (spec.md §4.1: "the value of an arm is the last
// instruction's produced value").
func (l *Lowerer) lowerBlockBody(b *ast.Block, wantValue bool) (int, *types.Type) {
	lastValue, lastType := -1, (*types.Type)(nil)
	for i, stmt := range b.Stmts {
		if es, ok := stmt.(*ast.ExprStmt); ok && i == len(b.Stmts)-1 {
			lastValue, lastType, _ = l.lowerExprValue(es.Value, nil)
			continue
		}
		l.lowerStmt(stmt)
	}
	if wantValue && lastValue < 0 {
		l.fail(diag.EMissingElse, b.Span, "block used as a value must end with an expression")
	}
	return lastValue, lastType
}
