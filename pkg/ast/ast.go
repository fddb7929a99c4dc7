// Package ast defines Kestrel's expression-oriented abstract syntax tree, as
// produced by pkg/parser and consumed by the MIR lowerer.
package ast

import "github.com/kestrel-lang/kestrel/pkg/token"

// Program is a parsed compilation unit: an unordered set of functions and
// enum declarations (spec.md §6 grammar: `program := (function | enum-decl)*`).
type Program struct {
	Functions []*Function
	Enums     []*EnumDecl
}

// Function is a top-level `fn` declaration. The parser accepts `name: type`
// parameters and records them in Params, but the MIR lowerer does not
// lower them (spec.md §9 Open Questions
// notes the surface is unsettled on this point for `main`).
type Function struct {
	Name    string
	Params  []Param
	RetType *TypeExpr // nil when the body is statement-typed
	Body    *Block
	Span    token.Span
}

// Param is a (currently unused) function parameter.
type Param struct {
	Name string
	Type *TypeExpr
}

// EnumDecl is a user-declared closed set of variants with C-style
// discriminants (spec.md §3).
type EnumDecl struct {
	Name     string
	Variants []string
	Span     token.Span
}

// TypeExpr names a type from the closed universe described in spec.md §3.
// Reference types are represented by Ref wrapping the referent TypeExpr.
type TypeExpr struct {
	Name string    // "bool", "i8".."i128", "u8".."u128", or an enum name
	Ref  *TypeExpr // non-nil when this is "&T"
	Span token.Span
}

// Block is a brace-delimited sequence of statements, one lexical scope.
type Block struct {
	Stmts []Stmt
	Span  token.Span
}

// Stmt is the union of statement forms (spec.md §6: `statement := let-stmt |
// return-stmt | expr`).
type Stmt interface {
	stmtNode()
	Span() token.Span
}

// LetStmt is `let [mut] x = e`.
type LetStmt struct {
	Name    string
	Mut     bool
	Declared *TypeExpr // nil when the type is inferred from Value
	Value   Expr
	SpanVal token.Span
}

func (*LetStmt) stmtNode()          {}
func (s *LetStmt) Span() token.Span { return s.SpanVal }

// ReturnStmt is `return e`.
type ReturnStmt struct {
	Value   Expr
	SpanVal token.Span
}

func (*ReturnStmt) stmtNode()          {}
func (s *ReturnStmt) Span() token.Span { return s.SpanVal }

// ExprStmt is a bare expression used as a statement.
type ExprStmt struct {
	Value   Expr
	SpanVal token.Span
}

func (*ExprStmt) stmtNode()          {}
func (s *ExprStmt) Span() token.Span { return s.SpanVal }

// Expr is the union of expression forms (spec.md §3 "Expression").
type Expr interface {
	exprNode()
	Span() token.Span
}

// IntLit is an integer literal; Width/Signed are resolved by the type
// resolver from context (the declared/inferred type of its use site), not by
// the lexeme alone — the grammar has no numeric suffixes.
type IntLit struct {
	Value   int64
	SpanVal token.Span
}

func (*IntLit) exprNode()          {}
func (e *IntLit) Span() token.Span { return e.SpanVal }

// BoolLit is `true` or `false`.
type BoolLit struct {
	Value   bool
	SpanVal token.Span
}

func (*BoolLit) exprNode()          {}
func (e *BoolLit) Span() token.Span { return e.SpanVal }

// Ident is a binding load, e.g. `x`.
type Ident struct {
	Name    string
	SpanVal token.Span
}

func (*Ident) exprNode()          {}
func (e *Ident) Span() token.Span { return e.SpanVal }

// RefExpr is `&e`.
type RefExpr struct {
	Target  Expr
	SpanVal token.Span
}

func (*RefExpr) exprNode()          {}
func (e *RefExpr) Span() token.Span { return e.SpanVal }

// DerefExpr is `*e`.
type DerefExpr struct {
	Target  Expr
	SpanVal token.Span
}

func (*DerefExpr) exprNode()          {}
func (e *DerefExpr) Span() token.Span { return e.SpanVal }

// BinOpKind is one of `+`, `==`, `!=`.
type BinOpKind int

const (
	Add BinOpKind = iota
	Eq
	Ne
)

func (k BinOpKind) String() string {
	switch k {
	case Add:
		return "+"
	case Eq:
		return "=="
	case Ne:
		return "!="
	default:
		return "?"
	}
}

// BinExpr is `a <op> b`.
type BinExpr struct {
	Op      BinOpKind
	Left    Expr
	Right   Expr
	SpanVal token.Span
}

func (*BinExpr) exprNode()          {}
func (e *BinExpr) Span() token.Span { return e.SpanVal }

// CallExpr is `f()`; the current surface grammar never supplies arguments.
type CallExpr struct {
	Callee  string
	SpanVal token.Span
}

func (*CallExpr) exprNode()          {}
func (e *CallExpr) Span() token.Span { return e.SpanVal }

// EnumVariantExpr is `Enum::Variant`.
type EnumVariantExpr struct {
	Enum    string
	Variant string
	SpanVal token.Span
}

func (*EnumVariantExpr) exprNode()          {}
func (e *EnumVariantExpr) Span() token.Span { return e.SpanVal }

// BlockExpr wraps a Block used in expression position (the value of a block
// is the value of its last expression statement).
type BlockExpr struct {
	Body    *Block
	SpanVal token.Span
}

func (*BlockExpr) exprNode()          {}
func (e *BlockExpr) Span() token.Span { return e.SpanVal }

// IfArm is one `if`/`elif` condition-and-block pair.
type IfArm struct {
	Cond Expr
	Body *Block
}

// IfExpr is the full `if cond block (elif cond block)* (else block)?` chain.
// Else is nil when the chain has no trailing `else`; spec.md §4.1 requires
// callers lowering a value-producing `if` to reject a nil Else with E024.
type IfExpr struct {
	Arms    []IfArm
	Else    *Block
	SpanVal token.Span
}

func (*IfExpr) exprNode()          {}
func (e *IfExpr) Span() token.Span { return e.SpanVal }

// ParenExpr is `(e)`, kept distinct from its inner expression only long
// enough for the parser to disambiguate grammar; the lowerer unwraps it.
type ParenExpr struct {
	Inner   Expr
	SpanVal token.Span
}

func (*ParenExpr) exprNode()          {}
func (e *ParenExpr) Span() token.Span { return e.SpanVal }
