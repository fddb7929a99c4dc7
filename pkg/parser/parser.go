// Package parser turns a Kestrel token stream into an AST (spec.md §6
// grammar).
package parser

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/pkg/ast"
	"github.com/kestrel-lang/kestrel/pkg/diag"
	"github.com/kestrel-lang/kestrel/pkg/lexer"
	"github.com/kestrel-lang/kestrel/pkg/token"
)

// Parser is a single-pass recursive-descent parser over a pre-lexed token
// stream; it never backtracks.
type Parser struct {
	toks []token.Token
	pos  int
	file string
}

// New constructs a Parser over src, lexing it eagerly.
func New(file, src string) *Parser {
	return &Parser{toks: lexer.All(src), file: file}
}

// parseError is the internal signal for E001; ParseProgram converts it to a
// *diag.Diagnostic at the top level.
type parseError struct {
	d *diag.Diagnostic
}

func (e *parseError) Error() string { return e.d.Error() }

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k token.Kind) token.Token {
	t := p.cur()
	if t.Kind != k {
		panic(&parseError{d: &diag.Diagnostic{
			Code:    diag.EParse,
			Summary: fmt.Sprintf("expected %s, got %s", k, t.Kind),
			File:    p.file,
			Primary: t.Span,
		}})
	}
	return p.advance()
}

func (p *Parser) fail(span token.Span, format string, args ...any) {
	panic(&parseError{d: &diag.Diagnostic{
		Code:    diag.EParse,
		Summary: fmt.Sprintf(format, args...),
		File:    p.file,
		Primary: span,
	}})
}

// ParseProgram parses the whole token stream. Parse errors are returned as
// *diag.Diagnostic (E001); they never panic out of this call.
func (p *Parser) ParseProgram() (prog *ast.Program, err *diag.Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(*parseError); ok {
				prog = nil
				err = pe.d
				return
			}
			panic(r)
		}
	}()

	prog = &ast.Program{}
	for p.cur().Kind != token.EOF {
		switch p.cur().Kind {
		case token.KwFn:
			prog.Functions = append(prog.Functions, p.parseFunction())
		case token.KwEnum:
			prog.Enums = append(prog.Enums, p.parseEnum())
		default:
			p.fail(p.cur().Span, "expected fn or enum, got %s", p.cur().Kind)
		}
	}
	return prog, nil
}

func (p *Parser) parseFunction() *ast.Function {
	start := p.expect(token.KwFn).Span
	name := p.expect(token.Ident).Literal
	p.expect(token.LParen)
	var params []ast.Param
	for p.cur().Kind != token.RParen {
		pname := p.expect(token.Ident).Literal
		p.expect(token.Colon)
		ptype := p.parseTypeExpr()
		params = append(params, ast.Param{Name: pname, Type: ptype})
		if p.cur().Kind == token.Comma {
			p.advance()
		}
	}
	p.expect(token.RParen)
	body := p.parseBlock()
	return &ast.Function{Name: name, Params: params, Body: body, Span: token.Span{Start: start.Start, End: body.Span.End}}
}

func (p *Parser) parseEnum() *ast.EnumDecl {
	start := p.expect(token.KwEnum).Span
	name := p.expect(token.Ident).Literal
	p.expect(token.LCurly)
	var variants []string
	for p.cur().Kind != token.RCurly {
		variants = append(variants, p.expect(token.Ident).Literal)
		if p.cur().Kind == token.Comma {
			p.advance()
		}
	}
	end := p.expect(token.RCurly).Span
	return &ast.EnumDecl{Name: name, Variants: variants, Span: token.Span{Start: start.Start, End: end.End}}
}

func (p *Parser) parseTypeExpr() *ast.TypeExpr {
	start := p.cur().Span
	if p.cur().Kind == token.Amp {
		p.advance()
		inner := p.parseTypeExpr()
		return &ast.TypeExpr{Ref: inner, Span: token.Span{Start: start.Start, End: inner.Span.End}}
	}
	t := p.expect(token.Ident)
	return &ast.TypeExpr{Name: t.Literal, Span: t.Span}
}

func (p *Parser) parseBlock() *ast.Block {
	start := p.expect(token.LCurly).Span
	var stmts []ast.Stmt
	for p.cur().Kind != token.RCurly {
		stmts = append(stmts, p.parseStmt())
	}
	end := p.expect(token.RCurly).Span
	return &ast.Block{Stmts: stmts, Span: token.Span{Start: start.Start, End: end.End}}
}

func (p *Parser) parseStmt() ast.Stmt {
	switch p.cur().Kind {
	case token.KwLet:
		return p.parseLet()
	case token.KwReturn:
		return p.parseReturn()
	default:
		e := p.parseExpr()
		return &ast.ExprStmt{Value: e, SpanVal: e.Span()}
	}
}

func (p *Parser) parseLet() *ast.LetStmt {
	start := p.expect(token.KwLet).Span
	mut := false
	if p.cur().Kind == token.KwMut {
		p.advance()
		mut = true
	}
	name := p.expect(token.Ident).Literal
	var declared *ast.TypeExpr
	if p.cur().Kind == token.Colon {
		p.advance()
		declared = p.parseTypeExpr()
	}
	p.expect(token.Eq)
	val := p.parseExpr()
	return &ast.LetStmt{Name: name, Mut: mut, Declared: declared, Value: val, SpanVal: token.Span{Start: start.Start, End: val.Span().End}}
}

func (p *Parser) parseReturn() *ast.ReturnStmt {
	start := p.expect(token.KwReturn).Span
	val := p.parseExpr()
	return &ast.ReturnStmt{Value: val, SpanVal: token.Span{Start: start.Start, End: val.Span().End}}
}

func (p *Parser) parseExpr() ast.Expr {
	switch p.cur().Kind {
	case token.KwIf:
		return p.parseIf()
	default:
		return p.parseBinary()
	}
}

func (p *Parser) parseIf() *ast.IfExpr {
	start := p.cur().Span
	var arms []ast.IfArm
	p.expect(token.KwIf)
	cond := p.parseBinary()
	body := p.parseBlock()
	arms = append(arms, ast.IfArm{Cond: cond, Body: body})

	end := body.Span
	for p.cur().Kind == token.KwElif {
		p.advance()
		c := p.parseBinary()
		b := p.parseBlock()
		arms = append(arms, ast.IfArm{Cond: c, Body: b})
		end = b.Span
	}

	var elseBlock *ast.Block
	if p.cur().Kind == token.KwElse {
		p.advance()
		elseBlock = p.parseBlock()
		end = elseBlock.Span
	}

	return &ast.IfExpr{Arms: arms, Else: elseBlock, SpanVal: token.Span{Start: start.Start, End: end.End}}
}

func (p *Parser) parseBinary() ast.Expr {
	left := p.parseUnary()
	for {
		var op ast.BinOpKind
		switch p.cur().Kind {
		case token.Plus:
			op = ast.Add
		case token.EqEq:
			op = ast.Eq
		case token.BangEq:
			op = ast.Ne
		default:
			return left
		}
		p.advance()
		right := p.parseUnary()
		left = &ast.BinExpr{Op: op, Left: left, Right: right, SpanVal: token.Span{Start: left.Span().Start, End: right.Span().End}}
	}
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.cur().Kind {
	case token.Amp:
		start := p.advance().Span
		inner := p.parseUnary()
		return &ast.RefExpr{Target: inner, SpanVal: token.Span{Start: start.Start, End: inner.Span().End}}
	case token.Star:
		start := p.advance().Span
		inner := p.parseUnary()
		return &ast.DerefExpr{Target: inner, SpanVal: token.Span{Start: start.Start, End: inner.Span().End}}
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	t := p.cur()
	switch t.Kind {
	case token.Int:
		p.advance()
		var v int64
		fmt.Sscanf(t.Literal, "%d", &v)
		return &ast.IntLit{Value: v, SpanVal: t.Span}
	case token.Char:
		p.advance()
		var v int64
		if len(t.Literal) > 0 {
			v = int64(t.Literal[0])
		}
		return &ast.IntLit{Value: v, SpanVal: t.Span}
	case token.KwTrue:
		p.advance()
		return &ast.BoolLit{Value: true, SpanVal: t.Span}
	case token.KwFalse:
		p.advance()
		return &ast.BoolLit{Value: false, SpanVal: t.Span}
	case token.LParen:
		p.advance()
		inner := p.parseExpr()
		end := p.expect(token.RParen).Span
		return &ast.ParenExpr{Inner: inner, SpanVal: token.Span{Start: t.Span.Start, End: end.End}}
	case token.Ident:
		p.advance()
		if p.cur().Kind == token.ColonColon {
			p.advance()
			variant := p.expect(token.Ident)
			return &ast.EnumVariantExpr{Enum: t.Literal, Variant: variant.Literal, SpanVal: token.Span{Start: t.Span.Start, End: variant.Span.End}}
		}
		if p.cur().Kind == token.LParen {
			p.advance()
			end := p.expect(token.RParen).Span
			return &ast.CallExpr{Callee: t.Literal, SpanVal: token.Span{Start: t.Span.Start, End: end.End}}
		}
		return &ast.Ident{Name: t.Literal, SpanVal: t.Span}
	default:
		p.fail(t.Span, "expected expression, got %s", t.Kind)
		return nil
	}
}
