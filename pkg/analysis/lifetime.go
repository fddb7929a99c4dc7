// Package analysis implements the lifetime/ownership pass (spec.md §4.2)
// and the borrow pass (spec.md §4.3) that run over lowered MIR before
// codegen.
package analysis

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/pkg/diag"
	"github.com/kestrel-lang/kestrel/pkg/mir"
	"github.com/kestrel-lang/kestrel/pkg/token"
	"github.com/kestrel-lang/kestrel/pkg/types"
)

// ownerState is a binding's ownership state (spec.md §4.2 point 2).
type ownerState int

const (
	stateUninit ownerState = iota
	stateLive
	stateMoved
)

type lifetimeError struct{ d *diag.Diagnostic }

func (e *lifetimeError) Error() string { return e.d.Error() }

// lifetimePass holds the forward-scan state for one function.
type lifetimePass struct {
	file     string
	f        *mir.Function
	state    map[string]ownerState
	moveIdx  map[string]int
	moveSpan map[string]token.Span
	lastUse  map[string]int
}

// RunLifetimePass validates ownership and reference-escape invariants for
// every function in prog, annotating each function's Lifetimes map as it
// goes. It returns the diagnostics raised, in source order, continuing to
// the next function after the first violation in any one function
// (spec.md §5).
func RunLifetimePass(file string, prog *mir.Program) []*diag.Diagnostic {
	var diags []*diag.Diagnostic
	for _, fn := range prog.Functions {
		if d := runLifetimeOnFunction(file, fn); d != nil {
			diags = append(diags, d)
		}
	}
	return diags
}

func runLifetimeOnFunction(file string, f *mir.Function) (err *diag.Diagnostic) {
	p := &lifetimePass{
		file:     file,
		f:        f,
		state:    map[string]ownerState{},
		moveIdx:  map[string]int{},
		moveSpan: map[string]token.Span{},
		lastUse:  map[string]int{},
	}

	defer func() {
		if r := recover(); r != nil {
			if le, ok := r.(*lifetimeError); ok {
				err = le.d
				return
			}
			panic(r)
		}
	}()

	p.walk(0, len(f.Instrs))

	for name, idx := range p.lastUse {
		if lt, ok := f.Lifetimes[name]; ok {
			lt.LastUseIdx = idx
		}
	}
	return nil
}

func (p *lifetimePass) fail(code diag.Code, span token.Span, secondary *token.Span, label, format string, args ...any) {
	panic(&lifetimeError{d: &diag.Diagnostic{
		Code: code, Summary: fmt.Sprintf(format, args...), File: p.file,
		Primary: span, Secondary: secondary, SecondaryLabel: label,
	}})
}

func (p *lifetimePass) blockStartingAt(idx int) (mir.Block, bool) {
	for _, b := range p.f.Blocks {
		if b.Start == idx && b.GroupID != 0 {
			return b, true
		}
	}
	return mir.Block{}, false
}

func (p *lifetimePass) siblingsOf(groupID int) []mir.Block {
	var out []mir.Block
	for _, b := range p.f.Blocks {
		if b.GroupID == groupID {
			out = append(out, b)
		}
	}
	return out
}

func (p *lifetimePass) snapshot() map[string]ownerState {
	out := make(map[string]ownerState, len(p.state))
	for k, v := range p.state {
		out[k] = v
	}
	return out
}

func (p *lifetimePass) restore(snap map[string]ownerState) {
	p.state = make(map[string]ownerState, len(snap))
	for k, v := range snap {
		p.state[k] = v
	}
}

// walk processes instructions [start, end), recursing into sibling arm
// groups so moves on one branch don't leak into another (spec.md §4.2
// "Branch-aware move tracking").
func (p *lifetimePass) walk(start, end int) {
	i := start
	for i < end {
		if blk, ok := p.blockStartingAt(i); ok {
			siblings := p.siblingsOf(blk.GroupID)
			pre := p.snapshot()

			type moved struct {
				idx  int
				span token.Span
			}
			union := map[string]moved{}

			for _, sib := range siblings {
				p.restore(pre)
				p.walk(sib.Start, sib.End)
				for name, st := range p.state {
					if st != stateMoved {
						continue
					}
					if preSt, ok := pre[name]; ok && preSt == stateMoved {
						continue
					}
					if existing, ok := union[name]; !ok || p.moveIdx[name] < existing.idx {
						union[name] = moved{idx: p.moveIdx[name], span: p.moveSpan[name]}
					}
				}
			}

			p.restore(pre)
			for name, m := range union {
				p.state[name] = stateMoved
				p.moveIdx[name] = m.idx
				p.moveSpan[name] = m.span
			}

			last := siblings[len(siblings)-1]
			i = last.End
			continue
		}
		p.processInstr(i)
		i++
	}
}

func (p *lifetimePass) touch(name string, idx int) {
	p.lastUse[name] = idx
}

func (p *lifetimePass) processInstr(idx int) {
	instr := p.f.Instrs[idx]
	switch instr.Op {
	case mir.OpDeclare:
		p.f.Lifetimes[instr.Name] = &mir.Lifetime{DeclareIdx: idx, LastUseIdx: idx}
		p.state[instr.Name] = stateLive
		p.touch(instr.Name, idx)

	case mir.OpStore:
		p.state[instr.Name] = stateLive
		p.touch(instr.Name, idx)

	case mir.OpLoad:
		if p.state[instr.Name] == stateMoved {
			sp := p.moveSpan[instr.Name]
			p.fail(diag.EUseAfterMove, instr.Span, &sp, "moved here",
				"use of %q after it was moved", instr.Name)
		}
		p.touch(instr.Name, idx)

		consumed := true
		if idx+1 < len(p.f.Instrs) {
			next := p.f.Instrs[idx+1]
			if next.Op == mir.OpCopy && len(next.Operands) > 0 && next.Operands[0] == idx {
				consumed = false
			}
		}
		if consumed {
			p.state[instr.Name] = stateMoved
			p.moveIdx[instr.Name] = idx
			p.moveSpan[instr.Name] = instr.Span
		}

	case mir.OpReference:
		if p.state[instr.Name] == stateMoved {
			sp := p.moveSpan[instr.Name]
			p.fail(diag.EUseAfterMove, instr.Span, &sp, "moved here",
				"cannot reference %q after it was moved", instr.Name)
		}
		p.touch(instr.Name, idx)
		if instr.FoldedVia != "" {
			// The fold reads through this binding without emitting a Load
			// for it; touch it too so its reference stays live past this
			// point (spec.md §8.3 — see borrow.go's use of LastUseIdx).
			p.touch(instr.FoldedVia, idx)
		}

	case mir.OpReturn:
		if len(instr.Operands) > 0 {
			operand := p.f.Instrs[instr.Operands[0]]
			if operand.Type != nil && operand.Type.Kind == types.Reference {
				p.fail(diag.EValueNotLongEnough, instr.Span, nil, "",
					"reference does not live long enough to be returned")
			}
		}

	case mir.OpPhi:
		for _, inc := range instr.Incoming {
			val := p.f.Instrs[inc.Value]
			if val.Type == nil || val.Type.Kind != types.Reference {
				continue
			}
			referent := val.Name
			lt, ok := p.f.Lifetimes[referent]
			armStart := p.f.Blocks[inc.Block].Start
			if !ok || lt.DeclareIdx >= armStart {
				p.fail(diag.EValueNotLongEnough, val.Span, nil, "",
					"reference does not live long enough: referent %q does not outlive its arm", referent)
			}
		}
	}
}
