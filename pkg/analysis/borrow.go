package analysis

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/pkg/diag"
	"github.com/kestrel-lang/kestrel/pkg/mir"
	"github.com/kestrel-lang/kestrel/pkg/token"
)

type borrowError struct{ d *diag.Diagnostic }

func (e *borrowError) Error() string { return e.d.Error() }

// liveRef is one outstanding reference to a binding, tracked by the owning
// binding it was stored into and that binding's last use (spec.md §4.3).
type liveRef struct {
	owner   string
	span    token.Span
	through int
}

// RunBorrowPass enforces the single-live-reference invariant (spec.md
// §4.3) over every function in prog. The lifetime pass must have already
// run and populated each function's Lifetimes map.
func RunBorrowPass(file string, prog *mir.Program) []*diag.Diagnostic {
	var diags []*diag.Diagnostic
	for _, fn := range prog.Functions {
		if d := runBorrowOnFunction(file, fn); d != nil {
			diags = append(diags, d)
		}
	}
	return diags
}

func runBorrowOnFunction(file string, f *mir.Function) (err *diag.Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			if be, ok := r.(*borrowError); ok {
				err = be.d
				return
			}
			panic(r)
		}
	}()

	live := map[string][]liveRef{}

	for idx, instr := range f.Instrs {
		// Drop expired references before considering a new one, so a
		// reference's own last use frees its slot (spec.md §4.3: "a
		// reference's last-use removes it from the set").
		for referent, refs := range live {
			kept := refs[:0]
			for _, r := range refs {
				if r.through >= idx {
					kept = append(kept, r)
				}
			}
			live[referent] = kept
		}

		if instr.Op != mir.OpReference {
			continue
		}

		owner := ""
		if idx+1 < len(f.Instrs) && f.Instrs[idx+1].Op == mir.OpDeclare {
			owner = f.Instrs[idx+1].Name
		}
		through := idx
		if owner != "" {
			if lt, ok := f.Lifetimes[owner]; ok {
				through = lt.LastUseIdx
			}
		}

		entry := liveRef{owner: owner, span: instr.Span, through: through}
		existing := live[instr.Name]
		if len(existing) >= 1 {
			prev := existing[len(existing)-1]
			panic(&borrowError{d: &diag.Diagnostic{
				Code:           diag.EMultipleRefs,
				Summary:        fmt.Sprintf("multiple immutable references to %q", instr.Name),
				File:           file,
				Primary:        entry.span,
				Secondary:      &prev.span,
				SecondaryLabel: "first reference here",
			}})
		}
		live[instr.Name] = append(existing, entry)
	}
	return nil
}
