// Package mirdump renders a mir.Program as stable, human-readable text for
// the --emit-mir flag (SPEC_FULL.md §7 "Supplemented Features"). It is not
// consumed by any other pass; it exists purely as a debugging aid, matching
// the one-line-per-instruction ledger style spec.md's worked examples use.
package mirdump

import (
	"fmt"
	"io"

	"github.com/kestrel-lang/kestrel/pkg/mir"
)

// Write renders every function in prog to w, one line per instruction
// followed by one line per block. Declare lines carry the binding's last-use
// index as recorded by the lifetime pass; move state is not shown.
func Write(w io.Writer, prog *mir.Program) error {
	for _, fn := range prog.Functions {
		if err := writeFunc(w, fn); err != nil {
			return err
		}
	}
	return nil
}

func writeFunc(w io.Writer, fn *mir.Function) error {
	if _, err := fmt.Fprintf(w, "fn %s:\n", fn.Name); err != nil {
		return err
	}
	for idx, instr := range fn.Instrs {
		if err := writeInstr(w, fn, idx, instr); err != nil {
			return err
		}
	}
	for _, b := range fn.Blocks {
		if _, err := fmt.Fprintf(w, "  block[%d,%d) group=%d preds=%v\n", b.Start, b.End, b.GroupID, b.Preds); err != nil {
			return err
		}
	}
	return nil
}

func writeInstr(w io.Writer, fn *mir.Function, idx int, instr mir.Instruction) error {
	line := fmt.Sprintf("  %%%d = %s", idx, instr.Op)
	if instr.Name != "" {
		line += fmt.Sprintf(" %s", instr.Name)
	}
	if len(instr.Operands) > 0 {
		line += fmt.Sprintf(" %v", instr.Operands)
	}
	if instr.Type != nil {
		line += fmt.Sprintf(" : %s", instr.Type)
	}
	if instr.FoldedVia != "" {
		line += fmt.Sprintf(" via=%s", instr.FoldedVia)
	}
	if lt, ok := fn.Lifetimes[instr.Name]; ok && instr.Op == mir.OpDeclare {
		moved := ""
		if lt.LastUseIdx < idx {
			moved = " unused"
		}
		line += fmt.Sprintf(" last_use=%d%s", lt.LastUseIdx, moved)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
