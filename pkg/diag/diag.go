// Package diag renders Kestrel's stable, code-bearing diagnostics (spec.md
// §4.5, §7). Diagnostics are a distinct type from error, never a bare
// `error` value carrying ad hoc text — see SPEC_FULL.md §5.3.
package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/kestrel-lang/kestrel/pkg/token"
)

// Code is one of the stable E<NNN> identifiers from spec.md §4.5.
type Code string

const (
	EParse            Code = "E001"
	EUseAfterMove      Code = "E007"
	EMultipleRefs      Code = "E009"
	EDerefNonRef       Code = "E018"
	EValueNotLongEnough Code = "E023"
	EMissingElse       Code = "E024"

	// ELiteralRange is a supplemented diagnostic (SPEC_FULL.md §6.3): an
	// integer literal does not fit the unsigned type it was resolved to.
	ELiteralRange Code = "E010"
)

// Diagnostic is a single fatal failure site with a primary and optional
// secondary span (e.g. the move site, or the first reference).
type Diagnostic struct {
	Code      Code
	Summary   string
	File      string
	Primary   token.Span
	Secondary *token.Span
	SecondaryLabel string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s", d.Code, d.Summary)
}

// Sink collects diagnostics in the order they are raised (spec.md §5:
// "diagnostic emission is in source order within a pass").
type Sink struct {
	items []*Diagnostic
}

// NewSink constructs an empty Sink.
func NewSink() *Sink { return &Sink{} }

// Report appends d to the sink.
func (s *Sink) Report(d *Diagnostic) { s.items = append(s.items, d) }

// HasErrors reports whether any diagnostic was raised (spec.md §7: "If any
// diagnostic was emitted, no .ll is written and the backend is not invoked").
func (s *Sink) HasErrors() bool { return len(s.items) > 0 }

// Items returns the diagnostics raised so far, in source order.
func (s *Sink) Items() []*Diagnostic { return s.items }

// Render writes every diagnostic in the sink to w, one per failure site,
// using color when the destination is a terminal (fatih/color's own
// NoColor auto-detection handles piped output, per SPEC_FULL.md §6.2).
func Render(w io.Writer, src string, items []*Diagnostic) {
	codeColor := color.New(color.FgRed, color.Bold)
	caretColor := color.New(color.FgRed)
	lines := strings.Split(src, "\n")

	for _, d := range items {
		fmt.Fprintf(w, "%s ", codeColor.Sprint(string(d.Code)))
		fmt.Fprintf(w, "%s\n", d.Summary)
		fmt.Fprintf(w, "  --> %s:%d:%d\n", d.File, d.Primary.Start.Line, d.Primary.Start.Col)
		renderSpan(w, lines, d.Primary, caretColor)
		if d.Secondary != nil {
			if d.SecondaryLabel != "" {
				fmt.Fprintf(w, "  %s at %s:%d:%d\n", d.SecondaryLabel, d.File, d.Secondary.Start.Line, d.Secondary.Start.Col)
			}
			renderSpan(w, lines, *d.Secondary, caretColor)
		}
	}
}

func renderSpan(w io.Writer, lines []string, sp token.Span, caretColor *color.Color) {
	lineIdx := sp.Start.Line - 1
	if lineIdx < 0 || lineIdx >= len(lines) {
		return
	}
	fmt.Fprintf(w, "    %s\n", lines[lineIdx])
	width := sp.End.Offset - sp.Start.Offset
	if width < 1 {
		width = 1
	}
	underline := strings.Repeat(" ", sp.Start.Col-1) + strings.Repeat("^", width)
	fmt.Fprintf(w, "    %s\n", caretColor.Sprint(underline))
}
