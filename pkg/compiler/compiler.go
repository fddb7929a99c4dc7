// Package compiler threads a single Context through the pipeline spec.md
// §2 describes: lex, parse, lower to MIR, run the lifetime and borrow
// passes, then emit LLVM IR and hand it to the backend driver. There is no
// package-level state; every stage receives the Context explicitly.
package compiler

import (
	"bytes"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kestrel-lang/kestrel/pkg/analysis"
	"github.com/kestrel-lang/kestrel/pkg/codegen"
	"github.com/kestrel-lang/kestrel/pkg/diag"
	"github.com/kestrel-lang/kestrel/pkg/mir"
	"github.com/kestrel-lang/kestrel/pkg/mirdump"
	"github.com/kestrel-lang/kestrel/pkg/parser"
)

// Options are the resolved command-line flags a Context carries (spec.md
// §6 "Flags").
type Options struct {
	Optimize         bool
	Sanitize         bool
	NoOverflowChecks bool
	EmitMIR          bool
	Verbose          bool
}

// Context is Kestrel's compile-time config object: the diagnostic sink,
// logger, and resolved flags for one invocation. It is constructed once
// per run and passed by pointer to every stage (SPEC_FULL.md §5.4).
type Context struct {
	File string
	Opts Options
	Sink *diag.Sink
	Log  *logrus.Logger
}

// NewContext builds a Context for compiling file, configuring the logger's
// level from Opts.Verbose.
func NewContext(file string, opts Options) *Context {
	log := logrus.New()
	if opts.Verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	return &Context{File: file, Opts: opts, Sink: diag.NewSink(), Log: log}
}

// Result is everything a successful pipeline run produced, ready for the
// backend driver.
type Result struct {
	Program *mir.Program
	LLVMIR  string
	MIRDump string
}

// Run executes the full front-end and mid-end pipeline over src: lex,
// parse, lower, lifetime pass, borrow pass, codegen. It stops at the
// first stage that raises any diagnostic (spec.md §5: "the pass aborts
// ... the pipeline does not proceed to code generation if any diagnostic
// was emitted"), returning the diagnostics gathered so far.
func (c *Context) Run(src string) (*Result, []*diag.Diagnostic) {
	c.Log.WithField("file", c.File).Debug("parsing")
	p := parser.New(c.File, src)
	prog, perr := p.ParseProgram()
	if perr != nil {
		c.Sink.Report(perr)
		return nil, c.Sink.Items()
	}

	c.Log.Debug("lowering to MIR")
	lowerer := mir.NewLowerer(c.File, prog)
	mprog, lowerDiags := lowerer.LowerProgram(prog)
	for _, d := range lowerDiags {
		c.Sink.Report(d)
	}
	if c.Sink.HasErrors() {
		return nil, c.Sink.Items()
	}

	c.Log.Debug("running lifetime pass")
	for _, d := range analysis.RunLifetimePass(c.File, mprog) {
		c.Sink.Report(d)
	}
	if c.Sink.HasErrors() {
		return nil, c.Sink.Items()
	}

	c.Log.Debug("running borrow pass")
	for _, d := range analysis.RunBorrowPass(c.File, mprog) {
		c.Sink.Report(d)
	}
	if c.Sink.HasErrors() {
		return nil, c.Sink.Items()
	}

	var dump string
	if c.Opts.EmitMIR {
		var buf bytes.Buffer
		if err := mirdump.Write(&buf, mprog); err != nil {
			c.Log.WithError(err).Warn("mir dump failed")
		}
		dump = buf.String()
	}

	c.Log.Debug("emitting LLVM IR")
	emitter := codegen.NewEmitter(c.File, codegen.Flags{
		NoOverflowChecks: c.Opts.NoOverflowChecks,
		Sanitize:         c.Opts.Sanitize,
	})
	ll, err := emitter.Emit(mprog)
	if err != nil {
		c.Sink.Report(&diag.Diagnostic{Code: diag.EParse, Summary: fmt.Sprintf("codegen: %v", err), File: c.File})
		return nil, c.Sink.Items()
	}

	return &Result{Program: mprog, LLVMIR: ll, MIRDump: dump}, nil
}
