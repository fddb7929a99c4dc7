// Package icompiler defines the internal-compiler-error channel: failures
// that indicate the compiler produced malformed MIR, distinct from the
// user-facing diagnostics in pkg/diag (spec.md §7, SPEC_FULL.md §7).
package icompiler

import "github.com/pkg/errors"

// ExitCode is the process exit status used for internal faults, distinct
// from the exit code used when user diagnostics were emitted.
const ExitCode = 2

// Fault wraps a causal chain describing an invariant violated by the
// compiler itself (e.g. an operand index out of range, a phi with no
// incoming values) rather than by the user's source.
type Fault struct {
	cause error
	msg   string
}

// New constructs a Fault with no further cause.
func New(msg string) *Fault {
	return &Fault{msg: msg}
}

// Wrap attaches msg to cause, preserving the chain so errors.Cause can walk
// back to the original failure.
func Wrap(cause error, msg string) *Fault {
	return &Fault{cause: errors.Wrap(cause, msg), msg: msg}
}

func (f *Fault) Error() string {
	if f.cause != nil {
		return f.cause.Error()
	}
	return "internal compiler error: " + f.msg
}

func (f *Fault) Unwrap() error { return f.cause }
