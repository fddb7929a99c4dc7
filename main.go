// Command kestrel is the ahead-of-time compiler's CLI entry point: it
// reads one .ke source file, runs the full pipeline, and either reports
// diagnostics or invokes the backend driver to produce a native binary
// (spec.md §2, §7).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrel-lang/kestrel/pkg/compiler"
	"github.com/kestrel-lang/kestrel/pkg/diag"
	"github.com/kestrel-lang/kestrel/pkg/icompiler"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts compiler.Options
	var output string
	var emitLL bool

	cmd := &cobra.Command{
		Use:           "kestrel [flags] <file.ke>",
		Short:         "Kestrel ahead-of-time compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(args[0], opts, output, emitLL)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.Optimize, "optimize", "O", false, "accepted but has no effect: not passed to the backend")
	flags.BoolVar(&opts.Sanitize, "sanitize", false, "accepted but has no effect: not passed to the backend")
	flags.BoolVar(&opts.NoOverflowChecks, "no-ou-checks", false, "disable arithmetic overflow checks (-fno-ou-checks)")
	flags.BoolVar(&opts.EmitMIR, "emit-mir", false, "write a .mir dump alongside the output")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVarP(&output, "output", "o", "", "output binary path (default a.out)")
	flags.BoolVar(&emitLL, "emit-llvm", false, "keep the .ll file alongside the output")

	return cmd
}

// runCompile drives one file through the full pipeline. Exit codes follow
// spec.md §7: 0 on success, 1 when user diagnostics were emitted, and
// icompiler.ExitCode when the compiler itself faulted.
func runCompile(file string, opts compiler.Options, output string, emitLL bool) error {
	src, err := os.ReadFile(file)
	if err != nil {
		return icompiler.Wrap(err, "could not read source file")
	}

	ctx := compiler.NewContext(file, opts)
	res, diags := ctx.Run(string(src))
	if len(diags) > 0 {
		diag.Render(os.Stderr, string(src), diags)
		os.Exit(1)
	}

	out, err := compiler.Drive(res, file, compiler.DriverOptions{
		Output:  output,
		KeepIR:  emitLL,
		KeepMIR: opts.EmitMIR,
	})
	if err != nil {
		os.Exit(icompiler.ExitCode)
	}

	ctx.Log.WithField("output", out).Info("compiled")
	return nil
}
