package compiler

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/kestrel-lang/kestrel/pkg/icompiler"
)

// DriverOptions configures the backend invocation (spec.md §6 "Backend").
type DriverOptions struct {
	Output string // final binary path, defaults to "a.out"
	KeepIR bool   // write the .ll next to Output instead of a scratch dir
	KeepMIR bool  // write the .mir dump next to Output
}

// Drive writes res.LLVMIR to a temporary .ll file and invokes clang to
// assemble and link a native binary, matching spec.md §6: "the driver
// shells out to the system toolchain; Kestrel itself never emits machine
// code directly." File handles are closed on every exit path, including
// the error paths, before the scratch directory is removed.
func Drive(res *Result, file string, opts DriverOptions) (string, error) {
	base := filepath.Base(file)
	stem := base[:len(base)-len(filepath.Ext(base))]

	scratch, err := os.MkdirTemp("", "kestrel_")
	if err != nil {
		return "", icompiler.Wrap(err, "could not create scratch directory")
	}
	defer os.RemoveAll(scratch)

	llPath := filepath.Join(scratch, stem+".ll")
	if opts.KeepIR {
		llPath = filepath.Join(filepath.Dir(outputPath(opts)), stem+".ll")
	}
	if err := writeFile(llPath, res.LLVMIR); err != nil {
		return "", icompiler.Wrap(err, "could not write LLVM IR")
	}

	if opts.KeepMIR && res.MIRDump != "" {
		mirPath := filepath.Join(filepath.Dir(outputPath(opts)), stem+".mir")
		if err := writeFile(mirPath, res.MIRDump); err != nil {
			return "", icompiler.Wrap(err, "could not write MIR dump")
		}
	}

	out := outputPath(opts)
	absOut, err := filepath.Abs(out)
	if err != nil {
		return "", icompiler.Wrap(err, "could not resolve output path")
	}
	cmd := exec.Command("clang", llPath, "-o", absOut)
	combined, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "backend invocation failed: %s", string(combined))
	}

	return out, nil
}

func outputPath(opts DriverOptions) string {
	if opts.Output != "" {
		return opts.Output
	}
	return "a.out"
}

func writeFile(path, content string) (err error) {
	f, openErr := os.Create(path)
	if openErr != nil {
		return openErr
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	_, err = f.WriteString(content)
	return err
}
