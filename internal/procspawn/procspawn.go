// Package procspawn runs subprocesses on the caller's behalf, capturing
// stdout/stderr separately. It is a thin wrapper over os/exec: no pack
// repository vendors a subprocess-execution library of its own, so this is
// the point in the dependency graph where stdlib is the idiomatic choice.
package procspawn

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Result holds the captured output of a finished subprocess.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Run executes name with args, honoring ctx for cancellation, and returns
// its captured output. A non-zero exit code is reported via Result.ExitCode
// rather than as an error; err is reserved for failures to start or signal
// the process.
func Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("procspawn: running %s: %w", name, err)
	}
	return result, nil
}
