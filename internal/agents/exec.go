package agents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/codalotl/agentjudge/internal/output"
)

// ExecRunner runs commands with os/exec. When Printer is set, each command line is echoed through it.
type ExecRunner struct {
	Dir     string
	Printer *output.Printer
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Invocation, error) {
	if r.Printer != nil {
		_ = r.Printer.Command(name, args)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	inv := Invocation{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return inv, fmt.Errorf("run %s: %w", name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		inv.ExitCode = exitErr.ExitCode()
		return inv, nil
	}
	if err != nil {
		return inv, err
	}
	return inv, nil
}
