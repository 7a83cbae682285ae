package provenance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Invocation is one run of the provenance tool.
type Invocation struct {
	Tool string
	Args []string
	Env  []string // appended to the hook's own environment
	Dir  string
}

// String renders the command line with the passphrase masked.
func (inv Invocation) String() string {
	return strings.TrimSpace(inv.Tool + " " + strings.Join(RedactArgs(inv.Args), " "))
}

// Runner executes the provenance tool and returns its combined output.
// A non-zero exit must be reported as an error; ExitCode extracts the status.
type Runner interface {
	Run(ctx context.Context, inv Invocation) ([]byte, error)
}

// ExecRunner runs the tool as a subprocess and blocks until it exits.
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, inv Invocation) ([]byte, error) {
	if strings.TrimSpace(inv.Tool) == "" {
		return nil, errors.New("provenance tool path is empty")
	}
	cmd := exec.CommandContext(ctx, inv.Tool, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), inv.Env...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w", inv.Tool, err)
	}
	return out, nil
}

// ExitCode returns the exit status carried by err, or -1 if the tool never ran to exit.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
