package wrapper

// If provenance capture fails, the job MUST still run.
// The wrapper only starts, forwards signals and waits. Nothing else.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/psantana5/trohook/internal/observe"
)

// Spec describes the job body to run.
type Spec struct {
	Command string
	Args    []string
	Env     []string // full environment, as prepared by the hook
	Dir     string
}

// Outcome is the frozen record of one job body run.
type Outcome struct {
	PID       int           `json:"pid"`
	ExitCode  int           `json:"exit_code"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration_ns"`
}

// Run spawns the job body in its own process group and waits for it.
// SIGINT/SIGTERM received by the wrapper are forwarded to the group.
func Run(ctx context.Context, spec Spec) (*Outcome, error) {
	if spec.Command == "" {
		return nil, errors.New("no command specified")
	}

	timing := observe.NewTiming()

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Env = spec.Env
	cmd.Dir = spec.Dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	pid := cmd.Process.Pid

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	for waiting := true; waiting; {
		select {
		case sig := <-sigChan:
			_ = syscall.Kill(-pid, sig.(syscall.Signal))
		case <-ctx.Done():
			_ = syscall.Kill(-pid, syscall.SIGTERM)
			ctx = context.Background()
		case waitErr = <-done:
			waiting = false
		}
	}
	timing.Complete()

	out := &Outcome{
		PID:       pid,
		StartTime: timing.StartedAt,
		EndTime:   timing.CompletedAt,
		Duration:  timing.Duration(),
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return out, fmt.Errorf("wait: %w", waitErr)
		}
		out.ExitCode = exitCode(exitErr)
	}
	return out, nil
}

// exitCode follows the shell convention of 128+signal for signaled jobs.
func exitCode(exitErr *exec.ExitError) int {
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}
