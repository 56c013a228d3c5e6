package bridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds every external tool invocation.
const DefaultTimeout = 5 * time.Second

// Command is a single external process invocation.
type Command struct {
	Binary  string
	Args    []string
	Stdin   io.Reader
	Timeout time.Duration
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Binary}, c.Args...), " ")
}

// Outcome is what a finished command produced. A non-zero ExitCode is an
// outcome, not an error.
type Outcome struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
	TimedOut bool
}

// Success reports whether the command exited zero within its timeout.
func (o Outcome) Success() bool {
	return o.ExitCode == 0 && !o.TimedOut
}

// Runner starts external commands. Tests substitute a fake.
type Runner interface {
	// Run executes cmd and waits for it. The error is non-nil only when
	// the process could not be started.
	Run(ctx context.Context, cmd Command) (Outcome, error)

	// LookPath resolves binary to an executable path.
	LookPath(binary string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes cmd, killing it when its timeout elapses.
func (ExecRunner) Run(ctx context.Context, cmd Command) (Outcome, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...)
	c.Stdin = cmd.Stdin
	c.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	out := Outcome{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		out.TimedOut = true
		out.ExitCode = -1
		return out, nil
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
	default:
		return out, err
	}
	return out, nil
}

// LookPath resolves binary on PATH.
func (ExecRunner) LookPath(binary string) (string, error) {
	return exec.LookPath(binary)
}
