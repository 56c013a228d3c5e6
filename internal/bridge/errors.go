package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrToolUnavailable means no accelerated tool can serve the request:
	// the binary is missing or the format has no tool.
	ErrToolUnavailable = errors.New("external tool unavailable")

	// ErrToolFailed means the tool ran but exited non-zero, timed out or
	// produced output that could not be used.
	ErrToolFailed = errors.New("external tool failed")
)

// ToolError describes one failed accelerated extraction. Err is
// ErrToolUnavailable or ErrToolFailed.
type ToolError struct {
	Tool     string
	Source   string
	ExitCode int
	Stderr   string
	Reason   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s: %s: %v", e.Source, e.Tool, e.Err)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }
