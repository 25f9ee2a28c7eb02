// Package invoke runs external tools (the structure converter and the docking
// engine) behind a narrow interface so stages can be tested with fakes.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Sentinel errors.
var (
	ErrEmptyCommand = errors.New("empty command")
	ErrTimeout      = errors.New("command timed out")
)

// Invoker runs one external command to completion.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (*Outcome, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, inv Invocation) (*Outcome, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, inv Invocation) (*Outcome, error) {
	return f(ctx, inv)
}

// Invocation describes what to execute.
type Invocation struct {
	Command       []string      // Command and arguments
	Dir           string        // Working directory (optional)
	Timeout       time.Duration // Hard wall-clock limit; zero means none
	Stdin         io.Reader     // Standard input (optional)
	Stderr        io.Writer     // Stream stderr here instead of capturing it (optional)
	DiscardStderr bool          // Drop diagnostics instead of capturing them
}

// Outcome holds the result of a completed invocation.
// A non-zero exit is reported here, not as an error.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string // empty when stderr was streamed or discarded
	Elapsed  time.Duration
}

// Succeeded reports whether the command exited with status 0.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.ExitCode == 0
}

// Error wraps an invocation failure with the phase it happened in.
type Error struct {
	Phase    string // "start", "run", "timeout"
	Command  string
	Err      error
	ExitCode int
}

func (e *Error) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s %s: %v (exit code %d)", e.Phase, e.Command, e.Err, e.ExitCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Command, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a timeout produced by an Invoker.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
