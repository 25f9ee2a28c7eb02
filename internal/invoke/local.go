package invoke

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait blocks on inherited pipes after the process is killed.
const waitDelay = 2 * time.Second

// LocalInvoker runs commands as local OS processes.
type LocalInvoker struct {
	logger *slog.Logger
}

// NewLocalInvoker creates a LocalInvoker.
func NewLocalInvoker(logger *slog.Logger) *LocalInvoker {
	return &LocalInvoker{logger: logger.With("component", "invoker")}
}

// Invoke executes the command and waits for it to finish or time out.
func (l *LocalInvoker) Invoke(ctx context.Context, inv Invocation) (*Outcome, error) {
	if len(inv.Command) == 0 {
		return nil, ErrEmptyCommand
	}

	parent := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Command[0], inv.Command[1:]...)
	cmd.Dir = inv.Dir
	cmd.WaitDelay = waitDelay

	cmd.Stdin = inv.Stdin

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	switch {
	case inv.DiscardStderr:
		cmd.Stderr = io.Discard
	case inv.Stderr != nil:
		cmd.Stderr = inv.Stderr
	default:
		cmd.Stderr = &stderrBuf
	}

	l.logger.Debug("invoke", "command", inv.Command, "timeout", inv.Timeout)

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	// The parent ending first is an interruption, even if its deadline also
	// expired the derived context.
	if err := parent.Err(); runErr != nil && err != nil {
		return nil, &Error{Phase: "run", Command: inv.Command[0], Err: err}
	}
	if inv.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, &Error{Phase: "timeout", Command: inv.Command[0], Err: ErrTimeout}
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			// Non-exit errors (binary not found, cancelled context) are returned directly.
			return nil, &Error{Phase: "start", Command: inv.Command[0], Err: runErr}
		}
		if ctx.Err() != nil {
			return nil, &Error{Phase: "run", Command: inv.Command[0], Err: ctx.Err()}
		}
		exitCode = exitErr.ExitCode()
	}

	return &Outcome{
		ExitCode: exitCode,
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Elapsed:  elapsed,
	}, nil
}
