// Package backends holds the plumbing shared by every backend invoker:
// the subprocess runner, child environment shaping and the invoker router.
package backends

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"agentbridge/internal/core"
)

// waitDelay bounds how long Wait blocks on pipes still held open by
// grandchildren after the backend process itself has been killed.
const waitDelay = 2 * time.Second

// Command describes one non-interactive backend subprocess.
type Command struct {
	Path string
	Args []string
	// Env is the complete child environment. Nil inherits the parent's.
	Env []string
	// Stdin is piped to the child when non-nil. Otherwise the child reads
	// from the null device.
	Stdin   *string
	Timeout time.Duration
}

// CommandResult is the captured outcome of a finished subprocess.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// FailureText returns trimmed stderr, or fallback when stderr is blank.
func (r *CommandResult) FailureText(fallback string) string {
	if msg := strings.TrimSpace(r.Stderr); msg != "" {
		return msg
	}
	return fallback
}

// EffectiveTimeout returns the time an invocation actually gets: the
// configured timeout, or the time left on ctx when its deadline comes first.
func EffectiveTimeout(ctx context.Context, configured time.Duration) time.Duration {
	limit := configured
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); limit <= 0 || remaining < limit {
			limit = remaining.Round(time.Millisecond)
		}
	}
	return limit
}

// RunCommand executes cmd and waits for it to finish. A non-zero exit is not
// an error here; callers inspect ExitCode. Errors are *core.GatewayError:
// a timeout when cmd.Timeout elapses, an execution error when the process
// could not be started or the request was canceled.
func RunCommand(ctx context.Context, backend string, cmd Command) (*CommandResult, error) {
	limit := EffectiveTimeout(ctx, cmd.Timeout)
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Env = cmd.Env
	c.WaitDelay = waitDelay
	if cmd.Stdin != nil {
		c.Stdin = strings.NewReader(*cmd.Stdin)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	result := &CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, core.NewBackendTimeoutError(backend,
				fmt.Sprintf("%s timed out after %s", backend, limit), ctxErr)
		}
		return nil, core.NewBackendExecutionError(backend, fmt.Sprintf("%s call canceled", backend), ctxErr)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, core.NewBackendExecutionError(backend, err.Error(), err)
	}
	return result, nil
}
