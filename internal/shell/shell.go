// Package shell runs the external tools a deploy delegates to (package
// manager, Django management commands) as child processes.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// ExitCodeToolNotFound mirrors the shell's "command not found" status.
const ExitCodeToolNotFound = 127

// ErrToolNotFound is returned when the executable cannot be resolved.
var ErrToolNotFound = errors.New("tool not found")

// Command describes one child process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env is passed verbatim. Nil inherits the parent process environment,
	// as with exec.Cmd; deploy steps always pass the run's full environment
	// so their path changes reach the child.
	Env []string
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// ExitError reports a child that ran and exited non-zero.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
}

// ExitCode returns the child's exit status.
func (e *ExitError) ExitCode() int { return e.Code }

// Runner executes commands, streaming child output unchanged.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	// WaitDelay bounds how long Run waits for output pipes after the
	// child is killed on context cancellation.
	WaitDelay time.Duration
}

// NewRunner returns a Runner wired to the process's stdout and stderr.
func NewRunner() *Runner {
	return &Runner{
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		WaitDelay: 5 * time.Second,
	}
}

// Run starts c and blocks until it exits. A missing executable yields an
// error matching ErrToolNotFound with ExitCode 127; a non-zero exit yields
// *ExitError. Cancelling ctx kills the child.
func (r *Runner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.WaitDelay = r.WaitDelay

	slog.DebugContext(ctx, "exec", "cmd", c.String(), "dir", c.Dir)

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return &toolNotFoundError{name: c.Name, err: err}
		}
		return fmt.Errorf("starting %s: %w", c.Name, err)
	}

	err := cmd.Wait()
	if err == nil {
		return nil
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", c.String(), ctxErr)
		}
		return &ExitError{Command: c.String(), Code: exitStatus(ee)}
	}
	return fmt.Errorf("waiting for %s: %w", c.Name, err)
}

// exitStatus follows the shell convention of 128+signal for children
// terminated by a signal.
func exitStatus(ee *exec.ExitError) int {
	if code := ee.ExitCode(); code >= 0 {
		return code
	}
	if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}

type toolNotFoundError struct {
	name string
	err  error
}

func (e *toolNotFoundError) Error() string {
	return fmt.Sprintf("%s: %v", e.name, ErrToolNotFound)
}

func (e *toolNotFoundError) Unwrap() []error { return []error{ErrToolNotFound, e.err} }

func (e *toolNotFoundError) ExitCode() int { return ExitCodeToolNotFound }
