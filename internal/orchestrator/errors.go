package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrDeployInProgress is returned when RunDeploy is called while a
	// deploy is already running in this process.
	ErrDeployInProgress = errors.New("deploy already in progress")

	// ErrDeployLocked is returned by a Locker when another host holds the
	// deploy lock.
	ErrDeployLocked = errors.New("deploy lock held by another process")
)

// Failure kinds. A StepError matches exactly one of them with errors.Is.
// Configuring the environment cannot fail, so it has no kind.
var (
	ErrDependencyInstall = errors.New("dependency install failed")
	ErrStaticCollection  = errors.New("static collection failed")
	ErrMigration         = errors.New("migration failed")
	ErrPostCommand       = errors.New("post-migrate command failed")
)

// StepError is the failure of one deploy step. Code is the exit status
// the whole deploy propagates.
type StepError struct {
	Step string
	Kind error
	Code int
	Err  error
}

// NewStepError classifies err under kind, taking the exit status from err
// when it carries one and 1 otherwise.
func NewStepError(step string, kind, err error) *StepError {
	return &StepError{Step: step, Kind: kind, Code: codeOf(err), Err: err}
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Is reports whether target is this error's kind.
func (e *StepError) Is(target error) bool { return target == e.Kind }

// ExitCode returns the exit status to propagate.
func (e *StepError) ExitCode() int { return e.Code }

type exitCoder interface {
	ExitCode() int
}

// ExitCode maps err to a process exit status: 0 for nil, the carried
// status when err (or anything it wraps) has one, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return codeOf(err)
}

func codeOf(err error) int {
	var ec exitCoder
	if errors.As(err, &ec) {
		if c := ec.ExitCode(); c > 0 {
			return c
		}
	}
	return 1
}
