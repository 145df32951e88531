package orchestrator

import (
	"context"
	"fmt"

	"github.com/dayniel-caadiang/logistics-api/internal/envpath"
)

// State is a position in the deploy state machine.
type State string

const (
	StateInstalling       State = "installing"
	StateConfiguringEnv   State = "configuring-env"
	StateCollectingStatic State = "collecting-static"
	StateMigrating        State = "migrating"
	StatePostCommands     State = "post-commands"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// transitions lists the legal forward moves. Failed is reachable from every
// non-terminal state and is handled separately.
var transitions = map[State][]State{
	StateInstalling:       {StateConfiguringEnv},
	StateConfiguringEnv:   {StateCollectingStatic},
	StateCollectingStatic: {StateMigrating},
	StateMigrating:        {StatePostCommands, StateDone},
	StatePostCommands:     {StatePostCommands, StateDone},
}

// machine tracks one run's state. It starts in StateInstalling.
type machine struct {
	current State
}

func newMachine() *machine {
	return &machine{current: StateInstalling}
}

// advance moves to next. Staying in the current state is a no-op so the
// first step (already Installing) and repeated post commands are legal.
func (m *machine) advance(next State) error {
	if next == m.current && !m.current.Terminal() {
		return nil
	}
	for _, allowed := range transitions[m.current] {
		if allowed == next {
			m.current = next
			return nil
		}
	}
	return fmt.Errorf("illegal deploy transition %s -> %s", m.current, next)
}

func (m *machine) fail() {
	if !m.current.Terminal() {
		m.current = StateFailed
	}
}

// Step is one unit of the deploy pipeline.
type Step interface {
	// Name identifies the step in results, logs and events.
	Name() string
	// State is the machine state while the step runs.
	State() State
	// Run performs the step. env is shared by all steps of a run, so a
	// mutation by one step is inherited by every later child process.
	Run(ctx context.Context, env *envpath.Environ) error
}

// Locker guards against concurrent deploys across hosts.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// EventPublisher receives step lifecycle events. Failures are logged only.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev Event) error
}

// Prober reports the health of one dependency.
type Prober interface {
	Probe(ctx context.Context) ProbeResult
}
