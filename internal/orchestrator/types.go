package orchestrator

import "time"

// Status values used across DeployResult and PhaseResult.
const (
	StatusOK         = "ok"
	StatusError      = "error"
	StatusInProgress = "in-progress"
	StatusSkipped    = "skipped"
)

// DeployResult is the aggregate result of one deploy run.
type DeployResult struct {
	ID         string        `json:"id"`
	Status     string        `json:"status"` // "ok", "error", "in-progress"
	State      State         `json:"state"`
	ExitCode   int           `json:"exitCode"`
	FailedStep string        `json:"failedStep,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Phases     []PhaseResult `json:"phases"`
}

// Phase returns the named phase and whether it was recorded.
func (r *DeployResult) Phase(name string) (PhaseResult, bool) {
	for _, p := range r.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return PhaseResult{}, false
}

// clone returns a copy whose Phases slice is not shared.
func (r *DeployResult) clone() *DeployResult {
	c := *r
	c.Phases = append([]PhaseResult(nil), r.Phases...)
	return &c
}

// PhaseResult represents the outcome of a single deploy step.
type PhaseResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"` // "ok", "error", "skipped"
	ExitCode   int    `json:"exitCode"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// ProbeResult is returned by RunDeepHealth for each dependency.
type ProbeResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latencyMs"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EventKind labels a step lifecycle event.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
	EventSkipped   EventKind = "skipped"
)

// Event is published for every step transition when an event sink is set.
type Event struct {
	DeployID string    `json:"deployId"`
	Step     string    `json:"step"`
	Kind     EventKind `json:"kind"`
	ExitCode int       `json:"exitCode,omitempty"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}
