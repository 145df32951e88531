package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/dayniel-caadiang/logistics-api/internal/envpath"
	"github.com/dayniel-caadiang/logistics-api/internal/telemetry"
)

const instrumentationName = "logistics-deploy"

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLocker serialises deploys across hosts.
func WithLocker(l Locker) Option {
	return func(o *Orchestrator) { o.locker = l }
}

// WithEvents publishes step lifecycle events to p. It may be given more
// than once; every sink receives every event in registration order.
func WithEvents(p EventPublisher) Option {
	return func(o *Orchestrator) { o.events = append(o.events, p) }
}

// WithProbe registers a dependency for RunDeepHealth under name.
func WithProbe(name string, p Prober) Option {
	return func(o *Orchestrator) { o.probes[name] = p }
}

// WithEnviron overrides where each run's environment comes from. The
// default snapshots the process environment.
func WithEnviron(fn func() *envpath.Environ) Option {
	return func(o *Orchestrator) { o.environ = fn }
}

// Orchestrator runs the deploy steps in order and answers health probes.
type Orchestrator struct {
	steps   []Step
	locker  Locker
	events  []EventPublisher
	probes  map[string]Prober
	environ func() *envpath.Environ

	stepDuration metric.Float64Histogram

	deployInProgress atomic.Bool
	lastResult       *DeployResult
	resultMu         sync.RWMutex
}

// New constructs an Orchestrator that runs steps in the given order.
func New(steps []Step, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		steps:   steps,
		probes:  make(map[string]Prober),
		environ: envpath.FromOS,
	}
	for _, opt := range opts {
		opt(o)
	}

	h, err := otel.Meter(instrumentationName).Float64Histogram(
		telemetry.StepDurationMetric,
		metric.WithDescription("Wall time of each deploy step"),
		metric.WithUnit("s"),
	)
	if err != nil {
		slog.Warn("step duration histogram unavailable", "err", err)
	}
	o.stepDuration = h
	return o
}

// RunDeploy runs every step in order and stops at the first failure. Steps
// after a failure are recorded as skipped and never run. A step failure is
// reported through the result (Status, ExitCode, FailedStep), not the
// returned error, which is reserved for runs that could not start.
func (o *Orchestrator) RunDeploy(ctx context.Context) (*DeployResult, error) {
	if !o.deployInProgress.CompareAndSwap(false, true) {
		return nil, ErrDeployInProgress
	}
	defer o.deployInProgress.Store(false)

	if o.locker != nil {
		release, err := o.locker.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquiring deploy lock: %w", err)
		}
		defer func() {
			// The run ctx may already be cancelled; release regardless.
			relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := release(relCtx); err != nil {
				slog.WarnContext(ctx, "releasing deploy lock", "err", err)
			}
		}()
	}

	result := &DeployResult{
		ID:        uuid.NewString(),
		Status:    StatusInProgress,
		State:     StateInstalling,
		StartedAt: time.Now().UTC(),
		Phases:    make([]PhaseResult, 0, len(o.steps)),
	}

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "deploy.run")
	defer span.End()
	span.SetAttributes(attribute.String("deploy.id", result.ID))
	// Every log line below this point, including the steps', carries deploy_id.
	ctx = telemetry.WithDeployID(ctx, result.ID)

	slog.InfoContext(ctx, "deploy started", "steps", len(o.steps))

	env := o.environ()
	m := newMachine()

	for i, step := range o.steps {
		if err := m.advance(step.State()); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		result.State = m.current

		phase, err := o.runStep(ctx, result.ID, step, env)
		result.Phases = append(result.Phases, phase)
		if err == nil {
			continue
		}

		m.fail()
		result.State = m.current
		result.Status = StatusError
		result.FailedStep = step.Name()
		result.ExitCode = ExitCode(err)
		result.Error = err.Error()

		for _, rest := range o.steps[i+1:] {
			result.Phases = append(result.Phases, PhaseResult{Name: rest.Name(), Status: StatusSkipped})
			o.publish(ctx, Event{DeployID: result.ID, Step: rest.Name(), Kind: EventSkipped})
		}
		break
	}

	if result.Status != StatusError {
		if err := m.advance(StateDone); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		result.State = m.current
		result.Status = StatusOK
	}
	result.FinishedAt = time.Now().UTC()

	span.SetAttributes(
		attribute.String("deploy.status", result.Status),
		attribute.Int("deploy.exit_code", result.ExitCode),
	)
	if result.Status == StatusError {
		span.SetStatus(codes.Error, result.Error)
		slog.ErrorContext(ctx, "deploy failed",
			"step", result.FailedStep,
			"exit_code", result.ExitCode,
		)
	} else {
		span.SetStatus(codes.Ok, "")
		slog.InfoContext(ctx, "deploy completed")
	}

	o.resultMu.Lock()
	o.lastResult = result.clone()
	o.resultMu.Unlock()

	return result, nil
}

// runStep executes one step under its own span and returns its phase record.
func (o *Orchestrator) runStep(ctx context.Context, deployID string, step Step, env *envpath.Environ) (PhaseResult, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "deploy.step."+step.Name())
	defer span.End()

	o.publish(ctx, Event{DeployID: deployID, Step: step.Name(), Kind: EventStarted})
	slog.InfoContext(ctx, "deploy step started", "step", step.Name(), "state", step.State())

	start := time.Now()
	err := step.Run(ctx, env)
	elapsed := time.Since(start)

	status := StatusOK
	if err != nil {
		status = StatusError
	}
	if o.stepDuration != nil {
		o.stepDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
			attribute.String("step", step.Name()),
			attribute.String("status", status),
		))
	}

	phase := PhaseResult{
		Name:       step.Name(),
		Status:     status,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		phase.ExitCode = ExitCode(err)
		phase.Error = err.Error()
		span.SetStatus(codes.Error, phase.Error)
		slog.ErrorContext(ctx, "deploy step failed",
			"step", step.Name(),
			"exit_code", phase.ExitCode,
			"error", phase.Error,
		)
		o.publish(ctx, Event{
			DeployID: deployID,
			Step:     step.Name(),
			Kind:     EventFailed,
			ExitCode: phase.ExitCode,
			Error:    phase.Error,
		})
		return phase, err
	}

	span.SetStatus(codes.Ok, "")
	slog.InfoContext(ctx, "deploy step ok", "step", step.Name(), "duration_ms", phase.DurationMs)
	o.publish(ctx, Event{DeployID: deployID, Step: step.Name(), Kind: EventSucceeded})
	return phase, nil
}

// publish forwards ev to every event sink. A sink failure never changes the
// outcome of a deploy.
func (o *Orchestrator) publish(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	for _, sink := range o.events {
		if err := sink.PublishEvent(ctx, ev); err != nil {
			slog.WarnContext(ctx, "publishing deploy event", "step", ev.Step, "kind", ev.Kind, "err", err)
		}
	}
}

// RunDeepHealth probes every registered dependency concurrently and returns
// a map of dependency name to ProbeResult.
func (o *Orchestrator) RunDeepHealth(ctx context.Context) map[string]ProbeResult {
	results := make(map[string]ProbeResult, len(o.probes))
	var mu sync.Mutex
	var g errgroup.Group

	for name, p := range o.probes {
		name, p := name, p
		g.Go(func() error {
			probe := p.Probe(ctx)
			mu.Lock()
			results[name] = probe
			mu.Unlock()
			return nil
		})
	}

	// g.Wait() never returns an error because all goroutines return nil.
	_ = g.Wait()
	return results
}

// IsDeployInProgress returns true while a deploy run is active.
func (o *Orchestrator) IsDeployInProgress() bool {
	return o.deployInProgress.Load()
}

// IsReady returns true if the last deploy reached StateDone.
func (o *Orchestrator) IsReady() bool {
	o.resultMu.RLock()
	defer o.resultMu.RUnlock()
	return o.lastResult != nil && o.lastResult.State == StateDone
}

// LastResult returns a copy of the most recent completed run, or nil.
func (o *Orchestrator) LastResult() *DeployResult {
	o.resultMu.RLock()
	defer o.resultMu.RUnlock()
	if o.lastResult == nil {
		return nil
	}
	return o.lastResult.clone()
}
