package api

import (
	"context"
	"strconv"

	"github.com/dayniel-caadiang/logistics-api/internal/orchestrator"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts deploy step events for the agent's /metrics endpoint. It
// implements orchestrator.EventPublisher so it can be registered with
// orchestrator.WithEvents alongside the NATS sink.
type Metrics struct {
	registry   *prometheus.Registry
	stepEvents *prometheus.CounterVec
	exitCodes  *prometheus.CounterVec
}

// NewMetrics creates a Metrics with its own registry, so repeated
// construction in tests never collides on the global one.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stepEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deploy_step_events_total",
				Help: "Deploy step lifecycle events by step and kind",
			},
			[]string{"step", "kind"},
		),
		exitCodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deploy_step_failures_total",
				Help: "Failed deploy steps by step and exit code",
			},
			[]string{"step", "exit_code"},
		),
	}
	m.registry.MustRegister(m.stepEvents, m.exitCodes)
	return m
}

// PublishEvent records ev. It never fails.
func (m *Metrics) PublishEvent(_ context.Context, ev orchestrator.Event) error {
	m.stepEvents.WithLabelValues(ev.Step, string(ev.Kind)).Inc()
	if ev.Kind == orchestrator.EventFailed {
		m.exitCodes.WithLabelValues(ev.Step, strconv.Itoa(ev.ExitCode)).Inc()
	}
	return nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
