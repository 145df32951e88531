package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"

	"github.com/dayniel-caadiang/logistics-api/internal/config"
	"github.com/dayniel-caadiang/logistics-api/internal/orchestrator"
)

const natsProbeName = "nats"

// eventRetention bounds how long deploy history stays in the stream.
const eventRetention = 30 * 24 * time.Hour

// jsContext is the subset of nats.JetStreamContext used here. Defining an
// interface allows test doubles to be injected without a live NATS server.
type jsContext interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSClient publishes deploy lifecycle events to a JetStream stream and
// probes NATS health.
type NATSClient struct {
	url     string
	stream  string
	subject string
	cb      *gobreaker.CircuitBreaker
	newJS   func(url string) (jsContext, func(), error)

	mu      sync.Mutex
	js      jsContext
	cleanup func()
}

// NewNATSClient constructs a NATSClient. No connection is made at
// construction time; the first PublishEvent connects and provisions the
// stream.
func NewNATSClient(cfg config.EventsConfig, cb *gobreaker.CircuitBreaker) *NATSClient {
	return &NATSClient{
		url:     cfg.NATSURL,
		stream:  cfg.Stream,
		subject: cfg.Subject,
		cb:      cb,
		newJS:   realNewJS,
	}
}

// PublishEvent publishes ev as JSON on <subject>.<kind>. The call runs
// inside the circuit breaker so a dead NATS server costs a deploy at most
// three slow publishes.
func (c *NATSClient) PublishEvent(ctx context.Context, ev orchestrator.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	_, err = c.cb.Execute(func() (any, error) {
		js, err := c.conn()
		if err != nil {
			return nil, err
		}
		subj := c.subject + "." + string(ev.Kind)
		if _, err := js.Publish(subj, data, nats.Context(ctx)); err != nil {
			return nil, fmt.Errorf("publishing %s: %w", subj, err)
		}
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return fmt.Errorf("circuit open: %w", err)
		}
		return err
	}
	return nil
}

// conn returns the shared JetStream context, connecting and provisioning
// the stream on first use.
func (c *NATSClient) conn() (jsContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.js != nil {
		return c.js, nil
	}

	js, cleanup, err := c.newJS(c.url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	if err := provisionStream(js, c.streamConfig()); err != nil {
		cleanup()
		return nil, err
	}
	c.js, c.cleanup = js, cleanup
	return js, nil
}

func (c *NATSClient) streamConfig() *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:      c.stream,
		Subjects:  []string{c.subject + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    eventRetention,
	}
}

// Probe verifies NATS connectivity and returns a ProbeResult. A missing
// stream is not a failure: it is created on the first published event.
func (c *NATSClient) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		js, cleanup, err := c.newJS(c.url)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		defer cleanup()

		_, infoErr := js.StreamInfo(c.stream, nats.Context(ctx))
		if infoErr != nil && !errors.Is(infoErr, nats.ErrStreamNotFound) {
			return nil, fmt.Errorf("stream info: %w", infoErr)
		}
		return nil, nil
	})

	latency := time.Since(start).Milliseconds()

	if err != nil {
		errMsg := err.Error()
		if errors.Is(err, gobreaker.ErrOpenState) {
			errMsg = "circuit open"
		}
		return orchestrator.ProbeResult{
			Name:      natsProbeName,
			OK:        false,
			LatencyMs: latency,
			Error:     errMsg,
		}
	}

	return orchestrator.ProbeResult{
		Name:      natsProbeName,
		OK:        true,
		LatencyMs: latency,
	}
}

// Close drops the publishing connection, if any.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleanup != nil {
		c.cleanup()
	}
	c.js, c.cleanup = nil, nil
}

// provisionStream creates the stream if it does not exist, or updates it if it
// does. nats.ErrStreamNotFound signals "create"; any other error is returned.
func provisionStream(js jsContext, cfg *nats.StreamConfig) error {
	_, err := js.StreamInfo(cfg.Name)
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, addErr := js.AddStream(cfg); addErr != nil {
			return fmt.Errorf("creating stream %s: %w", cfg.Name, addErr)
		}
	case err != nil:
		return fmt.Errorf("querying stream %s: %w", cfg.Name, err)
	default:
		if _, updErr := js.UpdateStream(cfg); updErr != nil {
			return fmt.Errorf("updating stream %s: %w", cfg.Name, updErr)
		}
	}
	return nil
}

// realNewJS opens a real NATS connection and returns a JetStreamContext plus a
// cleanup function that closes the connection.
func realNewJS(url string) (jsContext, func(), error) {
	nc, err := nats.Connect(url, nats.Name("logistics-deploy"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, func() {}, fmt.Errorf("nats connect %s: %w", url, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, func() {}, fmt.Errorf("nats jetstream context: %w", err)
	}

	return js, func() { nc.Close() }, nil
}
