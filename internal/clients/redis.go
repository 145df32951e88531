package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/dayniel-caadiang/logistics-api/internal/config"
	"github.com/dayniel-caadiang/logistics-api/internal/orchestrator"
)

const redisProbeName = "redis"

// releaseScript deletes the lock only while it still holds our token, so an
// expired lock re-acquired by another host is never removed.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lock's TTL only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisClient provides the cross-host deploy lock and a health probe. The
// go-redis client dials lazily, so construction never touches the network.
type RedisClient struct {
	key    string
	ttl    time.Duration
	cb     *gobreaker.CircuitBreaker
	client *redis.Client
	// renewEvery is how often a held lock's TTL is pushed back to ttl.
	renewEvery time.Duration
}

// NewRedisClient creates a RedisClient for cfg.
func NewRedisClient(cfg config.LockConfig, cb *gobreaker.CircuitBreaker) *RedisClient {
	return &RedisClient{
		key:        cfg.Key,
		ttl:        cfg.TTL,
		cb:         cb,
		renewEvery: cfg.TTL / 3,
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// Acquire takes the deploy lock with SET NX and a TTL, so a crashed deploy
// cannot hold it forever. While held, the TTL is renewed every renewEvery
// so a deploy that outlives ttl keeps it. It returns
// orchestrator.ErrDeployLocked when another holder has it.
func (c *RedisClient) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()

	ok, err := c.cb.Execute(func() (any, error) {
		return c.client.SetNX(ctx, c.key, token, c.ttl).Result()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("redis lock: circuit open: %w", err)
		}
		return nil, fmt.Errorf("redis lock: %w", err)
	}
	if acquired, _ := ok.(bool); !acquired {
		return nil, fmt.Errorf("%w (key %s)", orchestrator.ErrDeployLocked, c.key)
	}

	renewCtx, stopRenew := context.WithCancel(context.WithoutCancel(ctx))
	renewDone := make(chan struct{})
	go func() {
		defer close(renewDone)
		c.renew(renewCtx, token)
	}()

	release := func(ctx context.Context) error {
		stopRenew()
		<-renewDone
		if err := releaseScript.Run(ctx, c.client, []string{c.key}, token).Err(); err != nil {
			return fmt.Errorf("releasing redis lock %s: %w", c.key, err)
		}
		return nil
	}
	return release, nil
}

// renew pushes the lock's expiry back until ctx is cancelled or the lock
// turns out to belong to someone else.
func (c *RedisClient) renew(ctx context.Context, token string) {
	if c.renewEvery <= 0 {
		return
	}
	ticker := time.NewTicker(c.renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n, err := renewScript.Run(ctx, c.client, []string{c.key}, token, c.ttl.Milliseconds()).Int()
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			slog.WarnContext(ctx, "renewing deploy lock", "key", c.key, "err", err)
		case n == 0:
			slog.ErrorContext(ctx, "deploy lock lost to another holder", "key", c.key)
			return
		}
	}
}

// Probe sends a PING command to Redis and validates the PONG response. The call
// is wrapped in the circuit breaker; after 3 consecutive failures the breaker
// opens and subsequent calls return immediately with "circuit open".
func (c *RedisClient) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		val, err := c.client.Ping(ctx).Result()
		if err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}
		if val != "PONG" {
			return nil, fmt.Errorf("unexpected PING response: %q", val)
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
			Name:      redisProbeName,
			OK:        false,
			LatencyMs: latency,
			Error:     errMsg,
		}
	}

	return orchestrator.ProbeResult{
		Name:      redisProbeName,
		OK:        true,
		LatencyMs: latency,
	}
}

// Close releases the underlying connection pool.
func (c *RedisClient) Close() error {
	return c.client.Close()
}
