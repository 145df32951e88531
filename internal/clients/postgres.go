package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"github.com/dayniel-caadiang/logistics-api/internal/config"
	"github.com/dayniel-caadiang/logistics-api/internal/orchestrator"
)

const probeName = "postgres"

const appliedMigrationsSQL = "SELECT count(*) FROM django_migrations"

// dbPinger abstracts the pgxpool.Pool methods used in Probe so that tests
// can inject a fake without standing up a real database.
type dbPinger interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresClient checks the database the migrate step targets. It never
// changes the schema; migrations stay with manage.py.
type PostgresClient struct {
	cfg     config.DatabaseConfig
	cb      *gobreaker.CircuitBreaker
	connect func(ctx context.Context, cfg config.DatabaseConfig) (dbPinger, error)
}

// NewPostgresClient creates a PostgresClient that opens a pgx pool on each
// Probe. No connection is made at construction time.
func NewPostgresClient(cfg config.DatabaseConfig, cb *gobreaker.CircuitBreaker) *PostgresClient {
	return &PostgresClient{
		cfg:     cfg,
		cb:      cb,
		connect: realConnect,
	}
}

// Probe pings the server and counts the rows in django_migrations, which
// only exists once migrate has run at least once. The check runs inside
// the circuit breaker.
func (c *PostgresClient) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()

	applied, err := c.cb.Execute(func() (any, error) {
		pool, err := c.connect(ctx, c.cfg)
		if err != nil {
			return nil, err
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}

		var n int64
		if err := pool.QueryRow(ctx, appliedMigrationsSQL).Scan(&n); err != nil {
			return nil, fmt.Errorf("django_migrations unavailable: %w", err)
		}
		return n, nil
	})

	latency := time.Since(start).Milliseconds()

	if err != nil {
		errMsg := err.Error()
		if errors.Is(err, gobreaker.ErrOpenState) {
			errMsg = "circuit open"
		}
		return orchestrator.ProbeResult{
			Name:      probeName,
			OK:        false,
			LatencyMs: latency,
			Error:     errMsg,
		}
	}

	return orchestrator.ProbeResult{
		Name:      probeName,
		OK:        true,
		LatencyMs: latency,
		Detail:    fmt.Sprintf("%d migrations applied", applied),
	}
}

// realConnect opens a pgxpool.Pool for the configured DSN.
func realConnect(ctx context.Context, cfg config.DatabaseConfig) (dbPinger, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing postgres DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}

	return pool, nil
}
