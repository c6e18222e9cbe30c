package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"repoharvest/internal/core/retry"
	"repoharvest/internal/platform/store/pg"
)

const (
	pingBackoffStart = 150 * time.Millisecond
	pingBackoffCap   = 2 * time.Second
)

// sleep is swapped in tests
var sleep retry.Sleeper = retry.Sleep

// openPG opens the pool, waits until it answers a ping, then wraps it with the sql adapter
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
	}, tracer, func(pc *pgxpool.Config) {
		if cfg.AppName == "" {
			return
		}
		if pc.ConnConfig.RuntimeParams == nil {
			pc.ConnConfig.RuntimeParams = map[string]string{}
		}
		pc.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
	})
	if err != nil {
		return nil, err
	}

	attempts := max(cfg.PG.ConnectRetries, 1)
	timeout := cfg.PG.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	var lastErr error
	for i := range attempts {
		toCtx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = p.Pool.Ping(toCtx)
		cancel()
		if lastErr == nil {
			return newPGAdapter(p), nil
		}
		s.Log.Warn().Err(lastErr).Int("attempt", i+1).Int("of", attempts).Msg("postgres not ready")
		if err := sleep(ctx, retry.Exponential(pingBackoffStart, i, pingBackoffCap)); err != nil {
			p.Close()
			return nil, err
		}
	}

	p.Close()
	return nil, fmt.Errorf("postgres ping failed after %d attempts: %w", attempts, lastErr)
}
