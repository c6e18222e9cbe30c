// Package pg opens a pgxpool for the classification mirror, with an optional query tracer
package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config configures pgxpool for pg
type Config struct {
	URL      string
	MaxConns int32
	SlowMs   int
}

// PG is a postgres pool plus the tracer its adapter reports to
type PG struct {
	Pool   *pgxpool.Pool
	Tracer QueryTracer
	SlowMs int
}

var newPool = pgxpool.NewWithConfig

// Open parses cfg.URL, applies MaxConns and the optional mutator, and creates the pool.
// It does not ping; callers decide how long to wait for the server.
func Open(ctx context.Context, cfg Config, tracer QueryTracer, poolCfgMut func(*pgxpool.Config)) (*PG, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if poolCfgMut != nil {
		poolCfgMut(pcfg)
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &PG{Pool: pool, Tracer: tracer, SlowMs: cfg.SlowMs}, nil
}

// Close closes the pool; nil safe
func (p *PG) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}
