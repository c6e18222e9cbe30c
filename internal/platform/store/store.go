// Package store opens the optional Postgres mirror behind a small SQL seam.
// A zero Store is valid and means the mirror is disabled.
package store

import (
	"context"
	"errors"
	"fmt"

	"repoharvest/internal/platform/logger"
)

// Store holds the opened backends
type Store struct {
	Log logger.Logger

	// PG is nil when SERVICE_PGSQL_DBURL is unset
	PG TxRunner
}

// Row exposes the minimal scan contract a single row needs
type Row interface {
	Scan(dest ...any) error
}

// Rows exposes the minimal iteration and scan for a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
	Columns() []string
}

// CommandTag reports what a write touched
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the read and write surface repos use for sql
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner wraps transaction execution around a function
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Pinger is any seam that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Open connects the backends enabled in cfg
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	s.Log = s.Log.With().Str("component", "store").Logger()

	if cfg.PG.Enabled {
		pgClient, err := openPG(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.PG = pgClient
	}
	return s, nil
}

// Enabled reports whether any backend is connected
func (s *Store) Enabled() bool { return s != nil && s.PG != nil }

// Guard pings every connected backend
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	if s.PG == nil {
		return nil
	}
	if p, ok := s.PG.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
	}
	return nil
}

// Close releases connected backends; nil backends are ignored
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	if c, ok := s.PG.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
