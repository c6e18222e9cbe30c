package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"repoharvest/internal/platform/store/pg"
)

// pgx surfaces shared by the pool and a transaction
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// traced implements RowQuerier over any pgxQuerier and reports every
// statement to the tracer when one is configured
type traced struct {
	q      pgxQuerier
	tracer pg.QueryTracer
	slowMs int
}

func (t traced) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	start := time.Now()
	ct, err := t.q.Exec(ctx, sql, args...)
	t.emit(ctx, sql, args, start, err)
	return tag{ct}, err
}

func (t traced) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := t.q.Query(ctx, sql, args...)
	t.emit(ctx, sql, args, start, err)
	if err != nil {
		return nil, err
	}
	return rows{r: rs}, nil
}

func (t traced) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	r := t.q.QueryRow(ctx, sql, args...)
	return row{r: r, after: func(scanErr error) { t.emit(ctx, sql, args, start, scanErr) }}
}

func (t traced) emit(ctx context.Context, sql string, args []any, start time.Time, err error) {
	if t.tracer == nil {
		return
	}
	elapsedUS := time.Since(start).Microseconds()
	t.tracer.OnQuery(ctx, pg.QueryEvent{
		SQL:       sql,
		Args:      args,
		ElapsedUS: elapsedUS,
		Err:       err,
		Slow:      t.slowMs >= 0 && elapsedUS >= int64(t.slowMs)*1000,
	})
}

// pgAdapter is the pool-backed TxRunner
type pgAdapter struct {
	traced
	p *pg.PG
}

func newPGAdapter(p *pg.PG) *pgAdapter {
	return &pgAdapter{traced: traced{q: p.Pool, tracer: p.Tracer, slowMs: p.SlowMs}, p: p}
}

func (a *pgAdapter) Ping(ctx context.Context) error {
	if a == nil || a.p == nil {
		return errors.New("pg: nil adapter")
	}
	var one int
	return a.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (a *pgAdapter) Close() error { a.p.Close(); return nil }

func (a *pgAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	tx, err := a.p.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(traced{q: tx, tracer: a.tracer, slowMs: a.slowMs}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type row struct {
	r     pgx.Row
	after func(error)
}

func (x row) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if x.after != nil {
		x.after(err)
	}
	return err
}

type rows struct{ r pgx.Rows }

func (x rows) Next() bool            { return x.r.Next() }
func (x rows) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x rows) Err() error            { return x.r.Err() }
func (x rows) Close()                { x.r.Close() }
func (x rows) Columns() []string {
	f := x.r.FieldDescriptions()
	out := make([]string, len(f))
	for i := range f {
		out[i] = f[i].Name
	}
	return out
}

type tag struct{ t pgconn.CommandTag }

func (t tag) String() string      { return t.t.String() }
func (t tag) RowsAffected() int64 { return t.t.RowsAffected() }
