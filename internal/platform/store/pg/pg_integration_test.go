//go:build integration_pg

package pg

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"repoharvest/internal/platform/store/pgtest"
)

func TestOpen_RoundTrip_Integration(t *testing.T) {
	dsn := pgtest.Start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	const appName = "repoharvest-pg-integration"
	p, err := Open(ctx, Config{URL: dsn, MaxConns: 2}, nil, func(pc *pgxpool.Config) {
		if pc.ConnConfig.RuntimeParams == nil {
			pc.ConnConfig.RuntimeParams = map[string]string{}
		}
		pc.ConnConfig.RuntimeParams["application_name"] = appName
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(p.Close)

	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `create temporary table c (repo_id bigint primary key, analysis jsonb)`); err != nil {
		t.Fatalf("create temp table: %v", err)
	}
	for range 2 {
		if _, err := conn.Exec(ctx, `insert into c (repo_id, analysis) values ($1, $2) on conflict (repo_id) do nothing`,
			int64(42), `{"complexity_level":3}`); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	rows, err := conn.Query(ctx, `select repo_id from c`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(ids) != 1 || ids[0] != 42 {
		t.Fatalf("ids = %v", ids)
	}

	var gotApp string
	if err := conn.QueryRow(ctx, `select current_setting('application_name')`).Scan(&gotApp); err != nil {
		t.Fatalf("application_name: %v", err)
	}
	if gotApp != appName {
		t.Fatalf("application_name = %q", gotApp)
	}
}
