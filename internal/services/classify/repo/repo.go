// Package repo provides the Postgres mirror for classification results.
package repo

import (
	"context"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"

	"repoharvest/internal/modkit/repokit"
	perr "repoharvest/internal/platform/errors"
	"repoharvest/internal/services/classify/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the classification mirror
type Storage interface {
	EnsureSchema(ctx context.Context) error
	Insert(ctx context.Context, r domain.Result) (bool, error)
	CountByRun(ctx context.Context, runID string) (int, error)
}

const schema = `CREATE TABLE IF NOT EXISTS classifications (
	repo_id       bigint PRIMARY KEY,
	repo_name     text NOT NULL,
	analysis      jsonb NOT NULL,
	tokens_input  integer NOT NULL DEFAULT 0,
	tokens_output integer NOT NULL DEFAULT 0,
	cost          double precision NOT NULL DEFAULT 0,
	model         text NOT NULL DEFAULT '',
	run_id        text NOT NULL DEFAULT '',
	analyzed_at   timestamptz NOT NULL
)`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// EnsureSchema creates the classifications table when missing
func (s *pg) EnsureSchema(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, schema); err != nil {
		return perr.FromPostgres(err, "create classifications")
	}
	return nil
}

// Insert writes one result; an existing row for the repo wins and false is returned
func (s *pg) Insert(ctx context.Context, r domain.Result) (bool, error) {
	an, err := json.Marshal(r.Analysis)
	if err != nil {
		return false, perr.Wrap(err, perr.ErrorCodeJSON, "marshal analysis")
	}
	query, args, err := psql.Insert("classifications").
		Columns("repo_id", "repo_name", "analysis", "tokens_input", "tokens_output", "cost", "model", "run_id", "analyzed_at").
		Values(r.RepoID, r.RepoName, sq.Expr("?::jsonb", string(an)), r.TokensInput, r.TokensOutput, r.Cost, r.Model, r.RunID, r.AnalyzedAt).
		Suffix("ON CONFLICT (repo_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, perr.Wrap(err, perr.ErrorCodeDB, "build insert")
	}
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return false, perr.FromPostgres(err, "insert classification")
	}
	return tag != nil && tag.RowsAffected() == 1, nil
}

// CountByRun returns how many rows a run wrote
func (s *pg) CountByRun(ctx context.Context, runID string) (int, error) {
	query, args, err := psql.Select("count(*)").From("classifications").Where(sq.Eq{"run_id": runID}).ToSql()
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeDB, "build count")
	}
	var n int
	if err := s.q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, perr.FromPostgres(err, "count classifications")
	}
	return n, nil
}

// Mirror adapts Storage to domain.Mirror, running each write in its own transaction
type Mirror struct {
	tx   repokit.TxRunner
	bind repokit.Binder[Storage]
}

// NewMirror returns a Mirror over tx
func NewMirror(tx repokit.TxRunner, b repokit.Binder[Storage]) *Mirror {
	if tx == nil {
		panic("repo.NewMirror requires a TxRunner")
	}
	if b == nil {
		b = NewPG()
	}
	return &Mirror{tx: tx, bind: b}
}

// Init ensures the table exists
func (m *Mirror) Init(ctx context.Context) error {
	return repokit.MustBind(m.bind, m.tx).EnsureSchema(ctx)
}

// SaveResult implements domain.Mirror
func (m *Mirror) SaveResult(ctx context.Context, r domain.Result) error {
	return repokit.WithTx(ctx, m.tx, func(q repokit.Queryer) error {
		_, err := repokit.MustBind(m.bind, q).Insert(ctx, r)
		return err
	})
}

// Count implements domain.Mirror
func (m *Mirror) Count(ctx context.Context, runID string) (int, error) {
	return repokit.MustBind(m.bind, m.tx).CountByRun(ctx, runID)
}

var _ domain.Mirror = (*Mirror)(nil)
