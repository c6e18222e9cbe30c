package modkit

import (
	"context"
	"testing"

	"repoharvest/internal/modkit/repokit"
	"repoharvest/internal/platform/config"
	"repoharvest/internal/platform/store"
)

type nopTx struct{}

func (nopTx) Tx(context.Context, func(q store.RowQuerier) error) error { return nil }
func (nopTx) Exec(context.Context, string, ...any) (store.CommandTag, error) {
	return nil, nil
}
func (nopTx) Query(context.Context, string, ...any) (store.Rows, error) { return nil, nil }
func (nopTx) QueryRow(context.Context, string, ...any) store.Row        { return nil }

var _ repokit.TxRunner = nopTx{}

func TestDeps_HasPG(t *testing.T) {
	t.Parallel()
	var d Deps
	if d.HasPG() {
		t.Fatal("zero Deps should not report a PG mirror")
	}
	d = Deps{Cfg: config.New(), PG: nopTx{}}
	if !d.HasPG() {
		t.Fatal("Deps with PG should report it")
	}
}
