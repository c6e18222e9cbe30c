package modkit

import (
	"repoharvest/internal/modkit/repokit"
	"repoharvest/internal/platform/config"
	"repoharvest/internal/platform/logger"
)

// Deps holds the shared dependencies handed to every module.
// PG is nil when the Postgres mirror is not configured.
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
}

// HasPG reports whether the Postgres mirror is wired
func (d Deps) HasPG() bool { return d.PG != nil }
