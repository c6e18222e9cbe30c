package pg

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"repoharvest/internal/platform/logger"
)

// QueryEvent describes one finished statement
type QueryEvent struct {
	SQL       string
	Args      any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives every statement the store adapter runs
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer logs statements at Info (Warn when slow) regardless of the root level
func Tracer(root logger.Logger) QueryTracer {
	ll := root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()
	return &zlTracer{log: ll}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(ctx context.Context, ev QueryEvent) {
	evt := z.log.Info()
	if ev.Slow {
		evt = z.log.Warn()
	}
	if id := logger.RunID(ctx); id != "" {
		evt = evt.Str("run_id", id)
	}
	evt.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0).
		Bool("slow", ev.Slow).
		Str("sql", compact(ev.SQL)).
		Interface("args", ev.Args).
		Err(ev.Err).
		Msg("pg query")
}

// compact collapses whitespace runs so multi-line statements log on one line
func compact(s string) string { return strings.Join(strings.Fields(s), " ") }
