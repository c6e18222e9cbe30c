// Package logger wraps zerolog with process-wide defaults and run-scoped fields
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"repoharvest/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Options configures the root logger
type Options struct {
	Level        string
	Format       string
	Service      string
	Writer       io.Writer
	WithCaller   bool
	StaticFields map[string]string
}

// FromEnv builds Options from LOG_* using the raw config view (no import cycle)
func FromEnv() Options {
	rc := raw.New().Prefix("LOG_")
	return Options{
		Level:      strings.ToLower(rc.Get("LEVEL", "info")),
		Format:     strings.ToLower(rc.Get("FORMAT", "console")),
		Service:    rc.Get("SERVICE", "repoharvest"),
		WithCaller: rc.GetBool("CALLER", false),
	}
}

var (
	once   sync.Once
	root   atomic.Pointer[zerolog.Logger]
	inited atomic.Bool
)

// Logger is the project-wide logging type
type Logger = zerolog.Logger

// Get returns the process-wide root logger, initialising it from env on first use
func Get() *Logger {
	if !inited.Load() {
		Init(FromEnv())
	}
	return root.Load()
}

// Init configures zerolog and stores the root logger; only the first call wins
func Init(opt Options) {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		var w io.Writer = os.Stderr
		if opt.Writer != nil {
			w = opt.Writer
		}
		if opt.Format == "console" {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
		}

		zc := zerolog.New(w).Level(ParseLevel(opt.Level)).With().Timestamp()
		if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
			zc = zc.Str("go_version", bi.GoVersion)
		}
		if opt.Service != "" {
			zc = zc.Str("service", opt.Service)
		}
		for k, v := range opt.StaticFields {
			zc = zc.Str(k, v)
		}

		log := zc.Logger()
		if opt.WithCaller {
			log = log.With().Caller().Logger()
		}
		root.Store(&log)
		inited.Store(true)
	})
}

// ParseLevel maps a level name to a zerolog level; unknown names mean info
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

type ctxKey struct{ name string }

var (
	keyRunID = ctxKey{"run_id"}
	keyStage = ctxKey{"stage"}
)

// WithRun annotates ctx with the run id and pipeline stage
func WithRun(ctx context.Context, runID, stage string) context.Context {
	if runID != "" {
		ctx = context.WithValue(ctx, keyRunID, runID)
	}
	if stage != "" {
		ctx = context.WithValue(ctx, keyStage, stage)
	}
	return ctx
}

// RunID returns the run id stored by WithRun, or ""
func RunID(ctx context.Context) string {
	s, _ := ctx.Value(keyRunID).(string)
	return s
}

// C returns a child logger carrying run_id and stage from ctx
func C(ctx context.Context) *Logger {
	b := Get().With()
	if s, ok := ctx.Value(keyRunID).(string); ok && s != "" {
		b = b.Str("run_id", s)
	}
	if s, ok := ctx.Value(keyStage).(string); ok && s != "" {
		b = b.Str("stage", s)
	}
	ll := b.Logger()
	return &ll
}

// Named returns a child logger with a component field
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	ll := Get().With().Str("component", component).Logger()
	return &ll
}
