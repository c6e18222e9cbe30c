package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"repoharvest/internal/modkit"
	"repoharvest/internal/platform/config"
	"repoharvest/internal/platform/logger"

	harvestmod "repoharvest/internal/services/harvest/module"
)

func main() {
	var (
		fEnv    = flag.String("env", ".env", "comma-separated dotenv files loaded before reading config")
		fStart  = flag.String("start", "", "first creation day YYYY-MM-DD (overrides CORE_HARVEST_START_DATE)")
		fEnd    = flag.String("end", "", "last creation day YYYY-MM-DD inclusive, default today")
		fOutput = flag.String("output", "", "candidate log path (overrides CORE_HARVEST_OUTPUT)")
		fTarget = flag.Int("target", -1, "stop once the log holds this many candidates, 0 for no limit")
		fSeed   = flag.Uint64("seed", 0, "sampler seed, 0 keeps the configured or a generated one")
	)
	flag.Parse()

	// dotenv first so LOG_* reaches the root logger
	loaded, err := config.LoadDotenv(strings.Split(*fEnv, ",")...)
	l := logger.Get()
	if err != nil {
		l.Fatal().Err(err).Msg("dotenv load failed")
	}
	if len(loaded) > 0 {
		l.Debug().Strs("files", loaded).Msg("dotenv loaded")
	}

	var start, end time.Time
	if *fStart != "" {
		if start, err = time.Parse(config.DateLayout, *fStart); err != nil {
			l.Fatal().Err(err).Msg("bad -start")
		}
	}
	if *fEnd != "" {
		if end, err = time.Parse(config.DateLayout, *fEnd); err != nil {
			l.Fatal().Err(err).Msg("bad -end")
		}
	}

	deps := modkit.Deps{Cfg: config.New(), Log: *l}
	m, err := harvestmod.New(deps, func(o *harvestmod.Options) {
		if !start.IsZero() {
			o.Start = start
		}
		if !end.IsZero() {
			o.End = end
		}
		if *fOutput != "" {
			o.Output = *fOutput
		}
		if *fTarget >= 0 {
			o.TargetTotal = *fTarget
		}
		if *fSeed != 0 {
			o.Seed = *fSeed
		}
	})
	if err != nil {
		l.Fatal().Err(err).Msg("harvest setup failed")
	}
	defer func() {
		if err := m.Close(); err != nil {
			l.Error().Err(err).Msg("failed to close candidate log")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRun(ctx, uuid.NewString(), "harvest")

	if _, err := m.Runner().Run(ctx); err != nil {
		// Fatal exits without running defers
		stop()
		_ = m.Close()
		l.Fatal().Err(err).Msg("harvest failed")
	}
}
