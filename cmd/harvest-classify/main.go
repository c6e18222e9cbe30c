package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"repoharvest/internal/modkit"
	"repoharvest/internal/platform/config"
	"repoharvest/internal/platform/logger"
	"repoharvest/internal/platform/store"

	classifymod "repoharvest/internal/services/classify/module"
	statushttp "repoharvest/internal/services/status/http"
)

const service = "harvest-classify"

func main() {
	var (
		fEnv     = flag.String("env", ".env", "comma-separated dotenv files loaded before reading config")
		fInput   = flag.String("input", "", "candidate log (overrides CORE_CLASSIFY_INPUT)")
		fWorkers = flag.Int("workers", 0, "concurrent inference calls, 0 keeps CORE_CLASSIFY_WORKERS")
		fBudget  = flag.Float64("budget", -1, "spend ceiling, 0 for unlimited")
		fStatus  = flag.String("status-addr", "", "serve /healthz and /v1/progress on this address")
		fRunID   = flag.String("run-id", "", "run id stamped into records, generated when empty")
	)
	flag.Parse()

	loaded, err := config.LoadDotenv(strings.Split(*fEnv, ",")...)
	l := logger.Get()
	if err != nil {
		l.Fatal().Err(err).Msg("dotenv load failed")
	}
	if len(loaded) > 0 {
		l.Debug().Strs("files", loaded).Msg("dotenv loaded")
	}

	root := config.New()
	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := store.Open(bootCtx, store.FromConfig(root, service), store.WithLogger(*l))
	cancelBoot()
	if err != nil {
		l.Fatal().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{Cfg: root, Log: *l}
	if st.Enabled() {
		deps.PG = st.PG
	}

	m, err := classifymod.New(deps, func(o *classifymod.Options) {
		if *fInput != "" {
			o.Input = *fInput
		}
		if *fWorkers > 0 {
			o.Workers = *fWorkers
		}
		if *fBudget >= 0 {
			o.Budget = *fBudget
		}
		if *fStatus != "" {
			o.StatusAddr = *fStatus
		}
		o.RunID = *fRunID
	})
	if err != nil {
		l.Fatal().Err(err).Msg("classify setup failed")
	}
	defer func() {
		if err := m.Close(); err != nil {
			l.Error().Err(err).Msg("failed to close logs")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRun(ctx, m.Options().RunID, "classify")

	// the status server outlives the run's cancellation until the summary is written
	srvCtx, stopSrv := context.WithCancel(context.WithoutCancel(ctx))
	srvDone := make(chan struct{})
	if addr := m.Options().StatusAddr; addr != "" {
		srv := statushttp.NewServer(addr, statushttp.Deps{
			ServiceName: service,
			StartedAt:   time.Now(),
			Status:      m.Status(),
			CORSOrigins: m.Options().StatusCORS,
		})
		go func() {
			defer close(srvDone)
			if err := srv.Run(srvCtx); err != nil {
				l.Error().Err(err).Msg("status server stopped")
			}
		}()
	} else {
		close(srvDone)
	}

	_, runErr := m.Runner().Run(ctx)
	stopSrv()
	<-srvDone
	if runErr != nil {
		stop()
		_ = m.Close()
		_ = st.Close()
		l.Fatal().Err(runErr).Msg("classification failed")
	}
}
