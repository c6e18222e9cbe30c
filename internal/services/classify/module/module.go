// Package module wires the classification stage from configuration
package module

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	"repoharvest/internal/adapters/inference"
	"repoharvest/internal/core/dedup"
	"repoharvest/internal/modkit"
	perr "repoharvest/internal/platform/errors"
	"repoharvest/internal/platform/ndjson"
	"repoharvest/internal/services/classify/domain"
	"repoharvest/internal/services/classify/repo"
	"repoharvest/internal/services/classify/service"
)

const mirrorInitTimeout = 10 * time.Second

// Ports defines the classify module ports
type Ports struct {
	Runner domain.RunnerPort
	Status domain.StatusPort
}

// Module implements the classification module
type Module struct {
	deps     modkit.Deps
	opts     Options
	results  *ndjson.Writer
	failures *ndjson.Writer
	ports    Ports
}

// New builds the module from deps.Cfg; overrides run after config is read (CLI flags).
// The result log is indexed before anything is sent so ids already classified are never paid for twice.
func New(deps modkit.Deps, overrides ...func(*Options)) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	for _, fn := range overrides {
		fn(&opts)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	log := deps.Log.With().Str("component", "classify").Str("run_id", opts.RunID).Logger()

	if _, err := os.Stat(opts.Input); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "candidate log %s", opts.Input)
	}

	tax, err := domain.LoadTaxonomy(opts.Taxonomy)
	if err != nil {
		return nil, err
	}

	done := dedup.New()
	ds, err := dedup.LoadFile(done, opts.Results, func(r domain.Result) int64 { return r.RepoID })
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "load result log %s", opts.Results)
	}
	log.Info().
		Str("path", opts.Results).
		Int("records", ds.Records).
		Int("duplicates", ds.Duplicates).
		Int("skipped", ds.Skipped).
		Msg("result log indexed")

	results, err := ndjson.Open(opts.Results)
	if err != nil {
		return nil, err
	}
	failures, err := ndjson.Open(opts.Failures)
	if err != nil {
		_ = results.Close()
		return nil, err
	}

	client := inference.NewClient(inference.Options{
		Endpoint:    opts.Infer.Endpoint,
		APIKey:      opts.Infer.APIKey,
		Model:       opts.Infer.Model,
		Temperature: opts.Infer.Temperature,
		MaxTokens:   opts.Infer.MaxTokens,
		Timeout:     opts.Infer.Timeout,
		JSONMode:    opts.Infer.JSONMode,
	})
	log.Info().Str("model", client.Model()).Int("workers", opts.Workers).Msg("inference client ready")

	svc := service.New(client, tax, results, failures, service.NewProgressStore(opts.Progress), done, service.Config{
		Input:           opts.Input,
		Workers:         opts.Workers,
		RequestDelay:    opts.RequestDelay,
		MaxRetries:      opts.MaxRetries,
		RetryBase:       opts.RetryBase,
		CheckpointEvery: opts.CheckpointEvery,
		PreviewRunes:    opts.PreviewRunes,
		SkipEmpty:       opts.SkipEmpty,
		Rates:           service.Rates{InputPerM: opts.RateIn, OutputPerM: opts.RateOut},
		Budget:          opts.Budget,
		EstCostPerItem:  opts.EstCostPerItem,
		MirrorTimeout:   opts.MirrorTimeout,
		RunID:           opts.RunID,
	})

	if deps.HasPG() {
		m := repo.NewMirror(deps.PG, repo.NewPG())
		ctx, cancel := context.WithTimeout(context.Background(), mirrorInitTimeout)
		err := m.Init(ctx)
		cancel()
		if err != nil {
			_ = results.Close()
			_ = failures.Close()
			return nil, err
		}
		svc.WithMirror(m)
		log.Info().Msg("postgres result mirror enabled")
	}

	return &Module{
		deps:     deps,
		opts:     opts,
		results:  results,
		failures: failures,
		ports:    Ports{Runner: svc, Status: svc},
	}, nil
}

// Name returns the module name
func (m *Module) Name() string { return "classify" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Runner returns the typed runner port
func (m *Module) Runner() domain.RunnerPort { return m.ports.Runner }

// Status returns the typed status port
func (m *Module) Status() domain.StatusPort { return m.ports.Status }

// Options returns the resolved options, including a generated run id
func (m *Module) Options() Options { return m.opts }

// Close closes the result and failure logs
func (m *Module) Close() error {
	return errors.Join(m.results.Close(), m.failures.Close())
}

var _ modkit.Module = (*Module)(nil)
