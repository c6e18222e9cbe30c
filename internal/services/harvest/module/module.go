// Package module wires the acquisition stage from configuration
package module

import (
	"math/rand/v2"

	"repoharvest/internal/adapters/github"
	"repoharvest/internal/core/dedup"
	"repoharvest/internal/core/noise"
	"repoharvest/internal/core/sampler"
	"repoharvest/internal/core/version"
	"repoharvest/internal/modkit"
	perr "repoharvest/internal/platform/errors"
	"repoharvest/internal/platform/ndjson"
	"repoharvest/internal/services/harvest/domain"
	"repoharvest/internal/services/harvest/ingest"
	"repoharvest/internal/services/harvest/service"
)

// Ports defines the harvest module ports
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the acquisition module
type Module struct {
	deps  modkit.Deps
	opts  Options
	out   *ndjson.Writer
	ports Ports
}

// New builds the module from deps.Cfg; overrides run after config is read (CLI flags).
// The candidate log is opened and indexed here so a bad path fails before any request.
func New(deps modkit.Deps, overrides ...func(*Options)) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	for _, fn := range overrides {
		fn(&opts)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log := deps.Log.With().Str("component", "harvest").Logger()

	rules, err := noise.LoadRules(opts.NoiseRules)
	if err != nil {
		return nil, err
	}
	filter, err := noise.New(rules)
	if err != nil {
		return nil, err
	}

	if opts.Seed == 0 {
		opts.Seed = rand.Uint64()
		log.Info().Uint64("seed", opts.Seed).Msg("no sampler seed configured; generated one")
	}
	smp, err := sampler.New(sampler.Options{Threshold: opts.Threshold, Rate: opts.SampleRate, Seed: opts.Seed})
	if err != nil {
		return nil, err
	}

	seen := dedup.New()
	ds, err := dedup.LoadFile(seen, opts.Output, func(c domain.Candidate) int64 { return c.ID })
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "load candidate log %s", opts.Output)
	}
	log.Info().
		Str("path", opts.Output).
		Int("records", ds.Records).
		Int("duplicates", ds.Duplicates).
		Int("skipped", ds.Skipped).
		Msg("candidate log indexed")

	out, err := ndjson.Open(opts.Output)
	if err != nil {
		return nil, err
	}

	gh := github.NewClient(github.Options{
		BaseURL:   opts.GitHub.APIURL,
		UserAgent: version.UserAgent("harvest-crawl"),
		Timeout:   opts.GitHub.Timeout,
		TokensCSV: opts.GitHub.TokensCSV(),
	})
	log.Info().Int("tokens", gh.Tokens()).Msg("github client ready")

	svc := service.New(
		service.NewPageWalker(gh, opts.PerPage, opts.MaxPages),
		gh, filter, smp, seen, out,
		ingest.NewReadmeCleaner(opts.StripHTML, opts.ReadmeMaxRunes),
		service.Config{
			Start:       opts.Start,
			End:         opts.End,
			TargetTotal: opts.TargetTotal,
			SizeRange:   opts.SizeRange,
			StarsRange:  opts.StarsRange,
			ExtraTerms:  opts.ExtraTerms,
			PauseEvery:  opts.PauseEvery,
			PauseScan:   opts.PauseScan,
			PauseDay:    opts.PauseDay,
			FetchReadme: opts.FetchReadme,
		},
	)

	return &Module{deps: deps, opts: opts, out: out, ports: Ports{Runner: svc}}, nil
}

// Name returns the module name
func (m *Module) Name() string { return "harvest" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Runner returns the typed runner port
func (m *Module) Runner() domain.RunnerPort { return m.ports.Runner }

// Options returns the resolved options, including a generated seed
func (m *Module) Options() Options { return m.opts }

// Close closes the candidate log
func (m *Module) Close() error { return m.out.Close() }

var _ modkit.Module = (*Module)(nil)
