// Package service runs the classification stage: a fixed pool of workers
// sends each pending candidate to the inference endpoint under a cost budget,
// appends results, and checkpoints progress after every submission wave.
package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"repoharvest/internal/core/dedup"
	"repoharvest/internal/core/retry"
	perr "repoharvest/internal/platform/errors"
	"repoharvest/internal/platform/logger"
	"repoharvest/internal/platform/ndjson"
	"repoharvest/internal/services/classify/domain"
	harvest "repoharvest/internal/services/harvest/domain"
)

// Config holds the classification run settings
type Config struct {
	Input string // candidate log

	Workers         int           // <=0 -> 5
	RequestDelay    time.Duration // minimum spacing between submissions
	MaxRetries      int           // total attempts per record; <=0 -> 3
	RetryBase       time.Duration // backoff base; <=0 -> 2s
	CheckpointEvery int           // submissions per wave; <=0 -> 10

	PreviewRunes int
	SkipEmpty    bool

	Rates          Rates
	Budget         float64 // <=0 -> unlimited
	EstCostPerItem float64

	MirrorTimeout time.Duration // per mirror write; <=0 -> 10s

	RunID string
}

// Service implements domain.RunnerPort and domain.StatusPort
type Service struct {
	Infer    domain.Inferencer
	Tax      domain.Taxonomy
	Results  domain.Sink
	Failures domain.Sink
	Progress *ProgressStore
	Done     *dedup.Index // ids present in the result log
	Mirror   domain.Mirror
	Cfg      Config

	sleep retry.Sleeper
	now   func() time.Time
	cur   atomic.Pointer[run]
}

// New constructs the classification service
func New(
	infer domain.Inferencer,
	tax domain.Taxonomy,
	results, failures domain.Sink,
	progress *ProgressStore,
	done *dedup.Index,
	cfg Config,
) *Service {
	if infer == nil || results == nil || progress == nil {
		panic("classify.Service requires an inferencer, a result sink and a progress store")
	}
	if done == nil {
		done = dedup.New()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 2 * time.Second
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 10
	}
	if cfg.MirrorTimeout <= 0 {
		cfg.MirrorTimeout = 10 * time.Second
	}
	return &Service{
		Infer: infer, Tax: tax,
		Results: results, Failures: failures,
		Progress: progress, Done: done, Cfg: cfg,
		sleep: retry.Sleep,
		now:   time.Now,
	}
}

// WithMirror wires an optional secondary result store
func (s *Service) WithMirror(m domain.Mirror) *Service {
	s.Mirror = m
	return s
}

// Snapshot returns the live view of the current or last run
func (s *Service) Snapshot() domain.Snapshot {
	if r := s.cur.Load(); r != nil {
		return r.snapshot()
	}
	return domain.Snapshot{RunID: s.Cfg.RunID, Phase: domain.PhaseIdle, Budget: s.Cfg.Budget}
}

func (s *Service) policy() retry.Policy {
	p := retry.InferencePolicy()
	p.MaxAttempts = s.Cfg.MaxRetries
	p.Base = s.Cfg.RetryBase
	return p
}

// Run classifies every pending candidate. Interruption and budget exhaustion
// end the run cleanly with a nil error; only progress, input or durable write
// failures are returned.
func (s *Service) Run(ctx context.Context) (domain.Snapshot, error) {
	log := logger.C(ctx).With().Str("component", "classify").Logger()

	p, err := s.Progress.Load()
	if err != nil {
		return s.Snapshot(), err
	}
	r := newRun(s.Cfg.RunID, p, s.Cfg.Budget, s.Tax.Tally, s.now())
	r.setPhase(domain.PhaseLoadingProgress)
	s.cur.Store(r)

	pending, err := s.pending(r)
	if err != nil {
		return r.snapshot(), err
	}
	snap := r.snapshot()
	log.Info().
		Int("total", snap.Total).
		Int("processed", snap.Processed).
		Int("failed_before", len(p.FailedIDs)).
		Int("pending", len(pending)).
		Float64("spent", snap.Cost).
		Float64("budget", snap.Budget).
		Msg("classification starting")

	if est := float64(len(pending)) * s.Cfg.EstCostPerItem; s.Cfg.Budget > 0 && est > r.budget.Remaining() {
		log.Warn().Float64("estimate", est).Float64("remaining", r.budget.Remaining()).Msg("estimated cost exceeds remaining budget")
	}

	werr := s.waves(ctx, r, pending)
	if ctx.Err() != nil {
		r.mu.Lock()
		r.interrupted = true
		r.mu.Unlock()
	}
	cerr := s.checkpoint(r)
	r.setPhase(domain.PhaseDone)

	snap = r.snapshot()
	s.summary(ctx, snap, werr)
	s.mirrorSummary(ctx)
	return snap, errors.Join(werr, cerr)
}

// pending loads the candidate log and returns records not yet processed, in log order
func (s *Service) pending(r *run) ([]harvest.Candidate, error) {
	var out []harvest.Candidate
	queued := map[int64]struct{}{}
	st, err := ndjson.ScanFile(s.Cfg.Input, func(c harvest.Candidate) error {
		if c.ID <= 0 {
			return nil
		}
		if _, dup := queued[c.ID]; dup {
			return nil
		}
		queued[c.ID] = struct{}{}
		if s.Done.Has(c.ID) {
			r.markProcessed(c.ID)
			return nil
		}
		if r.isProcessed(c.ID) {
			return nil
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "read candidate log %s", s.Cfg.Input)
	}
	if st.Skipped > 0 {
		logger.Named("classify").Warn().Int("skipped", st.Skipped).Msg("candidate log has unreadable lines")
	}
	r.mu.Lock()
	r.total = len(queued)
	r.pending = len(out)
	r.mu.Unlock()
	return out, nil
}

func (s *Service) checkpoint(r *run) error {
	r.setPhase(domain.PhaseCheckpointing)
	now := s.now()
	if err := s.Progress.Save(r.progress(now)); err != nil {
		return err
	}
	r.mu.Lock()
	r.lastCheckpoint = now.UTC()
	r.mu.Unlock()
	return nil
}

func (s *Service) summary(ctx context.Context, snap domain.Snapshot, err error) {
	l := logger.C(ctx)
	var ev *zerolog.Event
	switch {
	case err != nil:
		ev = l.Error().Err(err).Str("outcome", "failed")
	case snap.Interrupted:
		ev = l.Warn().Str("outcome", "interrupted")
	case snap.OverBudget:
		ev = l.Warn().Str("outcome", "budget_exhausted")
	default:
		ev = l.Info().Str("outcome", "done")
	}
	ev.Str("component", "classify").
		Int("total", snap.Total).
		Int("succeeded", snap.Succeeded).
		Int("failed", snap.Failed).
		Int("skipped", snap.Skipped).
		Int("pending", snap.Pending).
		Interface("failures_by_code", snap.FailuresByCode).
		Interface("tallies", snap.Tallies).
		Int64("tokens_input", snap.TokensInput).
		Int64("tokens_output", snap.TokensOutput).
		Float64("cost", snap.Cost).
		Float64("budget", snap.Budget).
		Msg("classification summary")
}

func (s *Service) mirrorSummary(ctx context.Context) {
	if s.Mirror == nil {
		return
	}
	l := logger.C(ctx)
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Cfg.MirrorTimeout)
	defer cancel()
	n, err := s.Mirror.Count(mctx, s.Cfg.RunID)
	if err != nil {
		l.Warn().Err(err).Str("component", "classify").Msg("result mirror count failed")
		return
	}
	l.Info().Str("component", "classify").Int("mirrored", n).Msg("result mirror summary")
}
