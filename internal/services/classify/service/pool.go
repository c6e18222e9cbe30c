package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"repoharvest/internal/adapters/inference"
	"repoharvest/internal/core/retry"
	perr "repoharvest/internal/platform/errors"
	"repoharvest/internal/platform/logger"
	"repoharvest/internal/services/classify/domain"
	harvest "repoharvest/internal/services/harvest/domain"
)

func (s *Service) waves(ctx context.Context, r *run, pending []harvest.Candidate) error {
	log := logger.C(ctx).With().Str("component", "classify").Logger()
	lim := rate.NewLimiter(rate.Inf, 1)
	if s.Cfg.RequestDelay > 0 {
		lim = rate.NewLimiter(rate.Every(s.Cfg.RequestDelay), 1)
	}

	for start := 0; start < len(pending); start += s.Cfg.CheckpointEvery {
		if ctx.Err() != nil {
			return nil
		}
		if r.over() {
			log.Warn().Float64("budget", s.Cfg.Budget).Msg("budget exhausted; no further submissions")
			return nil
		}
		end := min(start+s.Cfg.CheckpointEvery, len(pending))
		if err := s.wave(ctx, r, lim, pending[start:end]); err != nil {
			return err
		}
		if err := s.checkpoint(r); err != nil {
			return err
		}
		snap := r.snapshot()
		log.Info().
			Int("succeeded", snap.Succeeded).
			Int("failed", snap.Failed).
			Int("skipped", snap.Skipped).
			Int("pending", snap.Pending).
			Float64("cost", snap.Cost).
			Msg("checkpoint")
	}
	return nil
}

// wave submits items to the worker pool and waits for all of them to finish.
// The job channel is unbuffered so a record counts as submitted only once a worker holds it.
func (s *Service) wave(ctx context.Context, r *run, lim *rate.Limiter, items []harvest.Candidate) error {
	r.setPhase(domain.PhaseSubmitting)
	jobs := make(chan harvest.Candidate)
	g, gctx := errgroup.WithContext(ctx)
	for range s.Cfg.Workers {
		g.Go(func() error {
			for c := range jobs {
				if r.over() || gctx.Err() != nil {
					continue
				}
				if err := s.handle(gctx, r, c); err != nil {
					return err
				}
			}
			return nil
		})
	}

submit:
	for _, c := range items {
		if gctx.Err() != nil || r.over() {
			break
		}
		if err := lim.Wait(gctx); err != nil {
			break
		}
		select {
		case jobs <- c:
		case <-gctx.Done():
			break submit
		}
	}
	close(jobs)
	r.setPhase(domain.PhaseDraining)
	return g.Wait()
}

// handle classifies one record. In-flight calls are detached from
// cancellation so an interrupt lets them finish; retries stop on interrupt
// and leave the record pending.
func (s *Service) handle(ctx context.Context, r *run, c harvest.Candidate) error {
	log := logger.C(ctx).With().Str("component", "classify").Int64("id", c.ID).Str("repo", c.RepoName).Logger()
	if s.Cfg.SkipEmpty && !c.HasReadme() {
		r.skip(c.ID)
		return nil
	}

	req := inference.Request{System: s.Tax.SystemPrompt, User: domain.BuildPrompt(c, s.Cfg.PreviewRunes)}
	callCtx := context.WithoutCancel(ctx)
	var (
		an      domain.Analysis
		in, out int
		last    error
	)
	sleep := func(sctx context.Context, d time.Duration) error {
		if se, ok := inference.AsStatus(last); ok && se.RetryAfter > d {
			d = se.RetryAfter
		}
		log.Debug().Err(last).Dur("wait", d).Msg("retrying")
		return s.sleep(sctx, d)
	}
	attempts, err := retry.Do(ctx, s.policy(), sleep, perr.Transient, func(int) error {
		comp, err := s.Infer.Complete(callCtx, req)
		if err == nil {
			in += comp.InputTokens
			out += comp.OutputTokens
			an, err = domain.Decode(comp.Content, s.Tax)
		}
		last = err
		return err
	})
	cost := s.Cfg.Rates.Cost(in, out)

	if err != nil && ctx.Err() != nil && (attempts == 0 || perr.Transient(err)) {
		r.spend(in, out, cost)
		log.Debug().Msg("interrupted; left pending")
		return nil
	}

	now := s.now().UTC()
	if err != nil {
		code := perr.CodeOf(err).String()
		log.Warn().Err(err).Int("attempts", attempts).Str("code", code).Msg("classification failed")
		if s.Failures != nil {
			f := domain.Failure{
				RepoID: c.ID, RepoName: c.RepoName,
				Code: code, Error: err.Error(),
				Attempts: attempts, FailedAt: now, RunID: s.Cfg.RunID,
			}
			if aerr := s.Failures.Append(f); aerr != nil {
				r.spend(in, out, cost)
				return perr.Wrapf(aerr, perr.ErrorCodeIO, "append failure %d", c.ID)
			}
		}
		r.fail(c.ID, code, in, out, cost)
		return nil
	}

	res := domain.Result{
		RepoID:       c.ID,
		RepoName:     c.RepoName,
		RepoURL:      c.RepoURL,
		Stars:        c.Stars,
		Language:     c.Language,
		Topics:       c.Topics,
		Analysis:     an,
		TokensInput:  in,
		TokensOutput: out,
		Cost:         cost,
		Retries:      attempts - 1,
		Model:        s.Infer.Model(),
		RunID:        s.Cfg.RunID,
		AnalyzedAt:   now,
	}
	if err := s.Results.Append(res); err != nil {
		r.spend(in, out, cost)
		return perr.Wrapf(err, perr.ErrorCodeIO, "append result %d", c.ID)
	}
	s.Done.Add(c.ID)
	if s.Mirror != nil {
		mctx, cancel := context.WithTimeout(callCtx, s.Cfg.MirrorTimeout)
		err := s.Mirror.SaveResult(mctx, res)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("result mirror write failed")
		}
	}
	r.succeed(c.ID, in, out, cost, an)
	return nil
}
