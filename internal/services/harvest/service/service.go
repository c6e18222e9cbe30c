// Package service runs the acquisition stage: day-by-day search, noise
// filtering, stratified sampling, dedup, README enrichment and durable append
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"repoharvest/internal/adapters/github"
	"repoharvest/internal/core/dedup"
	"repoharvest/internal/core/noise"
	"repoharvest/internal/core/retry"
	"repoharvest/internal/core/sampler"
	perr "repoharvest/internal/platform/errors"
	"repoharvest/internal/platform/logger"
	pstrings "repoharvest/internal/platform/strings"
	ptime "repoharvest/internal/platform/time"
	"repoharvest/internal/platform/validate"
	"repoharvest/internal/services/harvest/domain"
)

// Config holds the acquisition run settings
type Config struct {
	// Creation-day window, both ends inclusive, UTC
	Start time.Time
	End   time.Time

	// Stop once the candidate log holds this many records; <=0 means no ceiling
	TargetTotal int

	// Search qualifiers
	SizeRange  string // e.g. 50..80000
	StarsRange string // e.g. 0..3000
	ExtraTerms []string

	// Pacing for the secondary rate limiter
	PauseEvery int           // scanned repos between short pauses; <=0 disables
	PauseScan  time.Duration // the short pause
	PauseDay   time.Duration // pause after each day

	FetchReadme bool
}

// Service implements domain.RunnerPort
type Service struct {
	Walker  *PageWalker
	Readmes domain.ReadmeFetcher
	Filter  *noise.Filter
	Sampler *sampler.Sampler
	Seen    *dedup.Index
	Sink    domain.Sink
	Cleaner domain.Cleaner
	Cfg     Config

	sleep retry.Sleeper
	now   func() time.Time
}

// New constructs the acquisition service
func New(
	w *PageWalker,
	readmes domain.ReadmeFetcher,
	f *noise.Filter,
	smp *sampler.Sampler,
	seen *dedup.Index,
	sink domain.Sink,
	cleaner domain.Cleaner,
	cfg Config,
) *Service {
	if w == nil || f == nil || smp == nil || seen == nil || sink == nil {
		panic("harvest.Service requires walker, filter, sampler, dedup index and sink")
	}
	if cfg.FetchReadme && readmes == nil {
		panic("harvest.Service requires a README fetcher when FetchReadme is set")
	}
	return &Service{
		Walker: w, Readmes: readmes, Filter: f, Sampler: smp,
		Seen: seen, Sink: sink, Cleaner: cleaner, Cfg: cfg,
		sleep: retry.Sleep,
		now:   time.Now,
	}
}

// DayQuery builds the search query for repositories created on day
func DayQuery(day time.Time, cfg Config) github.SearchQuery {
	d := day.UTC()
	parts := []string{"created:" + d.Format(time.DateOnly)}
	if cfg.SizeRange != "" {
		parts = append(parts, "size:"+cfg.SizeRange)
	}
	parts = append(parts, "pushed:>"+d.AddDate(0, 0, 1).Format(time.DateOnly))
	if cfg.StarsRange != "" {
		parts = append(parts, "stars:"+cfg.StarsRange)
	}
	parts = append(parts, cfg.ExtraTerms...)
	return github.SearchQuery{Q: strings.Join(parts, " "), Sort: "updated", Order: "desc"}
}

// run is the per-invocation state; acquisition is single goroutine so it carries no lock
type run struct {
	stats   domain.Stats
	fatal   error
	stopped bool
}

// Run walks every day in the window and appends kept candidates.
// It returns early with the context error on cancellation and with an IO
// error when an append fails; stats are valid in both cases.
func (s *Service) Run(ctx context.Context) (domain.Stats, error) {
	log := logger.C(ctx).With().Str("component", "harvest").Logger()
	start := ptime.Day(s.Cfg.Start)
	end := ptime.Day(s.Cfg.End)
	if end.IsZero() {
		end = ptime.Day(s.now())
	}
	if start.IsZero() || end.Before(start) {
		return domain.NewStats(), perr.InvalidArgf("harvest window %s..%s is empty", start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	r := &run{stats: domain.NewStats()}
	r.stats.Resumed = s.Seen.Len()
	log.Info().
		Str("start", start.Format(time.DateOnly)).
		Str("end", end.Format(time.DateOnly)).
		Int("days", ptime.Days(start, end)).
		Int("resumed", r.stats.Resumed).
		Int("target", s.Cfg.TargetTotal).
		Msg("acquisition starting")

	err := s.walkDays(ctx, r, start, end)
	if errors.Is(err, context.Canceled) {
		// every appended record is already durable; a rerun resumes from the log
		r.stats.Interrupted = true
		err = nil
	}
	r.stats.Total = s.Seen.Len()
	s.summary(ctx, r.stats, err)
	return r.stats, err
}

func (s *Service) walkDays(ctx context.Context, r *run, start, end time.Time) error {
	log := logger.C(ctx).With().Str("component", "harvest").Logger()
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.targetReached() {
			r.stats.ReachedTarget = true
			return nil
		}

		before := r.stats.Kept
		ws, err := s.Walker.Walk(ctx, DayQuery(day, s.Cfg), func(repo github.Repo) bool {
			if err := s.process(ctx, r, repo); err != nil {
				r.fatal = err
				return false
			}
			return !r.stopped
		})
		r.stats.Days++
		r.stats.Pages += ws.Pages
		r.stats.PagesAbandoned += ws.PagesAbandoned
		r.stats.RateLimitWaits += ws.RateLimitWaits
		if r.fatal != nil {
			return r.fatal
		}
		if err != nil {
			return err
		}

		log.Info().
			Str("day", day.Format(time.DateOnly)).
			Int("found", ws.TotalCount).
			Int("kept_day", r.stats.Kept-before).
			Int("kept", r.stats.Kept).
			Int("total", s.Seen.Len()).
			Msg("day done")

		if r.stopped {
			r.stats.ReachedTarget = true
			return nil
		}
		if err := s.sleep(ctx, s.Cfg.PauseDay); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) process(ctx context.Context, r *run, repo github.Repo) error {
	r.stats.Scanned++
	if s.Cfg.PauseEvery > 0 && r.stats.Scanned%s.Cfg.PauseEvery == 0 {
		if err := s.sleep(ctx, s.Cfg.PauseScan); err != nil {
			return err
		}
	}

	if s.Seen.Has(repo.ID) {
		r.stats.Duplicates++
		return nil
	}

	v := s.Filter.Check(noise.Subject{
		Owner:       repo.Owner.Login,
		Name:        repo.Name,
		Description: repo.Description,
		Topics:      repo.Topics,
		Fork:        repo.Fork,
		SizeKB:      int64(repo.Size),
	})
	if v.Reject {
		r.stats.Rejected[string(v.Reason.Code)]++
		return nil
	}

	keep, tier := s.Sampler.Decide(repo.Stargazers)
	if !keep {
		r.stats.Rejected[domain.ReasonSampledOut]++
		return nil
	}

	c := toCandidate(repo, tier, s.now())
	if s.Cfg.FetchReadme {
		content, err := s.readme(ctx, r, repo)
		if err != nil {
			return err
		}
		c.ReadmeContent = content
	}

	if err := validate.Struct(c); err != nil {
		logger.C(ctx).Warn().Err(err).Int64("id", repo.ID).Str("repo", repo.FullName).Msg("dropping invalid record")
		r.stats.Rejected[domain.ReasonInvalid]++
		return nil
	}
	if err := s.Sink.Append(c); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "append candidate %d", repo.ID)
	}
	s.Seen.Add(repo.ID)
	r.stats.Kept++
	r.stats.KeptByTier[string(tier)]++

	if s.targetReached() {
		r.stopped = true
	}
	return nil
}

// readme returns nil content on absence and on failure; only cancellation is an error
func (s *Service) readme(ctx context.Context, r *run, repo github.Repo) (*string, error) {
	log := logger.C(ctx).With().Str("component", "harvest").Str("repo", repo.FullName).Logger()
	p := s.Walker.Policy
	failures := 0
	for {
		raw, err := s.Readmes.Readme(ctx, repo.Owner.Login, repo.Name)
		if err == nil {
			if s.Cleaner != nil {
				raw = s.Cleaner.Clean(raw)
			}
			content := pstrings.Ptr(raw)
			if content == nil {
				r.stats.ReadmeMissing++
				return nil, nil
			}
			r.stats.ReadmeOK++
			return content, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if rl, ok := github.AsRateLimit(err); ok {
			d := p.RateLimitWait(rl.Limits.Reset, rl.Limits.RetryAfter, s.now())
			r.stats.RateLimitWaits++
			log.Warn().Dur("wait", d).Msg("rate limited on readme; waiting")
			if err := s.sleep(ctx, d); err != nil {
				return nil, err
			}
			continue
		}
		failures++
		if !perr.Transient(err) || failures >= max(p.MaxAttempts, 1) {
			log.Warn().Err(err).Int("attempts", failures).Msg("readme fetch failed; saving without content")
			r.stats.ReadmeFailed++
			return nil, nil
		}
		if err := s.sleep(ctx, p.Delay(failures-1)); err != nil {
			return nil, err
		}
	}
}

func (s *Service) targetReached() bool {
	return s.Cfg.TargetTotal > 0 && s.Seen.Len() >= s.Cfg.TargetTotal
}

func (s *Service) summary(ctx context.Context, st domain.Stats, err error) {
	l := logger.C(ctx)
	var ev *zerolog.Event
	switch {
	case st.Interrupted:
		ev = l.Warn().Str("outcome", "interrupted")
	case err != nil:
		ev = l.Error().Err(err).Str("outcome", "failed")
	default:
		ev = l.Info().Str("outcome", "done")
	}
	ev.Str("component", "harvest").
		Int("days", st.Days).
		Int("pages", st.Pages).
		Int("pages_abandoned", st.PagesAbandoned).
		Int("rate_limit_waits", st.RateLimitWaits).
		Int("scanned", st.Scanned).
		Int("duplicates", st.Duplicates).
		Int("kept", st.Kept).
		Any("kept_by_tier", st.KeptByTier).
		Int("rejected", st.RejectedTotal()).
		Any("rejected_by_reason", st.Rejected).
		Int("readme_ok", st.ReadmeOK).
		Int("readme_missing", st.ReadmeMissing).
		Int("readme_failed", st.ReadmeFailed).
		Int("resumed", st.Resumed).
		Int("total", st.Total).
		Bool("reached_target", st.ReachedTarget).
		Msg("acquisition summary")
}

func toCandidate(r github.Repo, tier sampler.Tier, now time.Time) domain.Candidate {
	topics := r.Topics
	if topics == nil {
		topics = []string{}
	}
	return domain.Candidate{
		ID:          r.ID,
		RepoName:    r.FullName,
		RepoURL:     r.HTMLURL,
		Stars:       r.Stargazers,
		Description: r.Description,
		Language:    r.Language,
		Topics:      topics,
		CreatedAt:   r.CreatedAt,
		PushedAt:    r.PushedAt,
		Tier:        tier,
		SizeKB:      int64(r.Size),
		ForksCount:  r.ForksCount,
		OpenIssues:  r.OpenIssues,
		OwnerLogin:  r.Owner.Login,
		OwnerType:   r.Owner.Type,
		AcquiredAt:  now.UTC(),
	}
}
