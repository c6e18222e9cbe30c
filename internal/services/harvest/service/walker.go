package service

import (
	"context"
	"time"

	"repoharvest/internal/adapters/github"
	"repoharvest/internal/core/retry"
	perr "repoharvest/internal/platform/errors"
	"repoharvest/internal/platform/logger"
	"repoharvest/internal/services/harvest/domain"
)

// DefaultMaxPages is the search ceiling: GitHub serves at most 1000 results per query
const DefaultMaxPages = 10

// WalkStats counts what one Walk did
type WalkStats struct {
	Pages          int
	PagesAbandoned int
	RateLimitWaits int
	Items          int
	TotalCount     int
}

// PageWalker pages through one search query and hands each item to a callback
type PageWalker struct {
	Search   domain.Searcher
	Policy   retry.Policy
	PerPage  int
	MaxPages int

	sleep retry.Sleeper
	now   func() time.Time
}

// NewPageWalker returns a walker with the acquisition retry policy
func NewPageWalker(s domain.Searcher, perPage, maxPages int) *PageWalker {
	if perPage <= 0 || perPage > 100 {
		perPage = 100
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &PageWalker{
		Search:   s,
		Policy:   retry.GitHubPolicy(),
		PerPage:  perPage,
		MaxPages: maxPages,
		sleep:    retry.Sleep,
		now:      time.Now,
	}
}

// Walk fetches pages of q until a short page, the page ceiling, the reported
// total, or yield returning false. Rate limits wait and retry the same page;
// other transient failures retry then abandon only that page. Credential
// failures are returned; a rejected query ends this walk quietly.
func (w *PageWalker) Walk(ctx context.Context, q github.SearchQuery, yield func(github.Repo) bool) (WalkStats, error) {
	var st WalkStats
	log := logger.C(ctx).With().Str("component", "walker").Str("q", q.Q).Logger()
	q.PerPage = w.PerPage

	for page := 1; page <= w.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		q.Page = page

		res, out, err := w.fetch(ctx, q, &st)
		if err != nil {
			return st, err
		}
		if out == pageAbandoned {
			continue
		}
		if out == queryStopped {
			break
		}
		st.Pages++
		st.TotalCount = res.TotalCount

		for _, r := range res.Items {
			st.Items++
			if !yield(r) {
				return st, nil
			}
		}
		if len(res.Items) < w.PerPage || page*w.PerPage >= res.TotalCount {
			break
		}
	}
	log.Debug().Int("pages", st.Pages).Int("items", st.Items).Int("total", st.TotalCount).Msg("query done")
	return st, nil
}

type outcome int

const (
	pageOK outcome = iota
	pageAbandoned
	queryStopped
)

func (w *PageWalker) fetch(ctx context.Context, q github.SearchQuery, st *WalkStats) (github.SearchPage, outcome, error) {
	log := logger.C(ctx).With().Str("component", "walker").Int("page", q.Page).Logger()
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return github.SearchPage{}, pageOK, err
		}
		res, err := w.Search.SearchRepositories(ctx, q)
		if err == nil {
			return res, pageOK, nil
		}
		if ctx.Err() != nil {
			return github.SearchPage{}, pageOK, ctx.Err()
		}

		if rl, ok := github.AsRateLimit(err); ok {
			d := w.Policy.RateLimitWait(rl.Limits.Reset, rl.Limits.RetryAfter, w.now())
			st.RateLimitWaits++
			log.Warn().Dur("wait", d).Int("status", rl.Status).Msg("rate limited; waiting")
			if err := w.sleep(ctx, d); err != nil {
				return github.SearchPage{}, pageOK, err
			}
			continue
		}

		switch perr.CodeOf(err) {
		case perr.ErrorCodeUnauthorized, perr.ErrorCodeForbidden:
			return github.SearchPage{}, pageOK, err
		case perr.ErrorCodeRejected, perr.ErrorCodeInvalidArgument:
			log.Warn().Err(err).Msg("query rejected; skipping rest of query")
			return github.SearchPage{}, queryStopped, nil
		}

		if !perr.Transient(err) {
			log.Warn().Err(err).Msg("page failed; abandoning")
			st.PagesAbandoned++
			return github.SearchPage{}, pageAbandoned, nil
		}
		failures++
		if failures >= max(w.Policy.MaxAttempts, 1) {
			log.Warn().Err(err).Int("attempts", failures).Msg("page abandoned after retries")
			st.PagesAbandoned++
			return github.SearchPage{}, pageAbandoned, nil
		}
		log.Debug().Err(err).Int("attempt", failures).Msg("transient search failure; retrying")
		if err := w.sleep(ctx, w.Policy.Delay(failures-1)); err != nil {
			return github.SearchPage{}, pageOK, err
		}
	}
}
