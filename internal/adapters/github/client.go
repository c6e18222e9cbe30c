// Package github is a thin GitHub REST v3 client for repository search and README fetches.
// Each call is a single attempt; rate limits surface as *RateLimitError so the
// page walker owns scheduling.
package github

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	perr "repoharvest/internal/platform/errors"
	"repoharvest/internal/platform/logger"
)

const (
	baseURLDefault = "https://api.github.com"
	defaultTimeout = 30 * time.Second
	defaultUA      = "repoharvest-crawl"
	maxBody        = 4 << 20
)

// Options configures the Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Comma separated tokens rotated round robin
	TokensCSV string
}

// Client is a minimal GitHub REST client with token rotation
type Client struct {
	http   *http.Client
	opts   Options
	tokens []string
	cur    atomic.Int32
	log    logger.Logger
	now    func() time.Time
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	var toks []string
	for t := range strings.SplitSeq(o.TokensCSV, ",") {
		if t = strings.TrimSpace(t); t != "" {
			toks = append(toks, t)
		}
	}
	return &Client{
		http:   &http.Client{Timeout: o.Timeout},
		opts:   o,
		tokens: toks,
		log:    *logger.Named("github"),
		now:    time.Now,
	}
}

// Tokens reports how many credentials are configured
func (c *Client) Tokens() int { return len(c.tokens) }

func (c *Client) nextToken() string {
	if len(c.tokens) == 0 {
		return ""
	}
	n := int(c.cur.Add(1))
	return c.tokens[n%len(c.tokens)]
}

// Do issues one GET with auth headers and classifies the outcome.
// On 200 the caller owns resp.Body. Every other status is returned as an error:
// rate limits as *RateLimitError (ErrorCodeTooManyRequests), 404 as
// ErrorCodeNotFound, 5xx and transport failures as ErrorCodeUnavailable,
// 401 as ErrorCodeUnauthorized and any other 4xx as ErrorCodeRejected.
func (c *Client) Do(ctx context.Context, path string) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+path, nil)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "github new request failed")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if tok := c.nextToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	lat := c.now().Sub(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "github request failed")
	}

	rl := parseRateHeaders(resp.Header)
	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", lat).
		Int("rate_remaining", rl.Remaining).
		Time("rate_reset", rl.Reset).
		Dur("retry_after", rl.RetryAfter).
		Msg("github http response")

	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	body := readTail(resp.Body)
	se := &GHStatusError{Status: resp.StatusCode, Body: body}
	switch {
	case isRateLimited(resp.StatusCode, rl, body):
		return nil, perr.Wrap(&RateLimitError{Status: resp.StatusCode, Limits: rl}, perr.ErrorCodeTooManyRequests, "github rate limited")
	case resp.StatusCode == http.StatusNotFound:
		return nil, perr.Wrap(se, perr.ErrorCodeNotFound, "github not found")
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, perr.Wrap(se, perr.ErrorCodeUnauthorized, "github rejected credentials")
	case resp.StatusCode >= 500:
		return nil, perr.Wrap(se, perr.ErrorCodeUnavailable, "github transient server error")
	default:
		return nil, perr.Wrap(se, perr.ErrorCodeRejected, "github unexpected status")
	}
}

// isRateLimited covers the primary limit (403/429 with Remaining 0), the
// secondary limit (Retry-After or a "rate limit" message) and bare 429s
func isRateLimited(status int, rl RateLimit, body string) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if status != http.StatusForbidden {
		return false
	}
	if rl.RetryAfter > 0 || (rl.Known && rl.Remaining == 0) {
		return true
	}
	return strings.Contains(strings.ToLower(body), "rate limit")
}

func readTail(rc io.ReadCloser) string {
	b, _ := io.ReadAll(io.LimitReader(rc, 2048))
	_ = drainAndClose(rc)
	return string(b)
}
