package github

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// GHStatusError wraps non-2xx HTTP responses from GitHub
type GHStatusError struct {
	Status int
	Body   string
}

// Error interface
func (e *GHStatusError) Error() string { return fmt.Sprintf("github status %d", e.Status) }

// HTTPStatus interface
func (e *GHStatusError) HTTPStatus() int { return e.Status }

// RateLimit is what GitHub reported in its rate headers
type RateLimit struct {
	Known      bool
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// RateLimitError is returned when GitHub asks the caller to slow down
type RateLimitError struct {
	Status int
	Limits RateLimit
}

// Error interface
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github rate limited (status %d, reset %s, retry-after %s)",
		e.Status, e.Limits.Reset.Format(time.RFC3339), e.Limits.RetryAfter)
}

// AsRateLimit extracts a *RateLimitError from err
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// StatusOf returns the HTTP status carried by err, 0 when none
func StatusOf(err error) int {
	var se *GHStatusError
	if errors.As(err, &se) {
		return se.Status
	}
	if rl, ok := AsRateLimit(err); ok {
		return rl.Status
	}
	return 0
}

func parseRateHeaders(h http.Header) RateLimit {
	var rl RateLimit
	if s := h.Get("X-RateLimit-Remaining"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			rl.Known = true
			rl.Remaining = n
		}
	}
	if sec := atoi(h.Get("X-RateLimit-Reset")); sec > 0 {
		rl.Reset = time.Unix(int64(sec), 0).UTC()
	}
	if sec := atoi(h.Get("Retry-After")); sec > 0 {
		rl.RetryAfter = time.Duration(sec) * time.Second
	}
	return rl
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	i, _ := strconv.Atoi(s)
	return i
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}
