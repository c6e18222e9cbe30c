// Package retry holds the backoff arithmetic shared by the page walker and
// the classification workers, plus a context-aware sleep and a bounded retry loop.
package retry

import (
	"context"
	"math"
	"time"
)

// Policy groups the delays used for remote calls
type Policy struct {
	// Rate-limit waits: until reset plus Pad, never less than Floor; Default when the remote gives no reset
	Pad     time.Duration
	Floor   time.Duration
	Default time.Duration

	// Transient failures (transport, 5xx, undecodable body)
	MaxAttempts int
	Base        time.Duration
	Exponential bool
	Cap         time.Duration
}

// GitHubPolicy returns the acquisition defaults: 5s pad, 60s floor and default,
// three attempts at a fixed 2s delay
func GitHubPolicy() Policy {
	return Policy{
		Pad:         5 * time.Second,
		Floor:       60 * time.Second,
		Default:     60 * time.Second,
		MaxAttempts: 3,
		Base:        2 * time.Second,
	}
}

// InferencePolicy returns the classification defaults: three attempts, base×2^attempt from 2s
func InferencePolicy() Policy {
	return Policy{
		Pad:         time.Second,
		Floor:       2 * time.Second,
		Default:     30 * time.Second,
		MaxAttempts: 3,
		Base:        2 * time.Second,
		Exponential: true,
		Cap:         2 * time.Minute,
	}
}

// RateLimitWait returns how long to pause after a rate-limit signal.
// A positive retryAfter wins over reset; with neither, Default applies.
func (p Policy) RateLimitWait(reset time.Time, retryAfter time.Duration, now time.Time) time.Duration {
	var d time.Duration
	switch {
	case retryAfter > 0:
		d = retryAfter + p.Pad
	case !reset.IsZero():
		d = reset.Sub(now) + p.Pad
	default:
		return max(p.Default, p.Floor)
	}
	return max(d, p.Floor)
}

// Delay returns the pause before attempt+1, where attempt counts from 0
func (p Policy) Delay(attempt int) time.Duration {
	if !p.Exponential {
		return p.Base
	}
	return Exponential(p.Base, attempt, p.Cap)
}

// Exponential returns base×2^attempt, clamped to limit when limit > 0
func Exponential(base time.Duration, attempt int, limit time.Duration) time.Duration {
	d := base
	for range max(attempt, 0) {
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sleeper is the sleep seam used by callers so tests can run without wall-clock waits
type Sleeper func(ctx context.Context, d time.Duration) error

// Do calls fn until it succeeds, returns a non-retryable error, or MaxAttempts
// calls have been made. It returns the number of calls made and the last error.
// A done ctx stops the loop between attempts.
func Do(ctx context.Context, p Policy, sleep Sleeper, retryable func(error) bool, fn func(attempt int) error) (int, error) {
	if sleep == nil {
		sleep = Sleep
	}
	attempts := max(p.MaxAttempts, 1)
	var last error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			if last == nil {
				last = err
			}
			return i, last
		}
		last = fn(i)
		if last == nil {
			return i + 1, nil
		}
		if !retryable(last) || i == attempts-1 {
			return i + 1, last
		}
		if err := sleep(ctx, p.Delay(i)); err != nil {
			return i + 1, last
		}
	}
	return attempts, last
}
