// Package retrylimit wraps outbound calls with an adaptive rate limiter and a
// bounded exponential-backoff retry loop.
//
// Example usage:
//
//	lim := retrylimit.NewAdaptiveLimiter(2, 1, 5, 0.5, 0.5)
//	err := retrylimit.Do(ctx, lim, retrylimit.RetryConfig{MaxAttempts: 3}, func(ctx context.Context) error {
//	    return callUpstream(ctx)
//	})
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// Limiter
// =============================================================================

// AdaptiveLimiter is a token bucket whose rate rises on success and falls
// when the upstream reports overload. Safe for concurrent use.
type AdaptiveLimiter struct {
	mu        sync.RWMutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
	now       func() time.Time
}

// NewAdaptiveLimiter creates a limiter starting at initial requests per
// second, bounded by [min, max]. Success adds stepUp; overload multiplies the
// rate by stepDown.
func NewAdaptiveLimiter(initial, min, max, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	if min <= 0 {
		min = 0.1
	}
	if initial < min {
		initial = min
	}
	if max < initial {
		max = initial
	}
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, burstFor(initial)),
		minLimit: min,
		maxLimit: max,
		stepUp:   stepUp,
		stepDown: stepDown,
		now:      time.Now,
	}
}

// Wait blocks until a token is available or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Success raises the rate unless an overload was seen in the last ten seconds.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.now().Sub(a.lastError) > 10*time.Second {
		a.adjust(a.limiter.Limit() + a.stepUp)
	}
}

// RateLimited lowers the rate after an overload response.
func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = a.now()
	a.adjust(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) adjust(l rate.Limit) {
	if l > a.maxLimit {
		l = a.maxLimit
	} else if l < a.minLimit {
		l = a.minLimit
	}
	if l != a.limiter.Limit() {
		a.limiter.SetLimit(l)
		a.limiter.SetBurst(burstFor(l))
	}
}

func burstFor(l rate.Limit) int {
	return max(1, int(l))
}

// =============================================================================
// Errors
// =============================================================================

// StatusError is implemented by errors that carry an HTTP status code.
type StatusError interface {
	error
	StatusCode() int
}

// HTTPError attaches a status code to err.
type HTTPError struct {
	Code int
	Err  error
}

func (e *HTTPError) Error() string   { return fmt.Sprintf("http %d: %v", e.Code, e.Err) }
func (e *HTTPError) Unwrap() error   { return e.Err }
func (e *HTTPError) StatusCode() int { return e.Code }

// FatalError stops the retry loop immediately.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Fatal marks err as not worth retrying.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

func statusOf(err error) (int, bool) {
	var se StatusError
	if errors.As(err, &se) {
		return se.StatusCode(), true
	}
	return 0, false
}

// IsRateLimit reports whether err carries HTTP 429.
func IsRateLimit(err error) bool {
	code, ok := statusOf(err)
	return ok && code == http.StatusTooManyRequests
}

// IsServerError reports whether err carries a 5xx status.
func IsServerError(err error) bool {
	code, ok := statusOf(err)
	return ok && code >= 500 && code < 600
}

// =============================================================================
// Retry
// =============================================================================

// RetryConfig configures Do. Zero values take the defaults below.
type RetryConfig struct {
	MaxAttempts    int           // default 3
	InitialDelay   time.Duration // default 500ms
	MaxDelay       time.Duration // default 10s
	RateLimitDelay time.Duration // default 1s
	Multiplier     float64       // default 2
	Jitter         bool
	Logger         *slog.Logger
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.RateLimitDelay <= 0 {
		c.RateLimitDelay = time.Second
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Do calls fn until it succeeds, returns a FatalError, ctx ends or the
// attempts run out. lim may be nil.
func Do(ctx context.Context, lim *AdaptiveLimiter, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()
	delay := cfg.InitialDelay
	var last error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		last = fn(ctx)
		if last == nil {
			if lim != nil {
				lim.Success()
			}
			if attempt > 1 {
				cfg.Logger.Debug("request succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		var fatal *FatalError
		if errors.As(last, &fatal) {
			return fatal.Err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := delay
		switch {
		case IsRateLimit(last):
			if lim != nil {
				lim.RateLimited()
			}
			wait = cfg.RateLimitDelay
			cfg.Logger.Warn("rate limited, retrying", "attempt", attempt, "wait", wait)
		case IsServerError(last):
			if lim != nil {
				lim.RateLimited()
			}
			cfg.Logger.Warn("server error, retrying", "attempt", attempt, "wait", wait, "error", last)
		default:
			cfg.Logger.Warn("request failed, retrying", "attempt", attempt, "wait", wait, "error", last)
		}
		if cfg.Jitter {
			wait = addJitter(wait)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		delay = min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay)
	}

	if cfg.MaxAttempts == 1 {
		return last
	}
	return fmt.Errorf("gave up after %d attempts: %w", cfg.MaxAttempts, last)
}

// addJitter adds up to 25% random delay.
func addJitter(d time.Duration) time.Duration {
	if d < 4 {
		return d
	}
	return d + time.Duration(rand.Int64N(int64(d/4)))
}
