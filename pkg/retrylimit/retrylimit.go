// Package retrylimit combines an adaptive request rate with retries and
// exponential backoff. HTTP status errors get special treatment: 429 slows
// the limiter down and 5xx counts as a retryable server failure.
//
//	lim := retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5)
//	err := retrylimit.WithRetryConfig(ctx, func() error {
//	    return doSomeWork()
//	}, lim, retrylimit.DefaultRetryConfig())
package retrylimit

import (
	"context"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrMaxAttempts is returned when every attempt failed.
var ErrMaxAttempts = errors.New("max attempts exceeded")

// AdaptiveLimiter is a token bucket whose rate grows on success and shrinks
// when the remote side pushes back.
type AdaptiveLimiter struct {
	mu        sync.RWMutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
}

// NewAdaptiveLimiter creates a limiter starting at initial requests per
// second, bounded by [lo, hi]. stepUp is added after a success and
// stepDown multiplies the rate after a failure.
func NewAdaptiveLimiter(initial, lo, hi rate.Limit, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	initial = max(initial, 1)
	lo = max(lo, 1)
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, max(1, int(initial))),
		minLimit: lo,
		maxLimit: hi,
		stepUp:   stepUp,
		stepDown: stepDown,
	}
}

// Wait blocks until a token is available or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Success raises the rate unless an error was seen in the last 10 seconds.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > 10*time.Second {
		a.adjustLimit(a.limiter.Limit() + a.stepUp)
	}
}

// RateLimited lowers the rate.
func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.adjustLimit(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) adjustLimit(newLimit rate.Limit) {
	newLimit = min(max(newLimit, a.minLimit), a.maxLimit)
	if newLimit != a.limiter.Limit() {
		a.limiter.SetLimit(newLimit)
		a.limiter.SetBurst(max(1, int(newLimit)))
	}
}

// HTTPError is implemented by errors that carry an HTTP status code.
type HTTPError interface {
	error
	StatusCode() int
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Code)
	}
	return http.StatusText(e.Code) + ": " + e.Message
}

func (e *StatusError) StatusCode() int { return e.Code }

// FatalError stops retries immediately.
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

// ErrorClassifier reports whether err should slow the limiter down.
type ErrorClassifier func(error) bool

// DefaultClassifier slows down on 429 and 5xx.
func DefaultClassifier(err error) bool {
	return IsRateLimit(err) || IsServerError(err)
}

// RetryConfig configures WithRetryConfig.
type RetryConfig struct {
	MaxAttempts     int           // 0 means 100
	InitialDelay    time.Duration // first backoff
	MaxDelay        time.Duration
	RateLimitDelay  time.Duration // fixed pause after a 429
	Multiplier      float64
	Jitter          bool
	ErrorClassifier ErrorClassifier
	OnRetry         func(attempt int, err error)
	Logger          zerolog.Logger
}

// DefaultRetryConfig returns the defaults callers adjust per use.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     100,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		RateLimitDelay:  100 * time.Millisecond,
		Multiplier:      2.0,
		Jitter:          true,
		ErrorClassifier: DefaultClassifier,
		Logger:          zerolog.Nop(),
	}
}

// WithRetryConfig runs fn until it succeeds, returns a FatalError, ctx is
// done or the attempts run out. The last error is wrapped in ErrMaxAttempts.
func WithRetryConfig(ctx context.Context, fn func() error, lim *AdaptiveLimiter, cfg RetryConfig) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 100
	}
	if cfg.ErrorClassifier == nil {
		cfg.ErrorClassifier = DefaultClassifier
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			if attempt > 1 {
				cfg.Logger.Debug().Int("attempt", attempt).Msg("succeeded after retry")
			}
			return nil
		}
		lastErr = err

		var fatal *FatalError
		if errors.As(err, &fatal) {
			return fatal.Err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		if IsRateLimit(err) {
			if lim != nil {
				lim.RateLimited()
				cfg.Logger.Warn().Int("attempt", attempt).Float64("rps", lim.CurrentLimit()).Msg("rate limited")
			}
			if err := sleep(ctx, cfg.RateLimitDelay); err != nil {
				return err
			}
			continue
		}

		if cfg.ErrorClassifier(err) && lim != nil {
			lim.RateLimited()
		}

		wait := delay
		if cfg.Jitter {
			wait = addJitter(delay)
		}
		cfg.Logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("request failed")
		if err := sleep(ctx, wait); err != nil {
			return err
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return errors.Mark(errors.Wrapf(lastErr, "after %d attempts", cfg.MaxAttempts), ErrMaxAttempts)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

// addJitter adds up to 25% of delay.
func addJitter(delay time.Duration) time.Duration {
	if delay < 4 {
		return delay
	}
	return delay + rand.N(delay/4)
}

// IsRateLimit reports whether err carries HTTP 429.
func IsRateLimit(err error) bool {
	var h HTTPError
	return errors.As(err, &h) && h.StatusCode() == http.StatusTooManyRequests
}

// IsServerError reports whether err carries an HTTP 5xx status.
func IsServerError(err error) bool {
	var h HTTPError
	return errors.As(err, &h) && h.StatusCode() >= 500 && h.StatusCode() < 600
}
