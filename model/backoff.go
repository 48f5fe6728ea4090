package model

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// RetryPolicy describes the transient-retry budget for a provider adapter,
// per spec §6.4: exponential backoff, base 500ms, cap 8s, max 3 attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the policy named in spec §6.4.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}
}

// delay returns the jittered backoff target for the given zero-based attempt
// index.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2 + 1))
	return d/2 + jitter
}

// pace blocks the caller for d using a rate.Limiter admitting one event per
// d instead of a bare time.After sleep, so the same x/time/rate primitive
// the adaptive rate limiter (ratelimit.go) uses for request pacing also
// governs retry backoff. The limiter is single-use: it starts with a full
// burst of one, which is spent immediately so the caller waits the entire
// interval.
func pace(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	limiter := rate.NewLimiter(rate.Every(d), 1)
	limiter.Allow()
	return limiter.Wait(ctx)
}

// WithRetry invokes fn up to p.MaxAttempts times, backing off between
// attempts for transient (retryable) ProviderErrors. Non-ProviderErrors and
// non-retryable ProviderErrors are returned immediately. The final attempt's
// error is returned unchanged after exhausting the budget, so callers can
// surface it as a TransientProviderError (spec §7).
func WithRetry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := pace(ctx, p.delay(attempt-1)); err != nil {
				return zero, err
			}
		}
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		pe, ok := AsProviderError(err)
		if !ok || !pe.Retryable() {
			return zero, err
		}
	}
	return zero, lastErr
}
