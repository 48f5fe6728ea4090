package model

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// AdaptiveRateLimiter applies an AIMD-style adaptive token bucket on top of a
// Client. It estimates the token cost of each request, blocks callers until
// capacity is available, and adjusts its effective tokens-per-minute budget
// in response to rate-limiting signals from the provider. Grounded on
// features/model/middleware/ratelimit.go's AdaptiveRateLimiter, trimmed to
// the process-local case: this module carries no cluster-coordination
// dependency, so the rmap-backed multi-process variant is not ported.
type AdaptiveRateLimiter struct {
	mu sync.Mutex

	limiter *rate.Limiter

	currentTPM float64
	minTPM     float64
	maxTPM     float64

	recoveryRate float64
}

type limitedClient struct {
	next    Client
	limiter *AdaptiveRateLimiter
}

// NewAdaptiveRateLimiter constructs a process-local AdaptiveRateLimiter with
// a tokens-per-minute budget. When maxTPM is zero or less than initialTPM, it
// is clamped to initialTPM.
func NewAdaptiveRateLimiter(initialTPM, maxTPM float64) *AdaptiveRateLimiter {
	if initialTPM <= 0 {
		initialTPM = 60000
	}
	if maxTPM <= 0 || maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	minTPM := initialTPM * 0.1
	if minTPM < 1 {
		minTPM = 1
	}
	recoveryRate := initialTPM * 0.05
	if recoveryRate < 1 {
		recoveryRate = 1
	}
	lim := rate.NewLimiter(rate.Limit(initialTPM/60.0), int(initialTPM))

	return &AdaptiveRateLimiter{
		limiter:      lim,
		currentTPM:   initialTPM,
		minTPM:       minTPM,
		maxTPM:       maxTPM,
		recoveryRate: recoveryRate,
	}
}

// Middleware returns a Client middleware that enforces the adaptive
// tokens-per-minute limit for both Complete and Stream calls.
func (l *AdaptiveRateLimiter) Middleware() func(Client) Client {
	return func(next Client) Client {
		if next == nil {
			return nil
		}
		return &limitedClient{next: next, limiter: l}
	}
}

func (c *limitedClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := c.limiter.wait(ctx, req); err != nil {
		return nil, err
	}
	resp, err := c.next.Complete(ctx, req)
	c.limiter.observe(err)
	return resp, err
}

func (c *limitedClient) Stream(ctx context.Context, req *Request) (Streamer, error) {
	if err := c.limiter.wait(ctx, req); err != nil {
		return nil, err
	}
	stream, err := c.next.Stream(ctx, req)
	c.limiter.observe(err)
	return stream, err
}

func (l *AdaptiveRateLimiter) wait(ctx context.Context, req *Request) error {
	return l.limiter.WaitN(ctx, estimateTokens(req))
}

// observe adjusts the budget from the outcome of a completed call: a
// ProviderErrorKindRateLimited error backs the budget off, and any other
// outcome (including success) lets it probe upward again.
func (l *AdaptiveRateLimiter) observe(err error) {
	if err == nil {
		l.probe()
		return
	}
	if pe, ok := AsProviderError(err); ok && pe.Kind() == ProviderErrorKindRateLimited {
		l.backoff()
		return
	}
	l.probe()
}

func (l *AdaptiveRateLimiter) backoff() {
	l.mu.Lock()
	defer l.mu.Unlock()

	newTPM := l.currentTPM * 0.5
	if newTPM < l.minTPM {
		newTPM = l.minTPM
	}
	if newTPM == l.currentTPM {
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
}

func (l *AdaptiveRateLimiter) probe() {
	l.mu.Lock()
	defer l.mu.Unlock()

	newTPM := l.currentTPM + l.recoveryRate
	if newTPM > l.maxTPM {
		newTPM = l.maxTPM
	}
	if newTPM == l.currentTPM {
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
}

// estimateTokens computes a cheap heuristic for the number of tokens in the
// request transcript: characters in every message's text, converted to
// tokens at a fixed ratio, plus a small buffer for system prompts and
// provider framing.
func estimateTokens(req *Request) int {
	charCount := 0
	for _, m := range req.Messages {
		charCount += len(m.Text)
	}
	if charCount <= 0 {
		return 500
	}
	tokens := charCount / 3
	if tokens < 1 {
		tokens = 1
	}
	return tokens + 500
}
