package scraper

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// Retry defaults match the source site's tolerance: a handful of attempts
// with sub-second initial spacing.
const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 500 * time.Millisecond
	DefaultBackoffMax  = 5 * time.Second
)

// ExponentialRetryPolicy produces a jittered, capped exponential backoff
// curve for transient fetch failures. The curve is independent of the
// fetcher so it can be tested on its own.
type ExponentialRetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewExponentialRetryPolicy builds a policy allowing maxRetries retries
// after the initial attempt. Non-positive delays fall back to defaults.
func NewExponentialRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration) *ExponentialRetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBackoffBase
	}
	if maxDelay <= 0 {
		maxDelay = DefaultBackoffMax
	}
	return &ExponentialRetryPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

// DefaultRetryPolicy returns a policy with the package defaults.
func DefaultRetryPolicy() *ExponentialRetryPolicy {
	return NewExponentialRetryPolicy(DefaultMaxRetries, DefaultBackoffBase, DefaultBackoffMax)
}

// MaxAttempts is the total number of attempts: one initial plus the retries.
func (p *ExponentialRetryPolicy) MaxAttempts() int {
	return p.maxRetries + 1
}

// Backoff returns the wait before the next attempt. attempt is the number
// of failed attempts so far, starting at 1. The delay doubles per attempt,
// is capped at the ceiling, and carries a random jitter of up to 25%.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	d := time.Duration(delay)
	return d + randomJitter(d/4)
}

// randomJitter returns a uniformly random duration in [0, limit).
func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// sleepContext pauses for the given delay or until the context finishes.
func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
