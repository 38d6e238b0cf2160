// Package scraper implements the rate-limited, retrying HTTP layer that
// fetches raw review pages by numeric identifier.
package scraper

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/musicreview/scraper/internal/metrics"
)

const defaultMaxJitter = 150 * time.Millisecond

// RateLimiter spaces successive requests at least 1/maxPerSecond apart and
// adds a small random jitter so the request pattern is not perfectly
// periodic. The first call never blocks.
type RateLimiter struct {
	limiter   *rate.Limiter
	maxJitter time.Duration
	primed    bool
}

// NewRateLimiter builds a limiter for the given ceiling. A non-positive
// rate is a configuration error.
func NewRateLimiter(maxPerSecond float64) (*RateLimiter, error) {
	if maxPerSecond <= 0 {
		return nil, fmt.Errorf("max requests per second must be positive, got %g", maxPerSecond)
	}
	return &RateLimiter{
		limiter:   rate.NewLimiter(rate.Limit(maxPerSecond), 1),
		maxJitter: defaultMaxJitter,
	}, nil
}

// Wait blocks until the next request may be sent, respecting the context.
func (l *RateLimiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if !l.primed {
		l.primed = true
		return nil
	}
	if err := sleepContext(ctx, randomJitter(l.maxJitter)); err != nil {
		return err
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(waited)
	}
	return nil
}
