// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reviewsTotal      *prometheus.CounterVec
	reviewsPersisted  *prometheus.CounterVec
	fetchRetriesTotal prometheus.Counter
	rateLimitDelay    prometheus.Histogram

	once sync.Once
)

// Review outcome labels recorded by the pipeline.
const (
	OutcomeStored      = "stored"
	OutcomeNotFound    = "not_found"
	OutcomeFailed      = "failed"
	OutcomeUnparseable = "unparseable"
)

// Init registers the collectors on the default registry. Safe to call more
// than once.
func Init() {
	once.Do(func() {
		reviewsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_reviews_total",
				Help: "Review identifiers processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		reviewsPersisted = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_reviews_persisted_total",
				Help: "Reviews written to the corpus, labeled by reconciliation mode.",
			},
			[]string{"mode"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_fetch_retries_total",
				Help: "Retry attempts after transient fetch failures.",
			},
		)

		rateLimitDelay = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scraper_rate_limit_delay_seconds",
				Help:    "Histogram of delays imposed by the rate limiter.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		)
	})
}

// ObserveReview increments the per-outcome review counter.
func ObserveReview(outcome string) {
	if reviewsTotal == nil {
		return
	}
	reviewsTotal.WithLabelValues(outcome).Inc()
}

// ObservePersisted increments the persisted-review counter for a mode.
func ObservePersisted(mode string) {
	if reviewsPersisted == nil {
		return
	}
	reviewsPersisted.WithLabelValues(mode).Inc()
}

// ObserveRetry increments the retry counter.
func ObserveRetry() {
	if fetchRetriesTotal == nil {
		return
	}
	fetchRetriesTotal.Inc()
}

// ObserveRateLimitDelay records one rate-limiter wait.
func ObserveRateLimitDelay(d time.Duration) {
	if rateLimitDelay == nil {
		return
	}
	rateLimitDelay.Observe(d.Seconds())
}
