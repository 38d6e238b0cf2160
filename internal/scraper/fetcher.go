package scraper

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/musicreview/scraper/internal/metrics"
)

// Defaults for the review-page HTTP contract.
const (
	DefaultBaseURL   = "https://www.plattentests.de/rezi.php"
	DefaultUserAgent = "review-scraper/1.0 (+https://github.com/musicreview/scraper)"
	DefaultTimeout   = 10 * time.Second

	acceptHeader = "text/html,application/xhtml+xml"
)

// Sentinel errors returned by Fetch. Both are expected, non-fatal outcomes
// that the pipeline downgrades to skipped identifiers.
var (
	// ErrNotFound means the source has no page for the identifier (404).
	ErrNotFound = errors.New("review does not exist")
	// ErrUnavailable means the page could not be fetched: retries were
	// exhausted or the status was unrecoverable.
	ErrUnavailable = errors.New("review could not be fetched")
)

// FetcherConfig controls the HTTP behavior of a Fetcher.
type FetcherConfig struct {
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	TLSSkipVerify bool
}

// Fetcher issues one GET per review identifier and classifies the outcome:
// 404 short-circuits, 5xx and network errors retry with backoff, other 4xx
// are unrecoverable. The Fetcher owns its collector and transport for the
// lifetime of a run.
type Fetcher struct {
	cfg       FetcherConfig
	retry     *ExponentialRetryPolicy
	transport http.RoundTripper
	base      *colly.Collector
	logger    *zap.Logger
}

// NewFetcher builds a Fetcher. Zero-valued config fields fall back to the
// package defaults; a nil retry policy falls back to DefaultRetryPolicy.
func NewFetcher(cfg FetcherConfig, retry *ExponentialRetryPolicy, logger *zap.Logger) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := newHTTPTransport(cfg.TLSSkipVerify)
	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(cfg.Timeout)
	c.WithTransport(transport)

	return &Fetcher{
		cfg:       cfg,
		retry:     retry,
		transport: transport,
		base:      c,
		logger:    logger,
	}
}

// URL builds the deterministic page URL for a review identifier.
func (f *Fetcher) URL(id int) string {
	return fmt.Sprintf("%s?show=%d", f.cfg.BaseURL, id)
}

// Fetch returns the page HTML for one review identifier. It retries
// transient failures per the retry policy and returns ErrNotFound or
// ErrUnavailable for the two absent outcomes. Only context cancellation is
// returned undecorated.
func (f *Fetcher) Fetch(ctx context.Context, id int) (string, error) {
	url := f.URL(id)

	for attempt := 1; ; attempt++ {
		body, status, err := f.attempt(ctx, url)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err == nil {
			f.logger.Debug("fetched review",
				zap.Int("id", id),
				zap.Int("status", status),
				zap.Int("attempt", attempt),
			)
			return body, nil
		}

		switch {
		case status == http.StatusNotFound:
			f.logger.Info("review not found", zap.Int("id", id))
			return "", ErrNotFound
		case status >= 400 && status < 500:
			f.logger.Error("unrecoverable HTTP error",
				zap.Int("id", id),
				zap.Int("status", status),
				zap.Error(err),
			)
			return "", fmt.Errorf("%w: unexpected status %d", ErrUnavailable, status)
		}

		// Transient: 5xx or a network-level error.
		if attempt >= f.retry.MaxAttempts() {
			f.logger.Warn("retries exhausted",
				zap.Int("id", id),
				zap.Int("status", status),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return "", fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, attempt, err)
		}

		delay := f.retry.Backoff(attempt)
		f.logger.Warn("transient fetch failure, retrying",
			zap.Int("id", id),
			zap.Int("status", status),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		metrics.ObserveRetry()
		if err := sleepContext(ctx, delay); err != nil {
			return "", err
		}
	}
}

// attempt performs a single GET. A nil error means a body was returned;
// otherwise status carries the HTTP status when one was received (0 for
// pure network failures).
func (f *Fetcher) attempt(ctx context.Context, url string) (body string, status int, err error) {
	collector := f.base.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(f.transport)

	var (
		respBody   []byte
		respStatus int
		respErr    error
	)
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", acceptHeader)
	})
	collector.OnResponse(func(r *colly.Response) {
		respStatus = r.StatusCode
		respBody = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, e error) {
		if r != nil {
			respStatus = r.StatusCode
		}
		respErr = e
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return "", 0, ctx.Err()
	case visitErr := <-done:
		if respErr != nil {
			return "", respStatus, respErr
		}
		if visitErr != nil {
			return "", respStatus, visitErr
		}
		return string(respBody), respStatus, nil
	}
}

func newHTTPTransport(tlsSkipVerify bool) *http.Transport {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	if tlsSkipVerify {
		// Never enabled in production; see config docs.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}
	return transport
}

// Close releases the fetcher's idle connections. Safe to call on every
// exit path.
func (f *Fetcher) Close() {
	if t, ok := f.transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}
