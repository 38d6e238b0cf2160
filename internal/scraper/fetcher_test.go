package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFetcher(t *testing.T, baseURL string, maxRetries int) *Fetcher {
	t.Helper()
	retry := NewExponentialRetryPolicy(maxRetries, time.Millisecond, 2*time.Millisecond)
	f := NewFetcher(FetcherConfig{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
	}, retry, zap.NewNop())
	t.Cleanup(f.Close)
	return f
}

func TestFetchReturnsBody(t *testing.T) {
	t.Parallel()

	var gotPath atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.String())
		require.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<html>review</html>"))
	}))
	defer ts.Close()

	f := newTestFetcher(t, ts.URL, 0)
	body, err := f.Fetch(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, "<html>review</html>", body)
	require.Equal(t, "/?show=42", gotPath.Load())
}

func TestFetch404ShortCircuits(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	f := newTestFetcher(t, ts.URL, 3)
	_, err := f.Fetch(context.Background(), 1)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, int32(1), attempts.Load())
}

func TestFetchRetryBoundOn503(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	f := newTestFetcher(t, ts.URL, 3)
	_, err := f.Fetch(context.Background(), 1)
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, int32(4), attempts.Load(), "one initial attempt plus three retries")
}

func TestFetchRecoversAfterTransientFailures(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("late but fine"))
	}))
	defer ts.Close()

	f := newTestFetcher(t, ts.URL, 3)
	body, err := f.Fetch(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "late but fine", body)
	require.Equal(t, int32(3), attempts.Load())
}

func TestFetchUnexpected4xxDoesNotRetry(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	f := newTestFetcher(t, ts.URL, 3)
	_, err := f.Fetch(context.Background(), 1)
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, int32(1), attempts.Load())
}

func TestFetchPropagatesCancellation(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newTestFetcher(t, ts.URL, 3)
	_, err := f.Fetch(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestURLTemplate(t *testing.T) {
	t.Parallel()

	f := NewFetcher(FetcherConfig{}, nil, nil)
	require.Equal(t, "https://www.plattentests.de/rezi.php?show=21235", f.URL(21235))
}
