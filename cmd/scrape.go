package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/musicreview/scraper/internal/config"
	"github.com/musicreview/scraper/internal/corpus"
	"github.com/musicreview/scraper/internal/logging"
	"github.com/musicreview/scraper/internal/metrics"
	"github.com/musicreview/scraper/internal/parser"
	"github.com/musicreview/scraper/internal/pipeline"
	"github.com/musicreview/scraper/internal/scraper"
)

// bootstrap loads the typed configuration and builds the logger. Every
// subcommand starts here so configuration errors fail before any fetching.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Verbose)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// scrapeRange runs the full pipeline for an inclusive identifier range,
// serving the optional metrics endpoint alongside it.
func scrapeRange(ctx context.Context, cfg config.Config, logger *zap.Logger, startID, endID int) error {
	mode, err := pipeline.ParseMode(cfg.Scraper.ExistingMode)
	if err != nil {
		return err
	}
	limiter, err := scraper.NewRateLimiter(cfg.Scraper.MaxRPS)
	if err != nil {
		return err
	}

	metrics.Init()

	retry := scraper.NewExponentialRetryPolicy(
		cfg.Scraper.MaxRetries,
		cfg.Scraper.BackoffBase,
		cfg.Scraper.BackoffMax,
	)
	fetcher := scraper.NewFetcher(scraper.FetcherConfig{
		BaseURL:       cfg.Scraper.BaseURL,
		UserAgent:     cfg.Scraper.UserAgent,
		Timeout:       cfg.Scraper.Timeout,
		TLSSkipVerify: cfg.Scraper.TLSSkipVerify,
	}, retry, logger)
	defer fetcher.Close()

	store := corpus.NewStore(cfg.Output.Path, logger)
	pipe := pipeline.New(limiter, fetcher, parser.New(cfg.Scraper.BaseURL), store, mode, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Addr, logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	g.Go(func() error {
		defer cancel()
		_, err := pipe.Run(gctx, startID, endID)
		return err
	})

	// cancel() after a normal pipeline finish also stops the metrics
	// server, so a clean run waits out both goroutines.
	err = g.Wait()
	if ctx.Err() != nil {
		return context.Canceled
	}
	if err != nil {
		return fmt.Errorf("run scraper: %w", err)
	}
	return nil
}
