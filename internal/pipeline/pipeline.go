// Package pipeline sequences review identifiers through the rate limiter,
// fetcher, parser and corpus store.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/musicreview/scraper/internal/corpus"
	"github.com/musicreview/scraper/internal/metrics"
	"github.com/musicreview/scraper/internal/review"
	"github.com/musicreview/scraper/internal/scraper"
)

// Mode selects how a run reconciles with an existing corpus.
type Mode string

const (
	// ModeAdd appends new identifiers and skips ones already present.
	ModeAdd Mode = "add"
	// ModeUpdate overwrites existing identifiers and rewrites the whole
	// corpus at the end of the run.
	ModeUpdate Mode = "update"
)

// ParseMode validates a mode string from configuration.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeAdd, ModeUpdate:
		return Mode(raw), nil
	default:
		return "", fmt.Errorf("unknown reconciliation mode %q (want add or update)", raw)
	}
}

// Fetcher returns page HTML for one identifier.
type Fetcher interface {
	Fetch(ctx context.Context, id int) (string, error)
}

// Parser turns page HTML into a Review.
type Parser interface {
	Parse(id int, html string) (*review.Review, error)
}

// Limiter gates the request rate.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Store is the corpus surface the pipeline needs.
type Store interface {
	LoadIDs() (map[int]struct{}, error)
	Load() (map[int]review.Review, error)
	Append(rev review.Review) error
	WriteAll(reviews map[int]review.Review) error
}

var _ Store = (*corpus.Store)(nil)

// Stats counts per-identifier outcomes for one run.
type Stats struct {
	Processed int // reviews stored (add) or staged (update)
	Skipped   int // identifiers already present, add mode only
	NotFound  int
	Failed    int // fetch failures after retries
	Unparsed  int
}

// Pipeline drives one sequential scrape run.
type Pipeline struct {
	limiter Limiter
	fetcher Fetcher
	parser  Parser
	store   Store
	mode    Mode
	logger  *zap.Logger
}

// New wires the pipeline components together.
func New(limiter Limiter, fetcher Fetcher, parser Parser, store Store, mode Mode, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		limiter: limiter,
		fetcher: fetcher,
		parser:  parser,
		store:   store,
		mode:    mode,
		logger:  logger,
	}
}

// Run processes identifiers startID..endID inclusive, strictly in order.
// Per-identifier failures are logged and counted, never returned; the only
// errors Run propagates are configuration errors, store I/O failures and
// context cancellation. Cancellation is honored between identifiers, and in
// update mode a cancellation before the final rewrite leaves the prior
// corpus untouched.
func (p *Pipeline) Run(ctx context.Context, startID, endID int) (Stats, error) {
	var stats Stats

	if startID < 1 {
		return stats, fmt.Errorf("start id must be >= 1, got %d", startID)
	}
	if endID < startID {
		return stats, fmt.Errorf("end id %d must be >= start id %d", endID, startID)
	}

	logger := p.logger.With(zap.String("run_id", uuid.NewString()))

	ids := make([]int, 0, endID-startID+1)
	for id := startID; id <= endID; id++ {
		ids = append(ids, id)
	}

	if p.mode == ModeAdd {
		existing, err := p.store.LoadIDs()
		if err != nil {
			return stats, err
		}
		kept := ids[:0]
		for _, id := range ids {
			if _, ok := existing[id]; ok {
				stats.Skipped++
				continue
			}
			kept = append(kept, id)
		}
		ids = kept
		if stats.Skipped > 0 {
			logger.Info("skipping identifiers already in corpus",
				zap.Int("skipped", stats.Skipped),
			)
		}
	}

	// In update mode the whole corpus must be in memory before anything is
	// fetched; the final rewrite would otherwise truncate records outside
	// the requested range.
	var staged map[int]review.Review
	if p.mode == ModeUpdate {
		loaded, err := p.store.Load()
		if err != nil {
			return stats, err
		}
		staged = loaded
		logger.Info("loaded existing corpus", zap.Int("reviews", len(staged)))
	}

	logger.Info("starting run",
		zap.Int("start_id", startID),
		zap.Int("end_id", endID),
		zap.Int("to_fetch", len(ids)),
		zap.String("mode", string(p.mode)),
	)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return stats, err
		}

		html, err := p.fetcher.Fetch(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			switch {
			case errors.Is(err, scraper.ErrNotFound):
				stats.NotFound++
				metrics.ObserveReview(metrics.OutcomeNotFound)
			default:
				stats.Failed++
				metrics.ObserveReview(metrics.OutcomeFailed)
			}
			continue
		}

		rev, err := p.parser.Parse(id, html)
		if err != nil {
			stats.Unparsed++
			metrics.ObserveReview(metrics.OutcomeUnparseable)
			logger.Warn("skipping unparseable review",
				zap.Int("id", id),
				zap.Error(err),
			)
			continue
		}

		if p.mode == ModeAdd {
			if err := p.store.Append(*rev); err != nil {
				return stats, err
			}
		} else {
			staged[rev.ID] = *rev
		}
		metrics.ObserveReview(metrics.OutcomeStored)
		metrics.ObservePersisted(string(p.mode))
		stats.Processed++

		if stats.Processed%50 == 0 {
			logger.Info("progress", zap.Int("processed", stats.Processed))
		}
	}

	if p.mode == ModeUpdate {
		if err := p.store.WriteAll(staged); err != nil {
			return stats, err
		}
		logger.Info("rewrote corpus",
			zap.Int("reviews", len(staged)),
			zap.Int("updated", stats.Processed),
		)
	}

	logger.Info("run finished",
		zap.Int("processed", stats.Processed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("not_found", stats.NotFound),
		zap.Int("failed", stats.Failed),
		zap.Int("unparsed", stats.Unparsed),
	)
	return stats, nil
}
