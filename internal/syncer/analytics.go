package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/store"
)

// handleAnalyticsJob computes one feature row for a watchlisted market.
func (s *Syncer) handleAnalyticsJob(ctx context.Context, payload []byte) error {
	var job bus.AnalyticsJob
	if !s.decodeJob(bus.QueueAnalytics, payload, &job) {
		return nil
	}

	entry, err := s.storage.GetWatchlistEntry(ctx, job.Ticker)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Debug("ticker no longer watchlisted, skipping", "ticker", job.Ticker)
		return nil
	}
	if err != nil {
		return fmt.Errorf("watchlist lookup %s: %w", job.Ticker, err)
	}

	if err := s.engine.Process(ctx, *entry); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Debug("no snapshot history yet, skipping features", "ticker", job.Ticker)
			return nil
		}
		return err
	}
	s.countRows("market_features", 1, 0)

	s.logger.Debug("features computed", "ticker", job.Ticker)
	return nil
}
