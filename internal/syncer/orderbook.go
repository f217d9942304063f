package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantfold/marketcurator/internal/bookdiff"
	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/model"
	"github.com/quantfold/marketcurator/internal/store"
)

// handleOrderbookJob captures a depth snapshot for one watchlisted market
// and appends the diff against the previous capture as change events.
func (s *Syncer) handleOrderbookJob(ctx context.Context, payload []byte) error {
	var job bus.OrderbookSyncJob
	if !s.decodeJob(bus.QueueOrderbook, payload, &job) {
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
	if !entry.FetchOrderbook {
		s.logger.Debug("orderbook fetch disabled for ticker, skipping", "ticker", job.Ticker)
		return nil
	}

	var prior *model.OrderbookSnapshot
	prior, err = s.storage.LatestOrderbookSnapshot(ctx, job.Ticker)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("prior orderbook %s: %w", job.Ticker, err)
	}

	resp, err := s.upstream.GetOrderbook(ctx, job.Ticker, 0)
	if err != nil {
		if s.dropOnRateLimit(bus.QueueOrderbook, err) {
			return nil
		}
		return err
	}

	snap := resp.ToOrderbookSnapshot(job.Ticker, s.now().UTC())
	events := bookdiff.Diff(prior, &snap)

	err = s.retryStore(ctx, func() error {
		return s.storage.InsertOrderbookSnapshot(ctx, snap)
	})
	if err != nil {
		return fmt.Errorf("store orderbook %s: %w", job.Ticker, err)
	}
	s.countRows("orderbook_snapshots", 1, 0)

	var conflicts int
	err = s.retryStore(ctx, func() error {
		var werr error
		conflicts, werr = s.storage.InsertOrderbookEvents(ctx, events)
		return werr
	})
	if err != nil {
		return fmt.Errorf("store orderbook events %s: %w", job.Ticker, err)
	}
	s.countRows("orderbook_events", len(events)-conflicts, conflicts)

	s.logger.Debug("orderbook captured", "ticker", job.Ticker, "events", len(events))
	return nil
}
