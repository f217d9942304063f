package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/store"
)

// handleCandlestickJob refreshes daily candles for one watchlisted market.
// The candle service handles the differential logic; this consumer resolves
// the upstream addressing and applies the queue discipline.
func (s *Syncer) handleCandlestickJob(ctx context.Context, payload []byte) error {
	var job bus.CandlestickSyncJob
	if !s.decodeJob(bus.QueueCandlesticks, payload, &job) {
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
	if !entry.FetchCandlesticks {
		s.logger.Debug("candle fetch disabled for ticker, skipping", "ticker", job.Ticker)
		return nil
	}

	seriesTicker, err := s.seriesTickerFor(ctx, job.Ticker)
	if errors.Is(err, store.ErrNotFound) {
		// The candle endpoint is addressed by series; without a snapshot
		// there is nothing to resolve it from yet.
		s.logger.Warn("no snapshot history for ticker, dropping candle job", "ticker", job.Ticker)
		s.countDropped(bus.QueueCandlesticks)
		return nil
	}
	if err != nil {
		return err
	}

	inserted, conflicts, err := s.candles.Sync(ctx, seriesTicker, job.Ticker)
	if err != nil {
		if s.dropOnRateLimit(bus.QueueCandlesticks, err) {
			return nil
		}
		return err
	}
	s.countRows("candlesticks", inserted, conflicts)

	s.logger.Debug("candles refreshed", "ticker", job.Ticker, "inserted", inserted, "conflicts", conflicts)
	return nil
}

// seriesTickerFor resolves a market's parent series from the event
// dimension, falling back to the snapshot's series key.
func (s *Syncer) seriesTickerFor(ctx context.Context, ticker string) (string, error) {
	snap, err := s.storage.LatestSnapshot(ctx, ticker)
	if err != nil {
		return "", err
	}

	if snap.EventTicker != "" {
		event, err := s.storage.GetEvent(ctx, snap.EventTicker)
		if err == nil && event.SeriesTicker != "" {
			return event.SeriesTicker, nil
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("event lookup %s: %w", snap.EventTicker, err)
		}
	}

	return snap.SeriesKey, nil
}
