// Package cleanup retires settled markets: a sweep finds tickers whose
// latest snapshot settled before the retention cutoff and enqueues one
// cascade-delete job per ticker.
package cleanup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/dispatch"
	"github.com/quantfold/marketcurator/internal/metrics"
	"github.com/quantfold/marketcurator/internal/store"
)

// Storage is the store slice the cleanup service needs.
type Storage interface {
	SettledTickersBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	PurgeMarket(ctx context.Context, ticker string) (store.PurgeCounts, error)
}

// Service sweeps for settled markets and consumes the purge jobs.
type Service struct {
	storage    Storage
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	retention  time.Duration
	now        func() time.Time
}

// New wires the cleanup service. m may be nil.
func New(storage Storage, d *dispatch.Dispatcher, m *metrics.Metrics, retention time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		storage:    storage,
		dispatcher: d,
		metrics:    m,
		logger:     logger,
		retention:  retention,
		now:        time.Now,
	}
}

// Register subscribes the purge consumer.
func (s *Service) Register(ctx context.Context, b bus.Bus) error {
	if err := b.Subscribe(ctx, bus.QueueCleanup, 1, s.handleCleanupJob); err != nil {
		return fmt.Errorf("subscribe %s: %w", bus.QueueCleanup, err)
	}
	return nil
}

// Sweep enumerates settled markets older than the retention cutoff and
// enqueues one cleanup job each. Returns the number of markets queued.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.retention)

	tickers, err := s.storage.SettledTickersBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup sweep: %w", err)
	}

	queued := 0
	for _, ticker := range tickers {
		if err := s.dispatcher.EnqueueCleanup(ctx, ticker); err != nil {
			return queued, fmt.Errorf("enqueue cleanup %s: %w", ticker, err)
		}
		queued++
	}

	s.logger.Info("cleanup sweep done", "cutoff", cutoff, "markets_queued", queued)
	return queued, nil
}

// Purge cascades deletes for one market immediately, bypassing the queue.
// Backs the operator endpoint for a targeted cleanup.
func (s *Service) Purge(ctx context.Context, ticker string) (store.PurgeCounts, error) {
	counts, err := s.storage.PurgeMarket(ctx, ticker)
	if err != nil {
		return counts, err
	}
	s.logger.Info("market purged", "ticker", ticker, "rows_deleted", counts.Total())
	return counts, nil
}

// handleCleanupJob purges one market. A redelivery for an already purged
// ticker deletes zero rows and still acknowledges.
func (s *Service) handleCleanupJob(ctx context.Context, payload []byte) error {
	var job bus.CleanupJob
	if err := json.Unmarshal(payload, &job); err != nil {
		s.logger.Warn("dropping malformed cleanup job", "err", err)
		return nil
	}

	counts, err := s.storage.PurgeMarket(ctx, job.Ticker)
	if err != nil {
		return fmt.Errorf("purge %s: %w", job.Ticker, err)
	}

	if s.metrics != nil {
		s.metrics.JobsDone.WithLabelValues(bus.QueueCleanup).Inc()
	}

	s.logger.Info("market cleaned up",
		"ticker", job.Ticker,
		"snapshots", counts.Snapshots,
		"candlesticks", counts.Candlesticks,
		"orderbook_rows", counts.OrderbookSnapshots+counts.OrderbookEvents,
		"features", counts.Features,
	)
	return nil
}
