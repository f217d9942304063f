package syncer

import (
	"context"
	"fmt"

	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/model"
	"github.com/quantfold/marketcurator/internal/upstream"
)

// handleSeriesJob upserts one page of the series dimension and enqueues the
// next page while a cursor comes back.
func (s *Syncer) handleSeriesJob(ctx context.Context, payload []byte) error {
	var job bus.SeriesSyncJob
	if !s.decodeJob(bus.QueueSeries, payload, &job) {
		return nil
	}

	resp, err := s.upstream.GetSeriesList(ctx, upstream.GetSeriesListOptions{
		Limit:  s.cfg.PageLimit,
		Cursor: job.Cursor,
	})
	if err != nil {
		if s.dropOnRateLimit(bus.QueueSeries, err) {
			return nil
		}
		return err
	}

	now := s.now().UTC()
	rows := make([]model.Series, 0, len(resp.Series))
	for i := range resp.Series {
		rows = append(rows, resp.Series[i].ToSeries(now))
	}

	err = s.retryStore(ctx, func() error {
		return s.storage.UpsertSeries(ctx, rows)
	})
	if err != nil {
		return fmt.Errorf("store series: %w", err)
	}
	s.countRows("series", len(rows), 0)

	s.logger.Info("series page stored", "series", len(rows), "next_cursor", resp.Cursor != "")

	if resp.Cursor != "" {
		if err := s.dispatcher.EnqueueSeriesSync(ctx, bus.SeriesSyncJob{Cursor: resp.Cursor}); err != nil {
			s.logger.Warn("series continuation publish failed, sync truncated", "err", err)
		}
	}

	return nil
}
