package syncer

import (
	"context"
	"fmt"

	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/model"
	"github.com/quantfold/marketcurator/internal/upstream"
)

// handleEventsJob upserts one page of the events dimension and enqueues the
// next page while a cursor comes back.
func (s *Syncer) handleEventsJob(ctx context.Context, payload []byte) error {
	var job bus.EventsSyncJob
	if !s.decodeJob(bus.QueueEvents, payload, &job) {
		return nil
	}

	status := job.Status
	if status == "" {
		status = s.cfg.DefaultStatus
	}

	resp, err := s.upstream.GetEvents(ctx, upstream.GetEventsOptions{
		Limit:  s.cfg.PageLimit,
		Cursor: job.Cursor,
		Status: status,
	})
	if err != nil {
		if s.dropOnRateLimit(bus.QueueEvents, err) {
			return nil
		}
		return err
	}

	now := s.now().UTC()
	rows := make([]model.Event, 0, len(resp.Events))
	for i := range resp.Events {
		rows = append(rows, resp.Events[i].ToEvent(now))
	}

	err = s.retryStore(ctx, func() error {
		return s.storage.UpsertEvents(ctx, rows)
	})
	if err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	s.countRows("events", len(rows), 0)

	s.logger.Info("events page stored", "events", len(rows), "next_cursor", resp.Cursor != "")

	if resp.Cursor != "" {
		next := bus.EventsSyncJob{Status: job.Status, Cursor: resp.Cursor}
		if err := s.dispatcher.EnqueueEventsSync(ctx, next); err != nil {
			s.logger.Warn("events continuation publish failed, sync truncated", "err", err)
		}
	}

	return nil
}
