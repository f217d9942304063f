package syncer

import (
	"context"
	"fmt"
	"sync"

	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/model"
	"github.com/quantfold/marketcurator/internal/upstream"
)

// handleEventDetailBatch fetches full detail for a batch of events
// concurrently. Each message succeeds or fails on its own: one bad event
// never retries its batchmates.
func (s *Syncer) handleEventDetailBatch(ctx context.Context, payloads [][]byte) []error {
	results := make([]error, len(payloads))

	var wg sync.WaitGroup
	for i, payload := range payloads {
		wg.Add(1)
		go func(i int, payload []byte) {
			defer wg.Done()
			results[i] = s.syncEventDetail(ctx, payload)
		}(i, payload)
	}
	wg.Wait()

	return results
}

func (s *Syncer) syncEventDetail(ctx context.Context, payload []byte) error {
	var job bus.EventDetailJob
	if !s.decodeJob(bus.QueueEventDetail, payload, &job) {
		return nil
	}

	resp, err := s.upstream.GetEvent(ctx, job.EventTicker)
	if err != nil {
		if s.dropOnRateLimit(bus.QueueEventDetail, err) {
			return nil
		}
		if upstream.IsNotFound(err) {
			// The event expired between enqueue and fetch.
			s.logger.Warn("event gone upstream, dropping", "event_ticker", job.EventTicker)
			s.countDropped(bus.QueueEventDetail)
			return nil
		}
		return err
	}

	now := s.now().UTC()

	event := resp.Event.ToEvent(now)
	err = s.retryStore(ctx, func() error {
		return s.storage.UpsertEvents(ctx, []model.Event{event})
	})
	if err != nil {
		return fmt.Errorf("store event %s: %w", job.EventTicker, err)
	}
	s.countRows("events", 1, 0)

	markets := resp.Markets
	if len(markets) == 0 {
		markets = resp.Event.Markets
	}

	rows := make([]model.MarketSnapshot, 0, len(markets))
	for i := range markets {
		snap, mismatched := upstream.ToSnapshot(&markets[i], now)
		if len(mismatched) > 0 {
			s.logger.Warn("dollar strings disagree with cents, derived values win",
				"ticker", snap.Ticker, "fields", mismatched)
		}
		if err := validateSnapshot(snap); err != nil {
			s.logger.Warn("skipping invalid market", "ticker", snap.Ticker, "err", err)
			continue
		}
		rows = append(rows, snap)
	}

	var conflicts int
	err = s.retryStore(ctx, func() error {
		var werr error
		conflicts, werr = s.storage.InsertSnapshots(ctx, rows)
		return werr
	})
	if err != nil {
		return fmt.Errorf("store event markets %s: %w", job.EventTicker, err)
	}
	s.countRows("market_snapshots", len(rows)-conflicts, conflicts)

	s.logger.Debug("event detail stored", "event_ticker", job.EventTicker, "markets", len(rows))
	return nil
}
