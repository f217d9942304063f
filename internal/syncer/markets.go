package syncer

import (
	"context"
	"fmt"

	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/model"
	"github.com/quantfold/marketcurator/internal/upstream"
)

// handleSnapshotJob processes one page of the market-snapshot sync: fetch a
// page, append snapshot rows, publish the continuation when a cursor comes
// back, and mark the page done so the family lock can drain.
func (s *Syncer) handleSnapshotJob(ctx context.Context, payload []byte) error {
	var job bus.SnapshotSyncJob
	if !s.decodeJob(bus.QueueMarketSnapshots, payload, &job) {
		s.finishPage(ctx)
		return nil
	}

	status := job.Status
	if status == "" {
		status = s.cfg.DefaultStatus
	}

	resp, err := s.upstream.GetMarkets(ctx, upstream.GetMarketsOptions{
		Limit:             s.cfg.SnapshotPageLimit,
		Cursor:            job.Cursor,
		Status:            status,
		MinCreatedTs:      job.MinCreatedTs,
		MaxCreatedTs:      job.MaxCreatedTs,
		WithNestedMarkets: true,
	})
	if err != nil {
		if s.dropOnRateLimit(bus.QueueMarketSnapshots, err) {
			s.finishPage(ctx)
			return nil
		}
		return err
	}

	generateDate := s.now().UTC()
	rows := make([]model.MarketSnapshot, 0, len(resp.Markets))
	for i := range resp.Markets {
		snap, mismatched := upstream.ToSnapshot(&resp.Markets[i], generateDate)
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
		return fmt.Errorf("store snapshots: %w", err)
	}
	s.countRows("market_snapshots", len(rows)-conflicts, conflicts)

	s.logger.Info("snapshot page stored",
		"markets", len(rows),
		"conflicts", conflicts,
		"next_cursor", resp.Cursor != "",
	)

	if resp.Cursor != "" {
		job.Cursor = resp.Cursor
		if err := s.dispatcher.ContinueSnapshotSync(ctx, job); err != nil {
			s.logger.Warn("continuation publish failed, sync truncated", "err", err)
		}
	}

	s.finishPage(ctx)
	return nil
}

func (s *Syncer) finishPage(ctx context.Context) {
	if _, err := s.dispatcher.FinishSnapshotJob(ctx); err != nil {
		s.logger.Warn("finish snapshot page", "err", err)
	}
}

// validateSnapshot enforces price sanity before a row reaches the store:
// every cent price within [0, 100] and the YES bid at or below the YES ask.
func validateSnapshot(snap model.MarketSnapshot) error {
	prices := map[string]int{
		"yes_bid":    snap.YesBid,
		"yes_ask":    snap.YesAsk,
		"no_bid":     snap.NoBid,
		"no_ask":     snap.NoAsk,
		"last_price": snap.LastPrice,
	}
	for field, p := range prices {
		if p < 0 || p > 100 {
			return fmt.Errorf("%s out of range: %d", field, p)
		}
	}
	if snap.YesBid > snap.YesAsk {
		return fmt.Errorf("crossed quote: yes_bid %d > yes_ask %d", snap.YesBid, snap.YesAsk)
	}
	return nil
}
