package store

import (
	"context"
	"fmt"
	"time"
)

// PurgeCounts reports rows deleted per table by PurgeMarket.
type PurgeCounts struct {
	Snapshots          int64
	Candlesticks       int64
	OrderbookSnapshots int64
	OrderbookEvents    int64
	Features           int64
	Watchlist          int64
}

// Total returns the sum across all tables.
func (c PurgeCounts) Total() int64 {
	return c.Snapshots + c.Candlesticks + c.OrderbookSnapshots +
		c.OrderbookEvents + c.Features + c.Watchlist
}

// PurgeMarket deletes every row keyed by ticker across the derived tables,
// in one transaction. Re-running for an already-purged ticker deletes
// nothing and is not an error.
func (s *Store) PurgeMarket(ctx context.Context, ticker string) (PurgeCounts, error) {
	var counts PurgeCounts

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return counts, fmt.Errorf("begin purge: %w", err)
	}
	defer tx.Rollback(ctx)

	deletes := []struct {
		sql  string
		dest *int64
	}{
		{`DELETE FROM market_snapshots WHERE ticker = $1`, &counts.Snapshots},
		{`DELETE FROM candlesticks WHERE ticker = $1`, &counts.Candlesticks},
		{`DELETE FROM orderbook_snapshots WHERE ticker = $1`, &counts.OrderbookSnapshots},
		{`DELETE FROM orderbook_events WHERE ticker = $1`, &counts.OrderbookEvents},
		{`DELETE FROM market_features WHERE ticker = $1`, &counts.Features},
		{`DELETE FROM market_watchlist WHERE ticker = $1`, &counts.Watchlist},
	}

	for _, d := range deletes {
		ct, err := tx.Exec(ctx, d.sql, ticker)
		if err != nil {
			return counts, fmt.Errorf("purge %s: %w", ticker, err)
		}
		*d.dest = ct.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return counts, fmt.Errorf("commit purge: %w", err)
	}

	return counts, nil
}

// AppendSyncLog records one enqueued job.
func (s *Store) AppendSyncLog(ctx context.Context, family string, payload []byte, enqueuedAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sync_log (family, payload, enqueued_at)
		VALUES ($1, $2, $3)
	`, family, payload, enqueuedAt)
	if err != nil {
		return fmt.Errorf("append sync log: %w", err)
	}
	return nil
}
