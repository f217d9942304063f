package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quantfold/marketcurator/internal/model"
)

// ListWatchlist returns all watchlist entries ordered by priority descending.
// Consumers take this as a point-in-time view at job start.
func (s *Store) ListWatchlist(ctx context.Context) ([]model.WatchlistEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ticker, priority, enable_l1, enable_l2, enable_l3,
			fetch_candlesticks, fetch_orderbook, last_update
		FROM market_watchlist
		ORDER BY priority DESC, ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	var out []model.WatchlistEntry
	for rows.Next() {
		var e model.WatchlistEntry
		if err := rows.Scan(&e.Ticker, &e.Priority, &e.EnableL1, &e.EnableL2, &e.EnableL3,
			&e.FetchCandlesticks, &e.FetchOrderbook, &e.LastUpdate); err != nil {
			return nil, fmt.Errorf("scan watchlist entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetWatchlistEntry returns one watchlist row.
func (s *Store) GetWatchlistEntry(ctx context.Context, ticker string) (*model.WatchlistEntry, error) {
	var e model.WatchlistEntry
	err := s.db.QueryRow(ctx, `
		SELECT ticker, priority, enable_l1, enable_l2, enable_l3,
			fetch_candlesticks, fetch_orderbook, last_update
		FROM market_watchlist WHERE ticker = $1
	`, ticker).Scan(&e.Ticker, &e.Priority, &e.EnableL1, &e.EnableL2, &e.EnableL3,
		&e.FetchCandlesticks, &e.FetchOrderbook, &e.LastUpdate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get watchlist entry: %w", err)
	}
	return &e, nil
}

// UpsertWatchlistEntry replaces one watchlist row.
func (s *Store) UpsertWatchlistEntry(ctx context.Context, e model.WatchlistEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO market_watchlist (ticker, priority, enable_l1, enable_l2, enable_l3,
			fetch_candlesticks, fetch_orderbook, last_update)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (ticker) DO UPDATE SET
			priority = EXCLUDED.priority,
			enable_l1 = EXCLUDED.enable_l1,
			enable_l2 = EXCLUDED.enable_l2,
			enable_l3 = EXCLUDED.enable_l3,
			fetch_candlesticks = EXCLUDED.fetch_candlesticks,
			fetch_orderbook = EXCLUDED.fetch_orderbook,
			last_update = EXCLUDED.last_update
	`, e.Ticker, e.Priority, e.EnableL1, e.EnableL2, e.EnableL3,
		e.FetchCandlesticks, e.FetchOrderbook, e.LastUpdate)
	if err != nil {
		return fmt.Errorf("upsert watchlist entry: %w", err)
	}
	return nil
}
