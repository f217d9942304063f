package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quantfold/marketcurator/internal/model"
)

// ErrNotFound is returned by point reads that match no row.
var ErrNotFound = errors.New("store: not found")

const snapshotColumns = `snapshot_id, ticker, event_ticker, series_key, generate_date,
	market_type, status, result, rules,
	yes_bid, yes_ask, no_bid, no_ask, last_price,
	previous_yes_bid, previous_yes_ask, previous_price,
	yes_bid_dollars, yes_ask_dollars, no_bid_dollars, no_ask_dollars, last_price_dollars,
	volume_24h, open_interest, liquidity, notional_value,
	open_time, close_time, expiration_time, settlement_value`

// InsertSnapshots bulk-appends snapshot rows. Duplicate (ticker,
// generate_date) pairs conflict silently; the conflict count is returned.
func (s *Store) InsertSnapshots(ctx context.Context, rows []model.MarketSnapshot) (conflicts int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO market_snapshots (`+snapshotColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)
			ON CONFLICT (ticker, generate_date) DO NOTHING
		`, r.SnapshotID, r.Ticker, r.EventTicker, r.SeriesKey, r.GenerateDate,
			r.MarketType, r.Status, r.Result, r.Rules,
			r.YesBid, r.YesAsk, r.NoBid, r.NoAsk, r.LastPrice,
			r.PreviousYesBid, r.PreviousYesAsk, r.PreviousPrice,
			r.YesBidDollars, r.YesAskDollars, r.NoBidDollars, r.NoAskDollars, r.LastPriceDollars,
			r.Volume24h, r.OpenInterest, r.Liquidity, r.NotionalValue,
			r.OpenTime, r.CloseTime, r.ExpirationTime, r.SettlementValue)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, fmt.Errorf("insert snapshots: %w", err)
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

// LatestSnapshot returns the newest snapshot for a ticker. Ties on
// generate_date break by snapshot_id descending for determinism.
func (s *Store) LatestSnapshot(ctx context.Context, ticker string) (*model.MarketSnapshot, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+snapshotColumns+`
		FROM market_snapshots
		WHERE ticker = $1
		ORDER BY generate_date DESC, snapshot_id DESC
		LIMIT 1
	`, ticker)

	return scanSnapshot(row)
}

// SnapshotAtOrBefore returns the newest snapshot at or before t.
func (s *Store) SnapshotAtOrBefore(ctx context.Context, ticker string, t time.Time) (*model.MarketSnapshot, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+snapshotColumns+`
		FROM market_snapshots
		WHERE ticker = $1 AND generate_date <= $2
		ORDER BY generate_date DESC, snapshot_id DESC
		LIMIT 1
	`, ticker, t)

	return scanSnapshot(row)
}

// SettledTickersBefore returns tickers whose latest snapshot has a settled
// status and is older than cutoff. Feeds the cleanup sweep.
func (s *Store) SettledTickersBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ticker FROM (
			SELECT DISTINCT ON (ticker) ticker, status, generate_date
			FROM market_snapshots
			ORDER BY ticker, generate_date DESC, snapshot_id DESC
		) latest
		WHERE status IN ('finalized', 'closed') AND generate_date < $1
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("settled tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

func scanSnapshot(row pgx.Row) (*model.MarketSnapshot, error) {
	var m model.MarketSnapshot
	err := row.Scan(
		&m.SnapshotID, &m.Ticker, &m.EventTicker, &m.SeriesKey, &m.GenerateDate,
		&m.MarketType, &m.Status, &m.Result, &m.Rules,
		&m.YesBid, &m.YesAsk, &m.NoBid, &m.NoAsk, &m.LastPrice,
		&m.PreviousYesBid, &m.PreviousYesAsk, &m.PreviousPrice,
		&m.YesBidDollars, &m.YesAskDollars, &m.NoBidDollars, &m.NoAskDollars, &m.LastPriceDollars,
		&m.Volume24h, &m.OpenInterest, &m.Liquidity, &m.NotionalValue,
		&m.OpenTime, &m.CloseTime, &m.ExpirationTime, &m.SettlementValue,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	return &m, nil
}
