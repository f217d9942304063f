package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quantfold/marketcurator/internal/model"
)

// InsertOrderbookSnapshot appends one depth snapshot.
func (s *Store) InsertOrderbookSnapshot(ctx context.Context, snap model.OrderbookSnapshot) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO orderbook_snapshots (ticker, captured_at, yes_ladder, no_ladder,
			total_liquidity_yes, total_liquidity_no, best_yes_bid, best_yes_ask, spread)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ticker, captured_at) DO NOTHING
	`, snap.Ticker, snap.CapturedAt, ladderToJSON(snap.Yes), ladderToJSON(snap.No),
		snap.TotalLiquidityYes, snap.TotalLiquidityNo, snap.BestYesBid, snap.BestYesAsk, snap.Spread)
	if err != nil {
		return fmt.Errorf("insert orderbook snapshot: %w", err)
	}
	return nil
}

// LatestOrderbookSnapshot returns the newest snapshot for a ticker.
func (s *Store) LatestOrderbookSnapshot(ctx context.Context, ticker string) (*model.OrderbookSnapshot, error) {
	return s.orderbookSnapshotQuery(ctx, `
		SELECT ticker, captured_at, yes_ladder, no_ladder,
			total_liquidity_yes, total_liquidity_no, best_yes_bid, best_yes_ask, spread
		FROM orderbook_snapshots
		WHERE ticker = $1
		ORDER BY captured_at DESC
		LIMIT 1
	`, ticker)
}

func (s *Store) orderbookSnapshotQuery(ctx context.Context, sql string, args ...any) (*model.OrderbookSnapshot, error) {
	var (
		snap      model.OrderbookSnapshot
		yesLadder []byte
		noLadder  []byte
	)
	err := s.db.QueryRow(ctx, sql, args...).Scan(
		&snap.Ticker, &snap.CapturedAt, &yesLadder, &noLadder,
		&snap.TotalLiquidityYes, &snap.TotalLiquidityNo,
		&snap.BestYesBid, &snap.BestYesAsk, &snap.Spread,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan orderbook snapshot: %w", err)
	}
	snap.Yes = ladderFromJSON(yesLadder)
	snap.No = ladderFromJSON(noLadder)
	return &snap, nil
}

// InsertOrderbookEvents appends diff events; duplicates on the
// (ticker, event_time, side, price) key conflict silently.
func (s *Store) InsertOrderbookEvents(ctx context.Context, events []model.OrderbookEvent) (conflicts int, err error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO orderbook_events (event_id, ticker, event_time, side, price, size, event_type)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (ticker, event_time, side, price) DO NOTHING
		`, e.EventID, e.Ticker, e.EventTime, string(e.Side), e.Price, e.Size, string(e.Type))
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		ct, err := results.Exec()
		if err != nil {
			return 0, fmt.Errorf("insert orderbook events: %w", err)
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
