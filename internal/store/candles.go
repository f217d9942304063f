package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quantfold/marketcurator/internal/model"
)

const candleColumns = `ticker, period_interval, end_period_ts,
	yes_bid_open, yes_bid_high, yes_bid_low, yes_bid_close,
	yes_ask_open, yes_ask_high, yes_ask_low, yes_ask_close,
	price_open, price_high, price_low, price_close,
	volume, open_interest`

// InsertCandlesticks appends candle rows; duplicates on the
// (ticker, period_interval, end_period_ts) key conflict silently.
func (s *Store) InsertCandlesticks(ctx context.Context, rows []model.Candlestick) (conflicts int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		var po, ph, pl, pc any
		if r.Price != nil {
			po, ph, pl, pc = r.Price.Open, r.Price.High, r.Price.Low, r.Price.Close
		}
		batch.Queue(`
			INSERT INTO candlesticks (`+candleColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			ON CONFLICT (ticker, period_interval, end_period_ts) DO NOTHING
		`, r.Ticker, r.PeriodInterval, r.EndPeriodTs,
			r.YesBid.Open, r.YesBid.High, r.YesBid.Low, r.YesBid.Close,
			r.YesAsk.Open, r.YesAsk.High, r.YesAsk.Low, r.YesAsk.Close,
			po, ph, pl, pc,
			r.Volume, r.OpenInterest)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, fmt.Errorf("insert candlesticks: %w", err)
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

// ListCandlesticks returns all candles for a ticker and interval, ordered by
// period end ascending.
func (s *Store) ListCandlesticks(ctx context.Context, ticker string, periodInterval int) ([]model.Candlestick, error) {
	return s.CandlesticksInWindow(ctx, ticker, periodInterval, 0, 1<<62)
}

// CandlesticksInWindow returns candles with end_period_ts in [startTs, endTs].
func (s *Store) CandlesticksInWindow(ctx context.Context, ticker string, periodInterval int, startTs, endTs int64) ([]model.Candlestick, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+candleColumns+`
		FROM candlesticks
		WHERE ticker = $1 AND period_interval = $2 AND end_period_ts BETWEEN $3 AND $4
		ORDER BY end_period_ts
	`, ticker, periodInterval, startTs, endTs)
	if err != nil {
		return nil, fmt.Errorf("list candlesticks: %w", err)
	}
	defer rows.Close()

	var out []model.Candlestick
	for rows.Next() {
		var (
			c              model.Candlestick
			po, ph, pl, pc *int
		)
		if err := rows.Scan(
			&c.Ticker, &c.PeriodInterval, &c.EndPeriodTs,
			&c.YesBid.Open, &c.YesBid.High, &c.YesBid.Low, &c.YesBid.Close,
			&c.YesAsk.Open, &c.YesAsk.High, &c.YesAsk.Low, &c.YesAsk.Close,
			&po, &ph, &pl, &pc,
			&c.Volume, &c.OpenInterest,
		); err != nil {
			return nil, fmt.Errorf("scan candlestick: %w", err)
		}
		if po != nil && ph != nil && pl != nil && pc != nil {
			c.Price = &model.OHLC{Open: *po, High: *ph, Low: *pl, Close: *pc}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MaxEndPeriodTs returns the newest stored candle boundary for a ticker, or
// 0 when none exist.
func (s *Store) MaxEndPeriodTs(ctx context.Context, ticker string, periodInterval int) (int64, error) {
	var ts int64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(end_period_ts), 0)
		FROM candlesticks
		WHERE ticker = $1 AND period_interval = $2
	`, ticker, periodInterval).Scan(&ts)
	if err != nil {
		return 0, fmt.Errorf("max end period: %w", err)
	}
	return ts, nil
}
