// Package candle maintains daily candlestick history for watchlisted
// markets with differential fetches: only the window after the newest
// stored candle is requested from the exchange, and a market whose history
// is already fresh is skipped entirely.
package candle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfold/marketcurator/internal/model"
	"github.com/quantfold/marketcurator/internal/upstream"
)

const (
	// DailyInterval is the only period the curator stores, in minutes.
	DailyInterval = 1440

	// BackfillWindow bounds the first fetch for a market with no history.
	BackfillWindow = 30 * 24 * time.Hour

	// FreshWithin skips the fetch when the newest candle is this recent.
	FreshWithin = 24 * time.Hour
)

// Fetcher is the upstream slice the service needs.
type Fetcher interface {
	GetCandlesticks(ctx context.Context, seriesTicker, ticker string, opts upstream.GetCandlesticksOptions) (*upstream.CandlesticksResponse, error)
}

// Storage is the store slice the service needs.
type Storage interface {
	MaxEndPeriodTs(ctx context.Context, ticker string, periodInterval int) (int64, error)
	InsertCandlesticks(ctx context.Context, rows []model.Candlestick) (int, error)
	CandlesticksInWindow(ctx context.Context, ticker string, periodInterval int, startTs, endTs int64) ([]model.Candlestick, error)
}

// Service fetches and stores daily candles.
type Service struct {
	fetcher Fetcher
	storage Storage
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the candle service.
func NewService(f Fetcher, s Storage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{fetcher: f, storage: s, logger: logger, now: time.Now}
}

// Sync refreshes daily candles for one market. It fetches only periods
// after the newest stored candle, backfilling BackfillWindow on first
// contact, and skips the upstream call entirely when history is fresh.
// Returns rows inserted and duplicates skipped.
func (s *Service) Sync(ctx context.Context, seriesTicker, ticker string) (inserted, conflicts int, err error) {
	now := s.now().UTC()

	maxTs, err := s.storage.MaxEndPeriodTs(ctx, ticker, DailyInterval)
	if err != nil {
		return 0, 0, err
	}

	if maxTs > 0 && now.Unix()-maxTs < int64(FreshWithin.Seconds()) {
		s.logger.Debug("candles fresh, skipping fetch", "ticker", ticker, "max_end_period_ts", maxTs)
		return 0, 0, nil
	}

	startTs := maxTs + 1
	if maxTs == 0 {
		startTs = now.Add(-BackfillWindow).Unix()
	}

	resp, err := s.fetcher.GetCandlesticks(ctx, seriesTicker, ticker, upstream.GetCandlesticksOptions{
		StartTs:        startTs,
		EndTs:          now.Unix(),
		PeriodInterval: DailyInterval,
	})
	if err != nil {
		return 0, 0, err
	}

	rows := make([]model.Candlestick, 0, len(resp.Candlesticks))
	seen := make(map[int64]bool, len(resp.Candlesticks))
	for i := range resp.Candlesticks {
		c := resp.Candlesticks[i].ToCandlestick(ticker, DailyInterval)
		if c.EndPeriodTs < startTs || seen[c.EndPeriodTs] {
			continue
		}
		if err := validateCandle(c); err != nil {
			s.logger.Warn("skipping malformed candle",
				"ticker", ticker, "end_period_ts", c.EndPeriodTs, "err", err)
			continue
		}
		seen[c.EndPeriodTs] = true
		rows = append(rows, c)
	}

	conflicts, err = s.storage.InsertCandlesticks(ctx, rows)
	if err != nil {
		return 0, 0, fmt.Errorf("store candles %s: %w", ticker, err)
	}

	return len(rows) - conflicts, conflicts, nil
}

// validateCandle enforces OHLC sanity before a row reaches the store:
// within each family the low bounds the open and close from below and the
// high bounds them from above.
func validateCandle(c model.Candlestick) error {
	groups := map[string]model.OHLC{
		"yes_bid": c.YesBid,
		"yes_ask": c.YesAsk,
	}
	if c.Price != nil {
		groups["price"] = *c.Price
	}
	for family, g := range groups {
		if g.Low > g.Open || g.Low > g.Close || g.High < g.Open || g.High < g.Close {
			return fmt.Errorf("%s ohlc inconsistent: open %d high %d low %d close %d",
				family, g.Open, g.High, g.Low, g.Close)
		}
	}
	return nil
}

// ChartPoint is one daily close for charting.
type ChartPoint struct {
	EndPeriodTs int64 `json:"end_period_ts"`
	Close       int   `json:"close"`
	Volume      int64 `json:"volume"`
}

// CloseForChart picks the charted close: the trade close when any trade
// printed in the period, otherwise the yes-bid close.
func CloseForChart(c model.Candlestick) int {
	if c.Price != nil {
		return c.Price.Close
	}
	return c.YesBid.Close
}

// Chart projects stored candles in [startTs, endTs] to chart points.
func (s *Service) Chart(ctx context.Context, ticker string, startTs, endTs int64) ([]ChartPoint, error) {
	rows, err := s.storage.CandlesticksInWindow(ctx, ticker, DailyInterval, startTs, endTs)
	if err != nil {
		return nil, err
	}

	points := make([]ChartPoint, len(rows))
	for i, c := range rows {
		points[i] = ChartPoint{
			EndPeriodTs: c.EndPeriodTs,
			Close:       CloseForChart(c),
			Volume:      c.Volume,
		}
	}
	return points, nil
}
