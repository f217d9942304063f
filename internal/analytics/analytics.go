// Package analytics computes feature rows for watchlisted markets.
//
// Features come in three levels, each gated by a watchlist flag:
//
//	L1  point-in-time fields read off the latest snapshot
//	L2  returns and volatility over 1h and 24h lookback windows
//	L3  liquidity and imbalance from the latest orderbook snapshot
//
// A row is appended even when some inputs are missing; absent inputs stay
// at their zero values so downstream consumers see a consistent shape.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/quantfold/marketcurator/internal/candle"
	"github.com/quantfold/marketcurator/internal/model"
	"github.com/quantfold/marketcurator/internal/store"
)

// Lookback windows for L2 features.
const (
	windowShort = time.Hour
	windowLong  = 24 * time.Hour
)

// Storage is the store slice the engine reads from and writes to.
type Storage interface {
	LatestSnapshot(ctx context.Context, ticker string) (*model.MarketSnapshot, error)
	SnapshotAtOrBefore(ctx context.Context, ticker string, t time.Time) (*model.MarketSnapshot, error)
	CandlesticksInWindow(ctx context.Context, ticker string, periodInterval int, startTs, endTs int64) ([]model.Candlestick, error)
	LatestOrderbookSnapshot(ctx context.Context, ticker string) (*model.OrderbookSnapshot, error)
	GetEvent(ctx context.Context, eventTicker string) (*model.Event, error)
	GetSeries(ctx context.Context, ticker string) (*model.Series, error)
	InsertFeature(ctx context.Context, f model.MarketFeature) error
}

// ExternalProbFunc supplies an external probability estimate for a ticker.
// Absence of an estimate is reported with ok=false.
type ExternalProbFunc func(ctx context.Context, ticker string) (prob float64, ok bool)

// Engine computes and persists feature rows.
type Engine struct {
	storage  Storage
	external ExternalProbFunc
	logger   *slog.Logger
}

// NewEngine wires the analytics engine. external may be nil.
func NewEngine(storage Storage, external ExternalProbFunc, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{storage: storage, external: external, logger: logger}
}

// Process computes one feature row for a watchlist entry and appends it.
// A ticker with no snapshot history yet returns store.ErrNotFound.
func (e *Engine) Process(ctx context.Context, entry model.WatchlistEntry) error {
	feature, err := e.Compute(ctx, entry)
	if err != nil {
		return err
	}
	if err := e.storage.InsertFeature(ctx, feature); err != nil {
		return fmt.Errorf("persist feature %s: %w", entry.Ticker, err)
	}
	return nil
}

// Compute builds the feature row without persisting it. The feature time is
// the generate date of the ticker's latest snapshot.
func (e *Engine) Compute(ctx context.Context, entry model.WatchlistEntry) (model.MarketFeature, error) {
	latest, err := e.storage.LatestSnapshot(ctx, entry.Ticker)
	if err != nil {
		return model.MarketFeature{}, err
	}

	feature := model.MarketFeature{
		Ticker:      entry.Ticker,
		FeatureTime: latest.GenerateDate,
	}

	if entry.EnableL1 {
		e.computeL1(latest, &feature)
	}
	if entry.EnableL2 {
		e.computeL2(ctx, latest, &feature)
	}
	if entry.EnableL3 {
		e.computeL3(ctx, latest, &feature)
	}

	feature.Category = e.lookupCategory(ctx, latest)

	if e.external != nil {
		if prob, ok := e.external(ctx, entry.Ticker); ok {
			feature.ExternalProbability = prob
			feature.MispriceScore = math.Abs(midProb(latest) - prob)
		}
	}

	return feature, nil
}

func (e *Engine) computeL1(snap *model.MarketSnapshot, f *model.MarketFeature) {
	if !snap.CloseTime.IsZero() {
		f.TimeToCloseSeconds = int64(snap.CloseTime.Sub(f.FeatureTime).Seconds())
	}
	if !snap.ExpirationTime.IsZero() {
		f.TimeToExpirationSeconds = int64(snap.ExpirationTime.Sub(f.FeatureTime).Seconds())
	}

	f.YesBidProb = float64(snap.YesBid) / 100
	f.YesAskProb = float64(snap.YesAsk) / 100
	f.NoBidProb = float64(snap.NoBid) / 100
	f.NoAskProb = float64(snap.NoAsk) / 100
	f.MidProb = (f.YesBidProb + f.YesAskProb) / 2
	f.BidAskSpread = f.YesAskProb - f.YesBidProb

	f.Volume24h = snap.Volume24h
	f.OpenInterest = snap.OpenInterest
	f.MarketType = snap.MarketType
	f.Status = snap.Status
}

func (e *Engine) computeL2(ctx context.Context, latest *model.MarketSnapshot, f *model.MarketFeature) {
	midNow := midProb(latest)

	f.Return1h = e.windowReturn(ctx, latest, midNow, windowShort)
	f.Return24h = e.windowReturn(ctx, latest, midNow, windowLong)

	short := e.windowCandles(ctx, latest, windowShort)
	long := e.windowCandles(ctx, latest, windowLong)

	f.Volatility1h = volatility(short)
	f.Volatility24h = volatility(long)

	f.Volume1h, f.Notional1h = volumeNotional(short)
	_, f.Notional24h = volumeNotional(long)
}

func (e *Engine) windowReturn(ctx context.Context, latest *model.MarketSnapshot, midNow float64, window time.Duration) float64 {
	past, err := e.storage.SnapshotAtOrBefore(ctx, latest.Ticker, latest.GenerateDate.Add(-window))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("window snapshot lookup failed", "ticker", latest.Ticker, "err", err)
		}
		return 0
	}
	midPast := midProb(past)
	if midPast <= 0 {
		return 0
	}
	return (midNow - midPast) / midPast
}

func (e *Engine) windowCandles(ctx context.Context, latest *model.MarketSnapshot, window time.Duration) []model.Candlestick {
	end := latest.GenerateDate.Unix()
	start := latest.GenerateDate.Add(-window).Unix()
	rows, err := e.storage.CandlesticksInWindow(ctx, latest.Ticker, candle.DailyInterval, start, end)
	if err != nil {
		e.logger.Warn("window candle lookup failed", "ticker", latest.Ticker, "err", err)
		return nil
	}
	return rows
}

func (e *Engine) computeL3(ctx context.Context, latest *model.MarketSnapshot, f *model.MarketFeature) {
	book, err := e.storage.LatestOrderbookSnapshot(ctx, latest.Ticker)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("orderbook lookup failed", "ticker", latest.Ticker, "err", err)
		}
		return
	}

	f.TotalLiquidityYes = book.TotalLiquidityYes
	f.TotalLiquidityNo = book.TotalLiquidityNo
	f.OrderbookImbalance = Imbalance(book.TotalLiquidityYes, book.TotalLiquidityNo)

	if len(book.Yes) > 0 {
		f.TopOfBookLiquidityYes = int64(book.Yes[0].Size)
	}
	if len(book.No) > 0 {
		f.TopOfBookLiquidityNo = int64(book.No[0].Size)
	}
}

// lookupCategory resolves the market's category from the event dimension,
// falling back to the series dimension.
func (e *Engine) lookupCategory(ctx context.Context, latest *model.MarketSnapshot) string {
	seriesTicker := latest.SeriesKey

	if latest.EventTicker != "" {
		event, err := e.storage.GetEvent(ctx, latest.EventTicker)
		if err == nil {
			if event.Category != "" {
				return event.Category
			}
			if event.SeriesTicker != "" {
				seriesTicker = event.SeriesTicker
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("event lookup failed", "ticker", latest.Ticker, "err", err)
		}
	}

	series, err := e.storage.GetSeries(ctx, seriesTicker)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("series lookup failed", "ticker", latest.Ticker, "err", err)
		}
		return ""
	}
	return series.Category
}

// Imbalance computes (Y-N)/(Y+N), or 0 for an empty book. The result is
// always within [-1, 1].
func Imbalance(yes, no int64) float64 {
	total := yes + no
	if total <= 0 {
		return 0
	}
	return float64(yes-no) / float64(total)
}

func midProb(snap *model.MarketSnapshot) float64 {
	return (float64(snap.YesBid) + float64(snap.YesAsk)) / 200
}

// volatility is the sample standard deviation of successive close-to-close
// returns over the given candles. Fewer than two usable candles yields 0.
func volatility(rows []model.Candlestick) float64 {
	var returns []float64
	for i := 1; i < len(rows); i++ {
		prev := candle.CloseForChart(rows[i-1])
		cur := candle.CloseForChart(rows[i])
		if prev <= 0 {
			continue
		}
		returns = append(returns, float64(cur-prev)/float64(prev))
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(returns)-1))
}

// volumeNotional sums contract volume and dollar notional over candles,
// where each candle's notional is volume times its close price in dollars.
func volumeNotional(rows []model.Candlestick) (volume int64, notional float64) {
	for _, c := range rows {
		volume += c.Volume
		notional += float64(c.Volume) * float64(candle.CloseForChart(c)) / 100
	}
	return volume, notional
}
