package upstream

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantfold/marketcurator/internal/model"
)

// DeriveDollars formats integer cents as a dollar string ("45" -> "0.45").
// Deriving at ingest keeps the two price representations from drifting.
func DeriveDollars(cents int) string {
	return decimal.New(int64(cents), -2).StringFixed(2)
}

// dollarsMatch reports whether an upstream-formatted dollar string agrees
// with the integer cents. An empty supplied string always matches: upstream
// omits the field for some market types.
func dollarsMatch(cents int, supplied string) bool {
	if supplied == "" {
		return true
	}
	d, err := decimal.NewFromString(supplied)
	if err != nil {
		return false
	}
	return d.Equal(decimal.New(int64(cents), -2))
}

// ParseTimestamp parses an ISO 8601 timestamp. Returns the zero time for
// empty or invalid input.
func ParseTimestamp(iso string) time.Time {
	if iso == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return time.Time{}
		}
	}

	return t.UTC()
}

// SeriesKey derives the grouping key for a market: the parent event ticker
// when present, otherwise the market's own ticker.
func SeriesKey(m *APIMarket) string {
	if m.EventTicker != "" {
		return m.EventTicker
	}
	return m.Ticker
}

// ToSnapshot converts an APIMarket into an append-only snapshot row captured
// at generateDate. The returned slice names dollar fields whose upstream
// string disagreed with the integer cents; the derived value wins.
func ToSnapshot(m *APIMarket, generateDate time.Time) (model.MarketSnapshot, []string) {
	var mismatched []string
	check := func(field string, cents int, supplied string) {
		if !dollarsMatch(cents, supplied) {
			mismatched = append(mismatched, field)
		}
	}
	check("yes_bid", m.YesBid, m.YesBidDollars)
	check("yes_ask", m.YesAsk, m.YesAskDollars)
	check("no_bid", m.NoBid, m.NoBidDollars)
	check("no_ask", m.NoAsk, m.NoAskDollars)
	check("last_price", m.LastPrice, m.LastPriceDollars)

	return model.MarketSnapshot{
		SnapshotID:   uuid.New(),
		Ticker:       m.Ticker,
		EventTicker:  m.EventTicker,
		SeriesKey:    SeriesKey(m),
		GenerateDate: generateDate,

		MarketType: m.MarketType,
		Status:     m.Status,
		Result:     m.Result,
		Rules:      m.RulesPrimary,

		YesBid:    m.YesBid,
		YesAsk:    m.YesAsk,
		NoBid:     m.NoBid,
		NoAsk:     m.NoAsk,
		LastPrice: m.LastPrice,

		PreviousYesBid: m.PreviousYesBid,
		PreviousYesAsk: m.PreviousYesAsk,
		PreviousPrice:  m.PreviousPrice,

		YesBidDollars:    DeriveDollars(m.YesBid),
		YesAskDollars:    DeriveDollars(m.YesAsk),
		NoBidDollars:     DeriveDollars(m.NoBid),
		NoAskDollars:     DeriveDollars(m.NoAsk),
		LastPriceDollars: DeriveDollars(m.LastPrice),

		Volume24h:     m.Volume24h,
		OpenInterest:  m.OpenInterest,
		Liquidity:     m.Liquidity,
		NotionalValue: m.NotionalValue,

		OpenTime:       ParseTimestamp(m.OpenTime),
		CloseTime:      ParseTimestamp(m.CloseTime),
		ExpirationTime: ParseTimestamp(m.ExpirationTime),

		SettlementValue: m.SettlementValue,
	}, mismatched
}

// ToEvent converts an APIEvent to a dimension row.
func (e *APIEvent) ToEvent(now time.Time) model.Event {
	return model.Event{
		EventTicker:       e.EventTicker,
		SeriesTicker:      e.SeriesTicker,
		Title:             e.Title,
		Category:          e.Category,
		StrikeDate:        ParseTimestamp(e.StrikeDate),
		StrikePeriod:      e.StrikePeriod,
		MutuallyExclusive: e.MutuallyExclusive,
		LastUpdate:        now,
	}
}

// ToSeries converts an APISeries to a dimension row. Tags are deduped.
func (s *APISeries) ToSeries(now time.Time) model.Series {
	seen := make(map[string]struct{}, len(s.Tags))
	tags := make([]string, 0, len(s.Tags))
	for _, tag := range s.Tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	return model.Series{
		Ticker:     s.Ticker,
		Title:      s.Title,
		Category:   s.Category,
		Frequency:  s.Frequency,
		Tags:       tags,
		Metadata:   s.Metadata,
		LastUpdate: now,
	}
}

// ToOrderbookSnapshot converts an orderbook response into a snapshot row.
// Ladders arrive best-first; the best YES ask is derived from the best NO
// bid (YES ask at X = NO bid at 100-X).
func (o *OrderbookResponse) ToOrderbookSnapshot(ticker string, capturedAt time.Time) model.OrderbookSnapshot {
	toLadder := func(raw [][]int) ([]model.PriceLevel, int64) {
		ladder := make([]model.PriceLevel, 0, len(raw))
		var total int64
		for _, level := range raw {
			if len(level) < 2 {
				continue
			}
			ladder = append(ladder, model.PriceLevel{Price: level[0], Size: level[1]})
			total += int64(level[1])
		}
		return ladder, total
	}

	yes, yesTotal := toLadder(o.Orderbook.Yes)
	no, noTotal := toLadder(o.Orderbook.No)

	var bestYesBid, bestYesAsk int
	if len(yes) > 0 {
		bestYesBid = yes[0].Price
	}
	if len(no) > 0 {
		bestYesAsk = 100 - no[0].Price
	}

	spread := 0
	if bestYesBid > 0 && bestYesAsk > 0 {
		spread = bestYesAsk - bestYesBid
	}

	return model.OrderbookSnapshot{
		Ticker:            ticker,
		CapturedAt:        capturedAt,
		Yes:               yes,
		No:                no,
		TotalLiquidityYes: yesTotal,
		TotalLiquidityNo:  noTotal,
		BestYesBid:        bestYesBid,
		BestYesAsk:        bestYesAsk,
		Spread:            spread,
	}
}

// ToCandlestick converts an APICandlestick to a fact row.
func (c *APICandlestick) ToCandlestick(ticker string, periodInterval int) model.Candlestick {
	row := model.Candlestick{
		Ticker:         ticker,
		PeriodInterval: periodInterval,
		EndPeriodTs:    c.EndPeriodTs,
		YesBid:         model.OHLC(c.YesBid),
		YesAsk:         model.OHLC(c.YesAsk),
		Volume:         c.Volume,
		OpenInterest:   c.OpenInterest,
	}
	if c.Price != nil {
		price := model.OHLC(*c.Price)
		row.Price = &price
	}
	return row
}
