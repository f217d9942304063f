package model

import (
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Dimension Types (replacement semantics, latest wins by LastUpdate)
// -----------------------------------------------------------------------------

// Series represents a thematic group of markets (e.g., "Fed funds rate").
type Series struct {
	Ticker     string            // Primary key (e.g., "KXFED")
	Title      string            // Display title
	Category   string            // Category (e.g., "Economics")
	Frequency  string            // Recurrence (e.g., "weekly")
	Tags       []string          // Deduped, order not significant
	Metadata   map[string]string // Free-form attributes from upstream
	LastUpdate time.Time         // Last upsert time
	Deleted    bool              // Soft-delete flag
}

// Event represents a specific occurrence under a series.
type Event struct {
	EventTicker       string    // Primary key (e.g., "KXFED-24DEC")
	SeriesTicker      string    // Foreign key to Series
	Title             string    // Display title
	Category          string    // Category
	StrikeDate        time.Time // Zero when the event has a period instead
	StrikePeriod      string    // e.g., "Dec 2024"; empty when dated
	MutuallyExclusive bool      // Exactly one market settles yes
	LastUpdate        time.Time // Last upsert time
	Deleted           bool      // Soft-delete flag
}

// TagCategory is one (category, tag) pair from the tags-by-categories feed.
type TagCategory struct {
	Category   string // Primary key part
	Tag        string // Primary key part
	LastUpdate time.Time
	Deleted    bool
}

// -----------------------------------------------------------------------------
// Fact Types (append-only)
// -----------------------------------------------------------------------------

// MarketSnapshot captures the full pricing state of a market at one instant.
// Key is (Ticker, GenerateDate); SnapshotID is globally unique.
type MarketSnapshot struct {
	SnapshotID   uuid.UUID
	Ticker       string    // Market ticker
	EventTicker  string    // Parent event, may be empty
	SeriesKey    string    // EventTicker when set, else Ticker
	GenerateDate time.Time // Capture time, monotonically non-decreasing per ticker

	MarketType string // "binary" or "scalar"
	Status     string // open, closed, settled, finalized, ...
	Result     string // yes/no/"" until settled
	Rules      string // Primary rules text

	// Prices in integer cents [0, 100].
	YesBid    int
	YesAsk    int
	NoBid     int
	NoAsk     int
	LastPrice int

	PreviousYesBid int
	PreviousYesAsk int
	PreviousPrice  int

	// Formatted dollar strings, derived from the cents at ingest.
	YesBidDollars    string
	YesAskDollars    string
	NoBidDollars     string
	NoAskDollars     string
	LastPriceDollars string

	Volume24h     int64
	OpenInterest  int64
	Liquidity     int64
	NotionalValue int64

	OpenTime       time.Time
	CloseTime      time.Time
	ExpirationTime time.Time

	// SettlementValue is nil until the market settles.
	SettlementValue *int64
}

// Candlestick is an OHLC aggregate for one market over one interval.
// Key is (Ticker, PeriodInterval, EndPeriodTs).
type Candlestick struct {
	Ticker         string
	PeriodInterval int   // Minutes per period (1440 = daily)
	EndPeriodTs    int64 // Period boundary, seconds since epoch

	YesBid OHLC
	YesAsk OHLC
	// Price is the last-trade OHLC; nil when no trades printed in the period.
	Price *OHLC

	Volume       int64
	OpenInterest int64
}

// OHLC holds one open/high/low/close family in integer cents.
type OHLC struct {
	Open  int
	High  int
	Low   int
	Close int
}

// PriceLevel is a single rung of an orderbook ladder.
type PriceLevel struct {
	Price int // Cents
	Size  int // Contracts resting at this price
}

// OrderbookSnapshot is the full depth ladder for a market at one moment.
// Key is (Ticker, CapturedAt).
type OrderbookSnapshot struct {
	Ticker     string
	CapturedAt time.Time

	Yes []PriceLevel // Sorted best-first
	No  []PriceLevel

	TotalLiquidityYes int64 // Sum of size over the YES ladder
	TotalLiquidityNo  int64

	BestYesBid int
	BestYesAsk int // Derived: 100 - best NO bid
	Spread     int
}

// OrderbookEventType classifies a ladder change between consecutive snapshots.
type OrderbookEventType string

const (
	OrderbookAdd    OrderbookEventType = "ADD"
	OrderbookUpdate OrderbookEventType = "UPDATE"
	OrderbookRemove OrderbookEventType = "REMOVE"
)

// Side identifies which ladder of the book an event touches.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// OrderbookEvent is one diff between two consecutive snapshots.
// Key is (Ticker, EventTime, Side, Price); EventID is globally unique.
type OrderbookEvent struct {
	EventID   uuid.UUID
	Ticker    string
	EventTime time.Time // CapturedAt of the newer snapshot
	Side      Side
	Price     int // Cents
	Size      int // New size; 0 for REMOVE
	Type      OrderbookEventType
}

// -----------------------------------------------------------------------------
// Watchlist and Analytics
// -----------------------------------------------------------------------------

// WatchlistEntry marks a market for enhanced collection and analytics.
type WatchlistEntry struct {
	Ticker   string // Primary key
	Priority int

	EnableL1 bool // Point-in-time features
	EnableL2 bool // Historical-window features
	EnableL3 bool // Orderbook-derived features

	FetchCandlesticks bool
	FetchOrderbook    bool

	LastUpdate time.Time
}

// MarketFeature is one computed analytics row for a market at one instant.
// Key is (Ticker, FeatureTime). Missing inputs are stored as zero.
type MarketFeature struct {
	Ticker      string
	FeatureTime time.Time

	// L1: snapshot-only.
	TimeToCloseSeconds      int64
	TimeToExpirationSeconds int64
	YesBidProb              float64 // Cents / 100
	YesAskProb              float64
	NoBidProb               float64
	NoAskProb               float64
	MidProb                 float64
	BidAskSpread            float64
	Volume24h               int64
	OpenInterest            int64
	MarketType              string
	Status                  string

	// L2: historical window.
	Return1h      float64
	Return24h     float64
	Volatility1h  float64
	Volatility24h float64
	Volume1h      int64
	Notional1h    float64
	Notional24h   float64

	// L3: orderbook-derived.
	TopOfBookLiquidityYes int64
	TopOfBookLiquidityNo  int64
	TotalLiquidityYes     int64
	TotalLiquidityNo      int64
	OrderbookImbalance    float64 // (Y-N)/(Y+N) in [-1,1]; 0 when book empty

	Category            string
	ExternalProbability float64 // 0 when no external source configured
	MispriceScore       float64
}

// SyncLogEntry records one enqueued job for operator inspection.
type SyncLogEntry struct {
	ID         int64
	Family     string
	Payload    []byte // Original job payload as JSON
	EnqueuedAt time.Time
}
