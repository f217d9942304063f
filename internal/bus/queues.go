package bus

// Queue names, one per job kind.
const (
	QueueMarketSnapshots  = "sync-market-snapshots"
	QueueMarketCategories = "sync-market-categories"
	QueueSeries           = "sync-series"
	QueueEvents           = "sync-events"
	QueueEventDetail      = "sync-event-detail"
	QueueOrderbook        = "sync-orderbook"
	QueueCandlesticks     = "sync-candlesticks"
	QueueAnalytics        = "process-analytics"
	QueueCleanup          = "cleanup-market"
)

// AllQueues lists every job queue the curator owns.
var AllQueues = []string{
	QueueMarketSnapshots,
	QueueMarketCategories,
	QueueSeries,
	QueueEvents,
	QueueEventDetail,
	QueueOrderbook,
	QueueCandlesticks,
	QueueAnalytics,
	QueueCleanup,
}

// SnapshotSyncJob drives one page of the market-snapshot sync.
// Cursor resumes pagination; the filters ride along unchanged.
type SnapshotSyncJob struct {
	MinCreatedTs int64  `json:"min_created_ts,omitempty"`
	MaxCreatedTs int64  `json:"max_created_ts,omitempty"`
	Status       string `json:"status,omitempty"`
	Cursor       string `json:"cursor,omitempty"`
}

// CategorySyncJob drives one tags-by-categories pass. No pagination.
type CategorySyncJob struct{}

// SeriesSyncJob drives one page of the series sync.
type SeriesSyncJob struct {
	Cursor string `json:"cursor,omitempty"`
}

// EventsSyncJob drives one page of the events sync.
type EventsSyncJob struct {
	Status string `json:"status,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

// EventDetailJob fetches detail for a single event. Consumed in batches.
type EventDetailJob struct {
	EventTicker string `json:"event_ticker"`
}

// OrderbookSyncJob snapshots the book for one watchlisted market.
type OrderbookSyncJob struct {
	Ticker string `json:"ticker"`
}

// CandlestickSyncJob refreshes candles for one watchlisted market.
type CandlestickSyncJob struct {
	Ticker string `json:"ticker"`
}

// AnalyticsJob computes features for one watchlisted market.
type AnalyticsJob struct {
	Ticker string `json:"ticker"`
}

// CleanupJob cascades deletes for one settled market.
type CleanupJob struct {
	Ticker string `json:"ticker"`
}
