package upstream

// ExchangeStatusResponse from GET /exchange/status
type ExchangeStatusResponse struct {
	ExchangeActive      bool   `json:"exchange_active"`
	TradingActive       bool   `json:"trading_active"`
	EstimatedResumeTime string `json:"exchange_estimated_resume_time,omitempty"`
}

// MarketsResponse from GET /markets
type MarketsResponse struct {
	Markets []APIMarket `json:"markets"`
	Cursor  string      `json:"cursor"`
}

// APIMarket represents a market from the exchange API.
type APIMarket struct {
	Ticker       string `json:"ticker"`
	EventTicker  string `json:"event_ticker"`
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	Status       string `json:"status"`
	MarketType   string `json:"market_type"`
	Result       string `json:"result"`
	RulesPrimary string `json:"rules_primary"`

	// Prices in cents
	YesBid    int `json:"yes_bid"`
	YesAsk    int `json:"yes_ask"`
	NoBid     int `json:"no_bid"`
	NoAsk     int `json:"no_ask"`
	LastPrice int `json:"last_price"`

	PreviousYesBid int `json:"previous_yes_bid"`
	PreviousYesAsk int `json:"previous_yes_ask"`
	PreviousPrice  int `json:"previous_price"`

	// Prices as formatted strings, when upstream includes them
	YesBidDollars    string `json:"yes_bid_dollars"`
	YesAskDollars    string `json:"yes_ask_dollars"`
	NoBidDollars     string `json:"no_bid_dollars"`
	NoAskDollars     string `json:"no_ask_dollars"`
	LastPriceDollars string `json:"last_price_dollars"`

	// Volume and depth
	Volume        int64 `json:"volume"`
	Volume24h     int64 `json:"volume_24h"`
	OpenInterest  int64 `json:"open_interest"`
	Liquidity     int64 `json:"liquidity"`
	NotionalValue int64 `json:"notional_value"`

	// Timestamps (ISO 8601)
	OpenTime       string `json:"open_time"`
	CloseTime      string `json:"close_time"`
	ExpirationTime string `json:"expiration_time"`
	CreatedTime    string `json:"created_time"`

	// Settlement
	SettlementValue *int64 `json:"settlement_value"`
}

// SingleMarketResponse from GET /markets/{ticker}
type SingleMarketResponse struct {
	Market APIMarket `json:"market"`
}

// EventsResponse from GET /events
type EventsResponse struct {
	Events []APIEvent `json:"events"`
	Cursor string     `json:"cursor"`
}

// APIEvent represents an event from the exchange API.
type APIEvent struct {
	EventTicker       string      `json:"event_ticker"`
	SeriesTicker      string      `json:"series_ticker"`
	Title             string      `json:"title"`
	Subtitle          string      `json:"sub_title"`
	Category          string      `json:"category"`
	StrikeDate        string      `json:"strike_date,omitempty"`
	StrikePeriod      string      `json:"strike_period,omitempty"`
	MutuallyExclusive bool        `json:"mutually_exclusive"`
	Markets           []APIMarket `json:"markets,omitempty"`
}

// SingleEventResponse from GET /events/{event_ticker}
type SingleEventResponse struct {
	Event   APIEvent    `json:"event"`
	Markets []APIMarket `json:"markets"`
}

// EventMetadataResponse from GET /events/{event_ticker}/metadata
type EventMetadataResponse struct {
	ImageURL        string            `json:"image_url"`
	CompetitionType string            `json:"competition,omitempty"`
	Settlement      map[string]string `json:"settlement_sources,omitempty"`
}

// MultivariateEventsResponse from GET /multivariate_event_collections
type MultivariateEventsResponse struct {
	Collections []APIMultivariateEvent `json:"multivariate_contracts"`
	Cursor      string                 `json:"cursor"`
}

// APIMultivariateEvent is one multivariate event collection.
type APIMultivariateEvent struct {
	CollectionTicker       string   `json:"collection_ticker"`
	SeriesTicker           string   `json:"series_ticker"`
	Title                  string   `json:"title"`
	AssociatedEventTickers []string `json:"associated_event_tickers"`
}

// SeriesListResponse from GET /series
type SeriesListResponse struct {
	Series []APISeries `json:"series"`
	Cursor string      `json:"cursor"`
}

// APISeries represents a series from the exchange API.
type APISeries struct {
	Ticker    string            `json:"ticker"`
	Title     string            `json:"title"`
	Category  string            `json:"category"`
	Frequency string            `json:"frequency"`
	Tags      []string          `json:"tags"`
	Metadata  map[string]string `json:"additional_prohibitions,omitempty"`
}

// TagsByCategoriesResponse from GET /search/tags_for_series_categories
type TagsByCategoriesResponse struct {
	// TagsByCategory maps category name to its tag list.
	TagsByCategory map[string][]string `json:"tags_by_category"`
}

// OrderbookResponse from GET /markets/{ticker}/orderbook
type OrderbookResponse struct {
	Orderbook APIOrderbook `json:"orderbook"`
}

// APIOrderbook carries the depth ladders as [price_cents, size] pairs.
type APIOrderbook struct {
	Yes [][]int `json:"yes"`
	No  [][]int `json:"no"`
}

// CandlesticksResponse from GET /series/{series}/markets/{ticker}/candlesticks
type CandlesticksResponse struct {
	Candlesticks []APICandlestick `json:"candlesticks"`
}

// APICandlestick is one OHLC aggregate from the exchange API.
type APICandlestick struct {
	EndPeriodTs  int64    `json:"end_period_ts"`
	YesBid       APIOHLC  `json:"yes_bid"`
	YesAsk       APIOHLC  `json:"yes_ask"`
	Price        *APIOHLC `json:"price"`
	Volume       int64    `json:"volume"`
	OpenInterest int64    `json:"open_interest"`
}

// APIOHLC is one open/high/low/close family in cents.
type APIOHLC struct {
	Open  int `json:"open"`
	High  int `json:"high"`
	Low   int `json:"low"`
	Close int `json:"close"`
}

// GetMarketsOptions configures a GetMarkets request.
type GetMarketsOptions struct {
	Limit             int
	Cursor            string
	EventTicker       string
	SeriesTicker      string
	Tickers           []string
	Status            string
	MinCreatedTs      int64
	MaxCreatedTs      int64
	WithNestedMarkets bool
}

// GetEventsOptions configures a GetEvents request.
type GetEventsOptions struct {
	Limit             int
	Cursor            string
	SeriesTicker      string
	Status            string
	WithNestedMarkets bool
}

// GetSeriesListOptions configures a GetSeriesList request.
type GetSeriesListOptions struct {
	Limit    int
	Cursor   string
	Category string
}

// GetCandlesticksOptions configures a GetCandlesticks request.
type GetCandlesticksOptions struct {
	StartTs        int64
	EndTs          int64
	PeriodInterval int // Minutes per period
}
