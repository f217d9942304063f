// Package syncer consumes sync jobs, pulls from the exchange API, and
// writes the analytical store. One consumer per job kind.
//
// Every consumer follows the same rate-limit discipline: a 429 from
// upstream acknowledges the message with a warning and schedules nothing
// further. Retrying against an already saturated limit only deepens the
// hole; the next scheduled sync covers the gap.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/quantfold/marketcurator/internal/analytics"
	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/candle"
	"github.com/quantfold/marketcurator/internal/config"
	"github.com/quantfold/marketcurator/internal/dispatch"
	"github.com/quantfold/marketcurator/internal/metrics"
	"github.com/quantfold/marketcurator/internal/model"
	"github.com/quantfold/marketcurator/internal/upstream"
)

const storeWriteAttempts = 3

// Upstream is the exchange API slice the consumers call.
type Upstream interface {
	GetMarkets(ctx context.Context, opts upstream.GetMarketsOptions) (*upstream.MarketsResponse, error)
	GetEvents(ctx context.Context, opts upstream.GetEventsOptions) (*upstream.EventsResponse, error)
	GetEvent(ctx context.Context, eventTicker string) (*upstream.SingleEventResponse, error)
	GetSeriesList(ctx context.Context, opts upstream.GetSeriesListOptions) (*upstream.SeriesListResponse, error)
	GetTagsByCategories(ctx context.Context) (*upstream.TagsByCategoriesResponse, error)
	GetOrderbook(ctx context.Context, ticker string, depth int) (*upstream.OrderbookResponse, error)
}

// Storage is the store slice the consumers write and read.
type Storage interface {
	InsertSnapshots(ctx context.Context, rows []model.MarketSnapshot) (int, error)
	UpsertSeries(ctx context.Context, rows []model.Series) error
	UpsertEvents(ctx context.Context, rows []model.Event) error
	ListTagCategories(ctx context.Context) ([]model.TagCategory, error)
	UpsertTagCategories(ctx context.Context, rows []model.TagCategory) error
	SoftDeleteTagCategories(ctx context.Context, rows []model.TagCategory, now time.Time) error
	GetWatchlistEntry(ctx context.Context, ticker string) (*model.WatchlistEntry, error)
	GetEvent(ctx context.Context, eventTicker string) (*model.Event, error)
	LatestSnapshot(ctx context.Context, ticker string) (*model.MarketSnapshot, error)
	LatestOrderbookSnapshot(ctx context.Context, ticker string) (*model.OrderbookSnapshot, error)
	InsertOrderbookSnapshot(ctx context.Context, snap model.OrderbookSnapshot) error
	InsertOrderbookEvents(ctx context.Context, events []model.OrderbookEvent) (int, error)
}

// Syncer owns every queue consumer.
type Syncer struct {
	upstream   Upstream
	storage    Storage
	dispatcher *dispatch.Dispatcher
	candles    *candle.Service
	engine     *analytics.Engine
	metrics    *metrics.Metrics
	logger     *slog.Logger
	cfg        config.SyncConfig
	now        func() time.Time
}

// New wires the syncer. m may be nil.
func New(up Upstream, storage Storage, d *dispatch.Dispatcher, candles *candle.Service,
	engine *analytics.Engine, m *metrics.Metrics, cfg config.SyncConfig, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		upstream:   up,
		storage:    storage,
		dispatcher: d,
		candles:    candles,
		engine:     engine,
		metrics:    m,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Register subscribes every consumer on the bus with its configured
// concurrency.
func (s *Syncer) Register(ctx context.Context, b bus.Bus, busCfg config.BusConfig) error {
	conc := func(queue string) int {
		if n, ok := busCfg.Concurrency[queue]; ok && n > 0 {
			return n
		}
		return 1
	}

	subs := []struct {
		queue string
		h     bus.Handler
	}{
		{bus.QueueMarketSnapshots, s.handleSnapshotJob},
		{bus.QueueMarketCategories, s.handleCategoryJob},
		{bus.QueueSeries, s.handleSeriesJob},
		{bus.QueueEvents, s.handleEventsJob},
		{bus.QueueOrderbook, s.handleOrderbookJob},
		{bus.QueueCandlesticks, s.handleCandlestickJob},
		{bus.QueueAnalytics, s.handleAnalyticsJob},
	}
	for _, sub := range subs {
		if err := b.Subscribe(ctx, sub.queue, conc(sub.queue), s.instrument(sub.queue, sub.h)); err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.queue, err)
		}
	}

	batch := busCfg.EventDetailBatch
	if batch < 1 {
		batch = 1
	}
	if err := b.SubscribeBatch(ctx, bus.QueueEventDetail, batch, s.handleEventDetailBatch); err != nil {
		return fmt.Errorf("subscribe %s: %w", bus.QueueEventDetail, err)
	}

	return nil
}

// instrument wraps a handler with duration and outcome metrics.
func (s *Syncer) instrument(queue string, h bus.Handler) bus.Handler {
	if s.metrics == nil {
		return h
	}
	return func(ctx context.Context, payload []byte) error {
		start := time.Now()
		err := h(ctx, payload)
		s.metrics.JobDuration.WithLabelValues(queue).Observe(time.Since(start).Seconds())
		if err == nil {
			s.metrics.JobsDone.WithLabelValues(queue).Inc()
		} else {
			s.metrics.JobsRetried.WithLabelValues(queue).Inc()
		}
		return err
	}
}

// decodeJob unmarshals a payload. Malformed payloads are acknowledged: they
// will never parse on redelivery either.
func (s *Syncer) decodeJob(queue string, payload []byte, job any) bool {
	if err := json.Unmarshal(payload, job); err != nil {
		s.logger.Warn("dropping malformed job", "queue", queue, "err", err)
		s.countDropped(queue)
		return false
	}
	return true
}

// dropOnRateLimit implements the rate-limit discipline: acknowledge, warn,
// do not retry, do not continue.
func (s *Syncer) dropOnRateLimit(queue string, err error) bool {
	if !upstream.IsRateLimited(err) {
		return false
	}
	s.logger.Warn("upstream rate limited, dropping job", "queue", queue, "err", err)
	s.countDropped(queue)
	return true
}

func (s *Syncer) countDropped(queue string) {
	if s.metrics != nil {
		s.metrics.JobsDropped.WithLabelValues(queue).Inc()
	}
}

func (s *Syncer) countRows(table string, written, conflicts int) {
	if s.metrics != nil {
		s.metrics.RowsWritten.WithLabelValues(table).Add(float64(written))
		s.metrics.RowConflicts.WithLabelValues(table).Add(float64(conflicts))
	}
}

// retryStore runs a store write with bounded exponential backoff. Transient
// database hiccups resolve in-process instead of churning the queue.
func (s *Syncer) retryStore(ctx context.Context, op func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(storeWriteAttempts))
	return err
}
