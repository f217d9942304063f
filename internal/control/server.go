// Package control serves the HTTP operator surface: sync enqueues, family
// status, queue inspection and purge, cleanup, health, and metrics.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/candle"
	"github.com/quantfold/marketcurator/internal/cleanup"
	"github.com/quantfold/marketcurator/internal/dispatch"
	"github.com/quantfold/marketcurator/internal/model"
)

// QueueOps is the bus slice the operator surface needs.
type QueueOps interface {
	Stats(ctx context.Context, queue string) bus.QueueStats
	Purge(ctx context.Context, queue string) error
}

// Watchlist supplies the fan-out targets for per-ticker sync families.
type Watchlist interface {
	ListWatchlist(ctx context.Context) ([]model.WatchlistEntry, error)
}

// Charts projects stored daily candles for the chart endpoint.
type Charts interface {
	Chart(ctx context.Context, ticker string, startTs, endTs int64) ([]candle.ChartPoint, error)
}

// Cache is the short-TTL read cache in front of chart responses.
type Cache interface {
	CacheGet(ctx context.Context, key string) (string, bool, error)
	CacheSet(ctx context.Context, key, value string, ttl time.Duration) error
}

// Server hosts the control endpoints.
type Server struct {
	dispatcher *dispatch.Dispatcher
	cleanup    *cleanup.Service
	queues     QueueOps
	watchlist  Watchlist
	charts     Charts
	cache      Cache
	cacheTTL   time.Duration
	logger     *slog.Logger

	httpServer *http.Server
}

// NewServer wires the control surface. gatherer may be nil to skip /metrics;
// cache may be nil to serve charts uncached.
func NewServer(addr string, d *dispatch.Dispatcher, c *cleanup.Service, q QueueOps,
	w Watchlist, charts Charts, cache Cache, cacheTTL time.Duration,
	gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		dispatcher: d,
		cleanup:    c,
		queues:     q,
		watchlist:  w,
		charts:     charts,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sync/market-snapshots", s.handleSnapshotSync)
	mux.HandleFunc("GET /sync/market-snapshots/status", s.handleSnapshotStatus)
	mux.HandleFunc("POST /sync/categories", s.handleCategorySync)
	mux.HandleFunc("POST /sync/series", s.handleSeriesSync)
	mux.HandleFunc("POST /sync/events", s.handleEventsSync)
	mux.HandleFunc("POST /sync/event/{eventTicker}", s.handleEventDetailSync)
	mux.HandleFunc("POST /sync/orderbook", s.handleOrderbookSync)
	mux.HandleFunc("POST /sync/candlesticks", s.handleCandlestickSync)
	mux.HandleFunc("POST /sync/analytics", s.handleAnalyticsSync)
	mux.HandleFunc("POST /cleanup", s.handleCleanupSweep)
	mux.HandleFunc("POST /cleanup/{ticker}", s.handleCleanupTicker)
	mux.HandleFunc("GET /markets/{ticker}/chart", s.handleChart)
	mux.HandleFunc("POST /queues/purge", s.handleQueuePurge)
	mux.HandleFunc("GET /queues/status", s.handleQueueStatus)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Start serves in the background until Stop.
func (s *Server) Start() {
	go func() {
		s.logger.Info("control surface listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control surface failed", "err", err)
		}
	}()
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown control surface: %w", err)
	}
	return nil
}
