// Command curator runs the market data curation service: queue consumers,
// the periodic scheduler, and the HTTP control surface in one process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quantfold/marketcurator/internal/analytics"
	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/candle"
	"github.com/quantfold/marketcurator/internal/cleanup"
	"github.com/quantfold/marketcurator/internal/config"
	"github.com/quantfold/marketcurator/internal/control"
	"github.com/quantfold/marketcurator/internal/coord"
	"github.com/quantfold/marketcurator/internal/dispatch"
	"github.com/quantfold/marketcurator/internal/metrics"
	"github.com/quantfold/marketcurator/internal/store"
	"github.com/quantfold/marketcurator/internal/syncer"
	"github.com/quantfold/marketcurator/internal/upstream"
	"github.com/quantfold/marketcurator/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/curator.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("curator %s (%s)\n", version.Version, version.Commit)
		return
	}

	if err := run(*configPath); err != nil {
		slog.Error("curator exited", "err", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Service.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting curator",
		"version", version.Version,
		"instance_id", cfg.Service.InstanceID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.Migrate(cfg.Database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	db, err := store.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer db.Close()

	coordinator, err := coord.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer coordinator.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	broker, err := bus.Connect(ctx, cfg.Bus.URL, bus.Config{
		MaxDeliver:  cfg.Bus.MaxDeliver,
		BackoffBase: cfg.Bus.BackoffBase,
		BackoffMax:  cfg.Bus.BackoffMax,
		Prefetch:    cfg.Bus.Prefetch,
		Metrics:     m,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}
	defer broker.Close()

	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey,
		upstream.WithTimeout(cfg.Upstream.Timeout),
		upstream.WithRetries(cfg.Upstream.MaxRetries, cfg.Upstream.RetryBackoff),
		upstream.WithRateLimit(cfg.Upstream.RateLimitRPS, cfg.Upstream.RateLimitBurst),
		upstream.WithLogger(logger),
		upstream.WithMetrics(m),
	)

	dispatcher := dispatch.New(broker, coordinator, db, m, cfg.Sync.LockTTL, logger)
	candles := candle.NewService(client, db, logger)
	engine := analytics.NewEngine(db, nil, logger)

	workers := syncer.New(client, db, dispatcher, candles, engine, m, cfg.Sync, logger)
	if err := workers.Register(ctx, broker, cfg.Bus); err != nil {
		return fmt.Errorf("register consumers: %w", err)
	}

	cleaner := cleanup.New(db, dispatcher, m, cfg.Cleanup.Retention, logger)
	if err := cleaner.Register(ctx, broker); err != nil {
		return fmt.Errorf("register cleanup: %w", err)
	}

	srv := control.NewServer(cfg.Service.ListenAddr, dispatcher, cleaner, broker, db,
		candles, coordinator, cfg.Redis.CacheTTL, registry, logger)
	srv.Start()

	go runScheduler(ctx, cfg.Sync.ScheduleInterval, dispatcher, cleaner, db, logger)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("control surface shutdown", "err", err)
	}

	return nil
}

// runScheduler drives periodic syncs: snapshots, dimensions, the per-ticker
// watchlist families, and the cleanup sweep. A snapshot sync still running
// from the previous tick is skipped, not queued behind.
func runScheduler(ctx context.Context, interval time.Duration, d *dispatch.Dispatcher,
	cleaner *cleanup.Service, db *store.Store, logger *slog.Logger) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := d.StartSnapshotSync(ctx, bus.SnapshotSyncJob{}); err != nil {
			if errors.Is(err, dispatch.ErrAlreadyInProgress) {
				logger.Info("scheduled snapshot sync skipped, previous still running")
			} else {
				logger.Warn("scheduled snapshot sync failed", "err", err)
			}
		}

		if err := d.EnqueueCategorySync(ctx); err != nil {
			logger.Warn("scheduled category sync failed", "err", err)
		}
		if err := d.EnqueueSeriesSync(ctx, bus.SeriesSyncJob{}); err != nil {
			logger.Warn("scheduled series sync failed", "err", err)
		}
		if err := d.EnqueueEventsSync(ctx, bus.EventsSyncJob{}); err != nil {
			logger.Warn("scheduled events sync failed", "err", err)
		}

		scheduleWatchlist(ctx, d, db, logger)

		if _, err := cleaner.Sweep(ctx); err != nil {
			logger.Warn("scheduled cleanup sweep failed", "err", err)
		}
	}
}

func scheduleWatchlist(ctx context.Context, d *dispatch.Dispatcher, db *store.Store, logger *slog.Logger) {
	entries, err := db.ListWatchlist(ctx)
	if err != nil {
		logger.Warn("watchlist read failed", "err", err)
		return
	}

	for _, e := range entries {
		if e.FetchOrderbook {
			if err := d.EnqueueOrderbookSync(ctx, e.Ticker); err != nil {
				logger.Warn("orderbook enqueue failed", "ticker", e.Ticker, "err", err)
			}
		}
		if e.FetchCandlesticks {
			if err := d.EnqueueCandlestickSync(ctx, e.Ticker); err != nil {
				logger.Warn("candlestick enqueue failed", "ticker", e.Ticker, "err", err)
			}
		}
		if e.EnableL1 || e.EnableL2 || e.EnableL3 {
			if err := d.EnqueueAnalytics(ctx, e.Ticker); err != nil {
				logger.Warn("analytics enqueue failed", "ticker", e.Ticker, "err", err)
			}
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
