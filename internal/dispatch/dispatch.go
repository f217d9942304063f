// Package dispatch turns sync requests into queued jobs.
//
// The market-snapshot family is single-flight across all replicas: a
// distributed lock admits one sync at a time, and a pending counter tracks
// outstanding pages so the lock is released only when the last page
// finishes. Every other job kind enqueues without coordination.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/coord"
	"github.com/quantfold/marketcurator/internal/metrics"
)

// Coordination keys for the market-snapshot family.
const (
	SnapshotLockKey    = "sync:market-snapshots:lock"
	SnapshotPendingKey = "sync:market-snapshots:pending"
)

// ErrAlreadyInProgress is returned when a snapshot sync is requested while
// one is still running or draining.
var ErrAlreadyInProgress = errors.New("dispatch: sync already in progress")

// SyncLog records enqueued jobs for operator inspection. The analytical
// store implements it; tests pass nil.
type SyncLog interface {
	AppendSyncLog(ctx context.Context, family string, payload []byte, enqueuedAt time.Time) error
}

// FamilyStatus describes the market-snapshot sync family.
type FamilyStatus struct {
	IsRunning   bool  `json:"is_running"`
	PendingJobs int64 `json:"pending_jobs"`
}

// Dispatcher publishes jobs and guards the single-flight snapshot family.
type Dispatcher struct {
	bus     bus.Bus
	coord   coord.Coordinator
	syncLog SyncLog
	metrics *metrics.Metrics
	logger  *slog.Logger
	lockTTL time.Duration
}

// New creates a dispatcher. syncLog and m may be nil.
func New(b bus.Bus, c coord.Coordinator, syncLog SyncLog, m *metrics.Metrics, lockTTL time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		bus:     b,
		coord:   c,
		syncLog: syncLog,
		metrics: m,
		logger:  logger,
		lockTTL: lockTTL,
	}
}

// StartSnapshotSync acquires the family lock and publishes the first page.
// Returns ErrAlreadyInProgress when a sync is already running.
func (d *Dispatcher) StartSnapshotSync(ctx context.Context, job bus.SnapshotSyncJob) error {
	if err := d.coord.AcquireLock(ctx, SnapshotLockKey, d.lockTTL); err != nil {
		if errors.Is(err, coord.ErrAlreadyLocked) {
			return ErrAlreadyInProgress
		}
		return fmt.Errorf("acquire snapshot lock: %w", err)
	}

	if err := d.publishSnapshotJob(ctx, job); err != nil {
		// Undo so the family is not wedged until the TTL expires.
		if relErr := d.coord.ReleaseLock(ctx, SnapshotLockKey); relErr != nil {
			d.logger.Warn("lock release after failed publish", "err", relErr)
		}
		return err
	}

	d.logger.Info("snapshot sync started",
		"status", job.Status,
		"min_created_ts", job.MinCreatedTs,
		"max_created_ts", job.MaxCreatedTs,
	)
	return nil
}

// ContinueSnapshotSync publishes a continuation page inside an already
// running sync. The lock must be held by the family.
func (d *Dispatcher) ContinueSnapshotSync(ctx context.Context, job bus.SnapshotSyncJob) error {
	return d.publishSnapshotJob(ctx, job)
}

// publishSnapshotJob increments the pending counter before publishing so a
// consumer finishing quickly cannot see zero and release the lock early.
func (d *Dispatcher) publishSnapshotJob(ctx context.Context, job bus.SnapshotSyncJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal snapshot job: %w", err)
	}

	pending, err := d.coord.Increment(ctx, SnapshotPendingKey)
	if err != nil {
		return fmt.Errorf("increment pending: %w", err)
	}
	d.setPendingGauge(pending)

	if err := d.bus.Publish(ctx, bus.QueueMarketSnapshots, payload); err != nil {
		if n, decErr := d.coord.Decrement(ctx, SnapshotPendingKey); decErr != nil {
			d.logger.Warn("pending rollback after failed publish", "err", decErr)
		} else {
			d.setPendingGauge(n)
		}
		return err
	}

	d.appendLog(ctx, bus.QueueMarketSnapshots, payload)
	return nil
}

// FinishSnapshotJob marks one page done. When the counter reaches zero the
// family lock is released and the sync is over.
func (d *Dispatcher) FinishSnapshotJob(ctx context.Context) (int64, error) {
	pending, err := d.coord.Decrement(ctx, SnapshotPendingKey)
	if err != nil {
		return 0, fmt.Errorf("decrement pending: %w", err)
	}
	d.setPendingGauge(pending)

	if pending == 0 {
		if err := d.coord.ReleaseLock(ctx, SnapshotLockKey); err != nil {
			return 0, fmt.Errorf("release snapshot lock: %w", err)
		}
		d.logger.Info("snapshot sync finished")
	}
	return pending, nil
}

// SnapshotStatus reports whether the family is running and how many pages
// are outstanding.
func (d *Dispatcher) SnapshotStatus(ctx context.Context) (FamilyStatus, error) {
	held, err := d.coord.LockHeld(ctx, SnapshotLockKey)
	if err != nil {
		return FamilyStatus{}, fmt.Errorf("check snapshot lock: %w", err)
	}
	pending, err := d.coord.Counter(ctx, SnapshotPendingKey)
	if err != nil {
		return FamilyStatus{}, fmt.Errorf("read pending: %w", err)
	}
	return FamilyStatus{IsRunning: held, PendingJobs: pending}, nil
}

// EnqueueCategorySync queues a full tag-category refresh.
func (d *Dispatcher) EnqueueCategorySync(ctx context.Context) error {
	return d.enqueue(ctx, bus.QueueMarketCategories, bus.CategorySyncJob{})
}

// EnqueueSeriesSync queues the first page of a series sync.
func (d *Dispatcher) EnqueueSeriesSync(ctx context.Context, job bus.SeriesSyncJob) error {
	return d.enqueue(ctx, bus.QueueSeries, job)
}

// EnqueueEventsSync queues the first page of an events sync.
func (d *Dispatcher) EnqueueEventsSync(ctx context.Context, job bus.EventsSyncJob) error {
	return d.enqueue(ctx, bus.QueueEvents, job)
}

// EnqueueEventDetail queues a single-event detail fetch.
func (d *Dispatcher) EnqueueEventDetail(ctx context.Context, eventTicker string) error {
	return d.enqueue(ctx, bus.QueueEventDetail, bus.EventDetailJob{EventTicker: eventTicker})
}

// EnqueueOrderbookSync queues an orderbook capture for one market.
func (d *Dispatcher) EnqueueOrderbookSync(ctx context.Context, ticker string) error {
	return d.enqueue(ctx, bus.QueueOrderbook, bus.OrderbookSyncJob{Ticker: ticker})
}

// EnqueueCandlestickSync queues a candle refresh for one market.
func (d *Dispatcher) EnqueueCandlestickSync(ctx context.Context, ticker string) error {
	return d.enqueue(ctx, bus.QueueCandlesticks, bus.CandlestickSyncJob{Ticker: ticker})
}

// EnqueueAnalytics queues a feature computation for one market.
func (d *Dispatcher) EnqueueAnalytics(ctx context.Context, ticker string) error {
	return d.enqueue(ctx, bus.QueueAnalytics, bus.AnalyticsJob{Ticker: ticker})
}

// EnqueueCleanup queues a cascade delete for one settled market.
func (d *Dispatcher) EnqueueCleanup(ctx context.Context, ticker string) error {
	return d.enqueue(ctx, bus.QueueCleanup, bus.CleanupJob{Ticker: ticker})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue string, job any) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal %s job: %w", queue, err)
	}
	if err := d.bus.Publish(ctx, queue, payload); err != nil {
		return err
	}
	d.appendLog(ctx, queue, payload)
	return nil
}

// appendLog is best effort. A missed log row never fails an enqueue.
func (d *Dispatcher) appendLog(ctx context.Context, family string, payload []byte) {
	if d.syncLog == nil {
		return
	}
	if err := d.syncLog.AppendSyncLog(ctx, family, payload, time.Now().UTC()); err != nil {
		d.logger.Warn("sync log append failed", "family", family, "err", err)
	}
}

func (d *Dispatcher) setPendingGauge(n int64) {
	if d.metrics != nil {
		d.metrics.PendingCounter.WithLabelValues("market-snapshots").Set(float64(n))
	}
}
