package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/coord"
)

func newDispatcher(b bus.Bus, c coord.Coordinator) *Dispatcher {
	return New(b, c, nil, nil, time.Minute, nil)
}

func TestStartSnapshotSyncSingleFlight(t *testing.T) {
	ctx := context.Background()
	b := bus.NewMemoryBus(3)
	c := coord.NewMemory()
	d := newDispatcher(b, c)

	if err := d.StartSnapshotSync(ctx, bus.SnapshotSyncJob{}); err != nil {
		t.Fatalf("first start failed: %v", err)
	}

	if err := d.StartSnapshotSync(ctx, bus.SnapshotSyncJob{}); !errors.Is(err, ErrAlreadyInProgress) {
		t.Errorf("second start: got %v, want ErrAlreadyInProgress", err)
	}

	status, err := d.SnapshotStatus(ctx)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !status.IsRunning || status.PendingJobs != 1 {
		t.Errorf("status = %+v, want running with 1 pending", status)
	}

	// Drain: last page done releases the lock.
	pending, err := d.FinishSnapshotJob(ctx)
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("pending after finish = %d, want 0", pending)
	}

	if err := d.StartSnapshotSync(ctx, bus.SnapshotSyncJob{}); err != nil {
		t.Errorf("start after drain failed: %v", err)
	}
}

func TestContinueSnapshotSyncTracksPending(t *testing.T) {
	ctx := context.Background()
	b := bus.NewMemoryBus(3)
	c := coord.NewMemory()
	d := newDispatcher(b, c)

	if err := d.StartSnapshotSync(ctx, bus.SnapshotSyncJob{}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := d.ContinueSnapshotSync(ctx, bus.SnapshotSyncJob{Cursor: "page2"}); err != nil {
		t.Fatalf("continue failed: %v", err)
	}

	status, _ := d.SnapshotStatus(ctx)
	if status.PendingJobs != 2 {
		t.Errorf("pending = %d, want 2", status.PendingJobs)
	}

	// First page done: still running.
	if _, err := d.FinishSnapshotJob(ctx); err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	status, _ = d.SnapshotStatus(ctx)
	if !status.IsRunning || status.PendingJobs != 1 {
		t.Errorf("status after first finish = %+v, want running with 1 pending", status)
	}

	// Last page done: idle.
	if _, err := d.FinishSnapshotJob(ctx); err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	status, _ = d.SnapshotStatus(ctx)
	if status.IsRunning || status.PendingJobs != 0 {
		t.Errorf("status after drain = %+v, want idle", status)
	}

	if b.Published(bus.QueueMarketSnapshots) != 2 {
		t.Errorf("published = %d, want 2", b.Published(bus.QueueMarketSnapshots))
	}
}

func TestStartSnapshotSyncRollsBackOnPublishFailure(t *testing.T) {
	ctx := context.Background()
	b := bus.NewMemoryBus(3)
	c := coord.NewMemory()
	d := newDispatcher(b, c)

	b.SetUnavailable(true)

	err := d.StartSnapshotSync(ctx, bus.SnapshotSyncJob{})
	if !errors.Is(err, bus.ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}

	// The failed start must not wedge the family.
	status, _ := d.SnapshotStatus(ctx)
	if status.IsRunning || status.PendingJobs != 0 {
		t.Errorf("status after failed start = %+v, want idle", status)
	}

	b.SetUnavailable(false)
	if err := d.StartSnapshotSync(ctx, bus.SnapshotSyncJob{}); err != nil {
		t.Errorf("start after recovery failed: %v", err)
	}
}

func TestEnqueuePublishesToQueue(t *testing.T) {
	ctx := context.Background()
	b := bus.NewMemoryBus(3)
	d := newDispatcher(b, coord.NewMemory())

	checks := []struct {
		queue   string
		enqueue func() error
	}{
		{bus.QueueMarketCategories, func() error { return d.EnqueueCategorySync(ctx) }},
		{bus.QueueSeries, func() error { return d.EnqueueSeriesSync(ctx, bus.SeriesSyncJob{}) }},
		{bus.QueueEvents, func() error { return d.EnqueueEventsSync(ctx, bus.EventsSyncJob{}) }},
		{bus.QueueEventDetail, func() error { return d.EnqueueEventDetail(ctx, "EVT-A") }},
		{bus.QueueOrderbook, func() error { return d.EnqueueOrderbookSync(ctx, "MKT-A") }},
		{bus.QueueCandlesticks, func() error { return d.EnqueueCandlestickSync(ctx, "MKT-A") }},
		{bus.QueueAnalytics, func() error { return d.EnqueueAnalytics(ctx, "MKT-A") }},
		{bus.QueueCleanup, func() error { return d.EnqueueCleanup(ctx, "MKT-A") }},
	}

	for _, c := range checks {
		if err := c.enqueue(); err != nil {
			t.Errorf("enqueue %s failed: %v", c.queue, err)
		}
		if b.Published(c.queue) != 1 {
			t.Errorf("queue %s has %d published, want 1", c.queue, b.Published(c.queue))
		}
	}
}
