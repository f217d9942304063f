package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/coord"
	"github.com/quantfold/marketcurator/internal/dispatch"
	"github.com/quantfold/marketcurator/internal/store"
)

type fakeStorage struct {
	settled    []string
	cutoffSeen time.Time
	purged     map[string]int
}

func (f *fakeStorage) SettledTickersBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	f.cutoffSeen = cutoff
	return f.settled, nil
}

func (f *fakeStorage) PurgeMarket(ctx context.Context, ticker string) (store.PurgeCounts, error) {
	if f.purged == nil {
		f.purged = map[string]int{}
	}
	f.purged[ticker]++
	if f.purged[ticker] > 1 {
		// Already purged: cascades delete nothing.
		return store.PurgeCounts{}, nil
	}
	return store.PurgeCounts{Snapshots: 5, Candlesticks: 2, Features: 1}, nil
}

func newService(storage Storage, b bus.Bus, retention time.Duration) *Service {
	d := dispatch.New(b, coord.NewMemory(), nil, nil, time.Minute, nil)
	return New(storage, d, nil, retention, nil)
}

func TestSweepEnqueuesSettledMarkets(t *testing.T) {
	ctx := context.Background()
	b := bus.NewMemoryBus(3)
	storage := &fakeStorage{settled: []string{"MKT-A", "MKT-B"}}

	s := newService(storage, b, 72*time.Hour)
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	queued, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if queued != 2 {
		t.Errorf("queued = %d, want 2", queued)
	}
	if b.Published(bus.QueueCleanup) != 2 {
		t.Errorf("published = %d, want 2", b.Published(bus.QueueCleanup))
	}
	if want := base.Add(-72 * time.Hour); !storage.cutoffSeen.Equal(want) {
		t.Errorf("cutoff = %v, want %v", storage.cutoffSeen, want)
	}
}

func TestCleanupJobPurgesMarket(t *testing.T) {
	ctx := context.Background()
	b := bus.NewMemoryBus(3)
	storage := &fakeStorage{settled: []string{"MKT-A"}}

	s := newService(storage, b, 72*time.Hour)
	if err := s.Register(ctx, b); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, err := s.Sweep(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if storage.purged["MKT-A"] != 1 {
		t.Errorf("MKT-A purged %d times, want 1", storage.purged["MKT-A"])
	}
}

func TestCleanupJobRedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	storage := &fakeStorage{}
	s := newService(storage, bus.NewMemoryBus(3), time.Hour)

	payload := []byte(`{"ticker":"MKT-A"}`)
	if err := s.handleCleanupJob(ctx, payload); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if err := s.handleCleanupJob(ctx, payload); err != nil {
		t.Errorf("redelivery should ack cleanly, got %v", err)
	}
	if storage.purged["MKT-A"] != 2 {
		t.Errorf("purge ran %d times, want 2", storage.purged["MKT-A"])
	}
}

func TestCleanupJobDropsMalformedPayload(t *testing.T) {
	ctx := context.Background()
	storage := &fakeStorage{}
	s := newService(storage, bus.NewMemoryBus(3), time.Hour)

	if err := s.handleCleanupJob(ctx, []byte("not json")); err != nil {
		t.Errorf("malformed payload should ack, got %v", err)
	}
	if len(storage.purged) != 0 {
		t.Errorf("nothing should be purged, got %v", storage.purged)
	}
}

func TestPurgeDirect(t *testing.T) {
	ctx := context.Background()
	storage := &fakeStorage{}
	s := newService(storage, bus.NewMemoryBus(3), time.Hour)

	counts, err := s.Purge(ctx, "MKT-A")
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if counts.Total() != 8 {
		t.Errorf("rows deleted = %d, want 8", counts.Total())
	}
}
