package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/quantfold/marketcurator/internal/metrics"
)

func TestMemoryBusDelivers(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus(3)

	var got [][]byte
	b.Subscribe(ctx, QueueSeries, 1, func(ctx context.Context, payload []byte) error {
		got = append(got, payload)
		return nil
	})

	if err := b.Publish(ctx, QueueSeries, []byte(`{"cursor":""}`)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("handler saw %d messages, want 1", len(got))
	}
	if b.Published(QueueSeries) != 1 {
		t.Errorf("published count = %d, want 1", b.Published(QueueSeries))
	}
}

func TestMemoryBusBacklogDrain(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus(3)

	b.Publish(ctx, QueueEvents, []byte("a"))
	b.Publish(ctx, QueueEvents, []byte("b"))

	var got []string
	b.Subscribe(ctx, QueueEvents, 1, func(ctx context.Context, payload []byte) error {
		got = append(got, string(payload))
		return nil
	})

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("backlog drained as %v, want [a b]", got)
	}
}

func TestMemoryBusDeadLetter(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus(3)

	attempts := 0
	b.Subscribe(ctx, QueueCleanup, 1, func(ctx context.Context, payload []byte) error {
		attempts++
		return errors.New("boom")
	})

	b.Publish(ctx, QueueCleanup, []byte("doomed"))

	if attempts != 3 {
		t.Errorf("handler ran %d times, want 3", attempts)
	}
	dead := b.DeadLetters(QueueCleanup)
	if len(dead) != 1 || string(dead[0]) != "doomed" {
		t.Errorf("dead letters = %v, want [doomed]", dead)
	}
}

func TestDeadLetterCountedPerQueue(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus(2)
	m := metrics.New(prometheus.NewRegistry())
	b.SetMetrics(m)

	b.Subscribe(ctx, QueueCleanup, 1, func(ctx context.Context, payload []byte) error {
		return errors.New("boom")
	})
	b.Subscribe(ctx, QueueSeries, 1, func(ctx context.Context, payload []byte) error {
		return nil
	})

	b.Publish(ctx, QueueCleanup, []byte("doomed"))
	b.Publish(ctx, QueueSeries, []byte("fine"))

	if got := testutil.ToFloat64(m.JobsDeadLetter.WithLabelValues(QueueCleanup)); got != 1 {
		t.Errorf("dead-letter counter for %s = %v, want 1", QueueCleanup, got)
	}
	if got := testutil.ToFloat64(m.JobsDeadLetter.WithLabelValues(QueueSeries)); got != 0 {
		t.Errorf("dead-letter counter for %s = %v, want 0", QueueSeries, got)
	}
}

func TestLimiterBoundsConcurrency(t *testing.T) {
	lim := newLimiter(2)

	var running, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lim.acquire()
			defer lim.release()

			n := atomic.AddInt64(&running, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			atomic.AddInt64(&running, -1)
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt64(&peak); p > 2 {
		t.Errorf("observed %d concurrent holders, want at most 2", p)
	}
}

func TestMemoryBusUnavailable(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus(1)
	b.SetUnavailable(true)

	if err := b.Publish(ctx, QueueSeries, []byte("x")); !errors.Is(err, ErrUnavailable) {
		t.Errorf("publish on down bus: got %v, want ErrUnavailable", err)
	}
	if err := b.Purge(ctx, QueueSeries); !errors.Is(err, ErrUnavailable) {
		t.Errorf("purge on down bus: got %v, want ErrUnavailable", err)
	}
}

func TestMemoryBusBatch(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus(2)

	b.Publish(ctx, QueueEventDetail, []byte("ok"))
	b.Publish(ctx, QueueEventDetail, []byte("bad"))

	deliveries := map[string]int{}
	b.SubscribeBatch(ctx, QueueEventDetail, 2, func(ctx context.Context, payloads [][]byte) []error {
		results := make([]error, len(payloads))
		for i, p := range payloads {
			deliveries[string(p)]++
			if string(p) == "bad" {
				results[i] = errors.New("boom")
			}
		}
		return results
	})

	if deliveries["ok"] != 1 {
		t.Errorf("ok delivered %d times, want 1", deliveries["ok"])
	}
	if deliveries["bad"] != 2 {
		t.Errorf("bad delivered %d times, want 2 (maxDeliver)", deliveries["bad"])
	}
	if len(b.DeadLetters(QueueEventDetail)) != 1 {
		t.Errorf("dead letters = %d, want 1", len(b.DeadLetters(QueueEventDetail)))
	}
}

func TestBackoffSteps(t *testing.T) {
	steps := backoffSteps(2, 8, 5)
	want := []int64{2, 4, 8, 8}
	if len(steps) != len(want) {
		t.Fatalf("got %d steps, want %d", len(steps), len(want))
	}
	for i, s := range steps {
		if int64(s) != want[i] {
			t.Errorf("step %d = %d, want %d", i, s, want[i])
		}
	}

	if steps := backoffSteps(2, 8, 1); steps != nil {
		t.Errorf("single attempt should have no backoff steps, got %v", steps)
	}
}
