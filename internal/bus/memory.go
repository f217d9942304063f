package bus

import (
	"context"
	"sync"

	"github.com/quantfold/marketcurator/internal/metrics"
)

// MemoryBus is an in-process Bus for tests. Delivery is synchronous: when a
// handler is registered for a queue, Publish runs it inline, applying the
// same bounded-retry and dead-letter contract as the JetStream bus. Without
// a handler, messages queue up until one subscribes.
type MemoryBus struct {
	mu         sync.Mutex
	maxDeliver int
	handlers   map[string]Handler
	batchers   map[string]batchSub
	pending    map[string][][]byte
	dead       map[string][][]byte
	published  map[string]int
	metrics    *metrics.Metrics
	unavail    bool
}

type batchSub struct {
	size int
	h    BatchHandler
}

// NewMemoryBus creates a test bus with the given delivery attempt bound.
func NewMemoryBus(maxDeliver int) *MemoryBus {
	if maxDeliver < 1 {
		maxDeliver = 1
	}
	return &MemoryBus{
		maxDeliver: maxDeliver,
		handlers:   make(map[string]Handler),
		batchers:   make(map[string]batchSub),
		pending:    make(map[string][][]byte),
		dead:       make(map[string][][]byte),
		published:  make(map[string]int),
	}
}

// SetMetrics attaches instrumentation, matching the JetStream bus.
func (b *MemoryBus) SetMetrics(m *metrics.Metrics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = m
}

// SetUnavailable makes every Publish fail with ErrUnavailable.
func (b *MemoryBus) SetUnavailable(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unavail = down
}

// Publish delivers synchronously when a handler is registered.
func (b *MemoryBus) Publish(ctx context.Context, queue string, payload []byte) error {
	b.mu.Lock()
	if b.unavail {
		b.mu.Unlock()
		return ErrUnavailable
	}
	b.published[queue]++
	h, ok := b.handlers[queue]
	bs, okBatch := b.batchers[queue]
	if !ok && !okBatch {
		b.pending[queue] = append(b.pending[queue], payload)
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if ok {
		b.deliver(ctx, queue, payload, h)
		return nil
	}
	results := bs.h(ctx, [][]byte{payload})
	if len(results) > 0 && results[0] != nil {
		b.redeliverBatch(ctx, queue, payload, bs)
	}
	return nil
}

func (b *MemoryBus) deliver(ctx context.Context, queue string, payload []byte, h Handler) {
	var err error
	for attempt := 1; attempt <= b.maxDeliver; attempt++ {
		if err = h(ctx, payload); err == nil {
			return
		}
	}
	b.markDead(queue, payload)
}

func (b *MemoryBus) redeliverBatch(ctx context.Context, queue string, payload []byte, bs batchSub) {
	for attempt := 2; attempt <= b.maxDeliver; attempt++ {
		results := bs.h(ctx, [][]byte{payload})
		if len(results) == 0 || results[0] == nil {
			return
		}
	}
	b.markDead(queue, payload)
}

func (b *MemoryBus) markDead(queue string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dead[queue] = append(b.dead[queue], payload)
	if b.metrics != nil {
		b.metrics.JobsDeadLetter.WithLabelValues(queue).Inc()
	}
}

// Subscribe registers a handler and drains anything already queued.
func (b *MemoryBus) Subscribe(ctx context.Context, queue string, concurrency int, h Handler) error {
	b.mu.Lock()
	b.handlers[queue] = h
	backlog := b.pending[queue]
	b.pending[queue] = nil
	b.mu.Unlock()

	for _, payload := range backlog {
		b.deliver(ctx, queue, payload, h)
	}
	return nil
}

// SubscribeBatch registers a batched handler and drains the backlog in
// groups of at most batchSize.
func (b *MemoryBus) SubscribeBatch(ctx context.Context, queue string, batchSize int, h BatchHandler) error {
	if batchSize < 1 {
		batchSize = 1
	}
	b.mu.Lock()
	bs := batchSub{size: batchSize, h: h}
	b.batchers[queue] = bs
	backlog := b.pending[queue]
	b.pending[queue] = nil
	b.mu.Unlock()

	for start := 0; start < len(backlog); start += batchSize {
		end := start + batchSize
		if end > len(backlog) {
			end = len(backlog)
		}
		chunk := backlog[start:end]
		results := h(ctx, chunk)
		for i, payload := range chunk {
			if i < len(results) && results[i] != nil {
				b.redeliverBatch(ctx, queue, payload, bs)
			}
		}
	}
	return nil
}

// Stats reports counts observed by the test bus.
func (b *MemoryBus) Stats(ctx context.Context, queue string) QueueStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return QueueStats{
		Name:          queue,
		Exists:        true,
		Messages:      int64(len(b.pending[queue])),
		MessagesReady: int64(len(b.pending[queue])),
	}
}

// Purge drops queued messages.
func (b *MemoryBus) Purge(ctx context.Context, queue string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unavail {
		return ErrUnavailable
	}
	b.pending[queue] = nil
	return nil
}

// Close is a no-op.
func (b *MemoryBus) Close() {}

// Published returns how many messages were published to a queue.
func (b *MemoryBus) Published(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[queue]
}

// DeadLetters returns payloads that exhausted their deliveries.
func (b *MemoryBus) DeadLetters(queue string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dead[queue]
}
