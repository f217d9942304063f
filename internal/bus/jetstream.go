package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/quantfold/marketcurator/internal/metrics"
)

const (
	dlqStream    = "dead-letter"
	dlqPrefix    = "dlq."
	fetchMaxWait = 2 * time.Second
)

// Config tunes queue behavior shared by all job kinds.
type Config struct {
	MaxDeliver  int              // Delivery attempts before dead-lettering
	BackoffBase time.Duration    // First redelivery delay
	BackoffMax  time.Duration    // Redelivery delay cap
	Prefetch    int              // Max unacknowledged messages per consumer
	Metrics     *metrics.Metrics // Optional instrumentation
}

// JetStreamBus implements Bus on NATS JetStream.
type JetStreamBus struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	contexts []jetstream.ConsumeContext
	wg       sync.WaitGroup
	done     chan struct{}
}

// Connect dials the broker and provisions one stream per queue plus the
// shared dead-letter stream.
func Connect(ctx context.Context, url string, cfg Config, logger *slog.Logger) (*JetStreamBus, error) {
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrUnavailable, url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	b := &JetStreamBus{
		nc:      nc,
		js:      js,
		cfg:     cfg,
		logger:  logger,
		metrics: cfg.Metrics,
		done:    make(chan struct{}),
	}

	if err := b.ensureStreams(ctx); err != nil {
		nc.Close()
		return nil, err
	}

	return b, nil
}

func (b *JetStreamBus) ensureStreams(ctx context.Context) error {
	for _, queue := range AllQueues {
		_, err := b.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:      queue,
			Subjects:  []string{queue},
			Retention: jetstream.WorkQueuePolicy,
			Storage:   jetstream.FileStorage,
		})
		if err != nil {
			return fmt.Errorf("%w: ensure stream %s: %v", ErrUnavailable, queue, err)
		}
	}

	// Dead letters live in their own stream so queue purges leave them
	// intact for inspection.
	_, err := b.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     dlqStream,
		Subjects: []string{dlqPrefix + ">"},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("%w: ensure dead-letter stream: %v", ErrUnavailable, err)
	}

	return nil
}

// Publish appends one message to a queue.
func (b *JetStreamBus) Publish(ctx context.Context, queue string, payload []byte) error {
	if _, err := b.js.Publish(ctx, queue, payload); err != nil {
		return fmt.Errorf("%w: publish %s: %v", ErrUnavailable, queue, err)
	}
	return nil
}

// backoffSteps builds the redelivery delay schedule: geometric from base,
// capped at max, one step per redelivery.
func backoffSteps(base, max time.Duration, attempts int) []time.Duration {
	if attempts < 2 {
		return nil
	}
	steps := make([]time.Duration, attempts-1)
	d := base
	for i := range steps {
		steps[i] = d
		d *= 2
		if d > max {
			d = max
		}
	}
	return steps
}

func (b *JetStreamBus) consumer(ctx context.Context, queue string) (jetstream.Consumer, error) {
	cons, err := b.js.CreateOrUpdateConsumer(ctx, queue, jetstream.ConsumerConfig{
		Durable:       queue + "-worker",
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    b.cfg.MaxDeliver,
		BackOff:       backoffSteps(b.cfg.BackoffBase, b.cfg.BackoffMax, b.cfg.MaxDeliver),
		MaxAckPending: b.cfg.Prefetch,
		FilterSubject: queue,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ensure consumer %s: %v", ErrUnavailable, queue, err)
	}
	return cons, nil
}

// Subscribe registers a single-message consumer. Up to concurrency handler
// invocations run at once; when all slots are busy the dispatch goroutine
// blocks, which backpressures the pull.
func (b *JetStreamBus) Subscribe(ctx context.Context, queue string, concurrency int, h Handler) error {
	cons, err := b.consumer(ctx, queue)
	if err != nil {
		return err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	lim := newLimiter(concurrency)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		lim.acquire()
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer lim.release()
			b.handleMsg(ctx, queue, msg, h)
		}()
	}, jetstream.PullMaxMessages(concurrency))
	if err != nil {
		return fmt.Errorf("%w: consume %s: %v", ErrUnavailable, queue, err)
	}

	b.mu.Lock()
	b.contexts = append(b.contexts, cc)
	b.mu.Unlock()
	return nil
}

func (b *JetStreamBus) handleMsg(ctx context.Context, queue string, msg jetstream.Msg, h Handler) {
	err := h(ctx, msg.Data())
	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			b.logger.Warn("ack failed", "queue", queue, "err", ackErr)
		}
		return
	}

	meta, metaErr := msg.Metadata()
	if metaErr == nil && int(meta.NumDelivered) >= b.cfg.MaxDeliver {
		b.deadLetter(ctx, queue, msg.Data(), err)
		if termErr := msg.Term(); termErr != nil {
			b.logger.Warn("term failed", "queue", queue, "err", termErr)
		}
		return
	}

	b.logger.Warn("job failed, scheduling redelivery", "queue", queue, "err", err)
	if nakErr := msg.Nak(); nakErr != nil {
		b.logger.Warn("nak failed", "queue", queue, "err", nakErr)
	}
}

// SubscribeBatch registers a batched consumer that pulls up to batchSize
// messages per fetch and hands them to the handler together.
func (b *JetStreamBus) SubscribeBatch(ctx context.Context, queue string, batchSize int, h BatchHandler) error {
	cons, err := b.consumer(ctx, queue)
	if err != nil {
		return err
	}
	if batchSize < 1 {
		batchSize = 1
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				return
			default:
			}

			batch, err := cons.Fetch(batchSize, jetstream.FetchMaxWait(fetchMaxWait))
			if err != nil {
				continue
			}

			var msgs []jetstream.Msg
			for msg := range batch.Messages() {
				msgs = append(msgs, msg)
			}
			if len(msgs) == 0 {
				continue
			}

			payloads := make([][]byte, len(msgs))
			for i, msg := range msgs {
				payloads[i] = msg.Data()
			}

			results := h(ctx, payloads)
			for i, msg := range msgs {
				var herr error
				if i < len(results) {
					herr = results[i]
				}
				if herr == nil {
					msg.Ack()
					continue
				}
				meta, metaErr := msg.Metadata()
				if metaErr == nil && int(meta.NumDelivered) >= b.cfg.MaxDeliver {
					b.deadLetter(ctx, queue, msg.Data(), herr)
					msg.Term()
					continue
				}
				msg.Nak()
			}
		}
	}()

	return nil
}

// deadLetter preserves the original payload on the dead-letter subject.
func (b *JetStreamBus) deadLetter(ctx context.Context, queue string, payload []byte, cause error) {
	b.logger.Error("moving job to dead letter",
		"queue", queue,
		"err", cause,
	)
	if b.metrics != nil {
		b.metrics.JobsDeadLetter.WithLabelValues(queue).Inc()
	}
	if _, err := b.js.Publish(ctx, dlqPrefix+queue, payload); err != nil {
		b.logger.Error("dead-letter publish failed", "queue", queue, "err", err)
	}
}

// limiter bounds concurrent handler executions for one subscription.
type limiter chan struct{}

func newLimiter(n int) limiter { return make(limiter, n) }

func (l limiter) acquire() { l <- struct{}{} }
func (l limiter) release() { <-l }

// Stats reports queue depth and consumer counts.
func (b *JetStreamBus) Stats(ctx context.Context, queue string) QueueStats {
	stats := QueueStats{Name: queue}

	stream, err := b.js.Stream(ctx, queue)
	if err != nil {
		stats.Error = err.Error()
		return stats
	}

	info, err := stream.Info(ctx)
	if err != nil {
		stats.Error = err.Error()
		return stats
	}

	stats.Exists = true
	stats.Messages = int64(info.State.Msgs)
	stats.Consumers = info.State.Consumers

	ci, err := stream.Consumer(ctx, queue+"-worker")
	if err == nil {
		if cinfo, err := ci.Info(ctx); err == nil {
			stats.MessagesReady = int64(cinfo.NumPending)
			stats.MessagesUnacknowledged = int64(cinfo.NumAckPending)
		}
	}

	return stats
}

// Purge drops all pending messages from a queue. Dead letters survive in
// their own stream.
func (b *JetStreamBus) Purge(ctx context.Context, queue string) error {
	stream, err := b.js.Stream(ctx, queue)
	if err != nil {
		return fmt.Errorf("%w: stream %s: %v", ErrUnavailable, queue, err)
	}
	if err := stream.Purge(ctx); err != nil {
		return fmt.Errorf("%w: purge %s: %v", ErrUnavailable, queue, err)
	}
	return nil
}

// Close stops all consumers and drains the connection.
func (b *JetStreamBus) Close() {
	close(b.done)

	b.mu.Lock()
	for _, cc := range b.contexts {
		cc.Stop()
	}
	b.mu.Unlock()

	b.wg.Wait()
	b.nc.Close()
}
