package bus

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the broker cannot be reached. The control
// surface maps it to 503.
var ErrUnavailable = errors.New("bus: unavailable")

// Handler processes one message. Returning nil acknowledges the message;
// returning an error schedules a redelivery until attempts are exhausted,
// after which the payload moves to the dead-letter subject.
type Handler func(ctx context.Context, payload []byte) error

// BatchHandler processes up to batchSize messages at once. The returned
// slice must be the same length as payloads; a nil entry acknowledges the
// corresponding message.
type BatchHandler func(ctx context.Context, payloads [][]byte) []error

// QueueStats describes one queue for the operator surface.
type QueueStats struct {
	Name                   string `json:"name"`
	Exists                 bool   `json:"exists"`
	Messages               int64  `json:"messages"`
	MessagesReady          int64  `json:"messages_ready"`
	MessagesUnacknowledged int64  `json:"messages_unacknowledged"`
	Consumers              int    `json:"consumers"`
	Error                  string `json:"error,omitempty"`
}

// Bus is the durable queue contract shared by the JetStream implementation
// and the in-memory test bus.
type Bus interface {
	// Publish appends one message to a queue.
	Publish(ctx context.Context, queue string, payload []byte) error

	// Subscribe registers a single-message consumer with the given
	// concurrency. Messages are redelivered on handler error.
	Subscribe(ctx context.Context, queue string, concurrency int, h Handler) error

	// SubscribeBatch registers a batched consumer. Messages are handed to
	// the handler in groups of at most batchSize.
	SubscribeBatch(ctx context.Context, queue string, batchSize int, h BatchHandler) error

	// Stats reports queue depth and consumer counts.
	Stats(ctx context.Context, queue string) QueueStats

	// Purge drops all pending messages from a queue. Dead letters survive.
	Purge(ctx context.Context, queue string) error

	// Close releases broker resources.
	Close()
}
