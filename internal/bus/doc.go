// Package bus provides durable per-job-kind queues on NATS JetStream.
//
// Each job kind gets its own stream and durable consumer with at-least-once
// delivery, bounded redelivery with exponential backoff, a per-consumer
// prefetch window, and a dead-letter subject that preserves the original
// payload after retry exhaustion.
//
// The MemoryBus implementation mirrors the same contract in-process for
// tests.
package bus
