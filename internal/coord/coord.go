// Package coord provides the distributed primitives that keep sync families
// single-flight across replicas: a TTL mutex, atomic counters, and a
// short-TTL cache for read paths.
//
// All progress state lives in the provider, never in process memory, so any
// replica sees the same lock and counter.
package coord

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyLocked is returned when a lock is held by another owner.
var ErrAlreadyLocked = errors.New("coord: already locked")

// Coordinator is the contract shared by the redis implementation and the
// in-memory test twin.
type Coordinator interface {
	// AcquireLock takes a TTL mutex. Fails with ErrAlreadyLocked when held.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) error

	// ReleaseLock frees a mutex. Releasing an unheld lock is a no-op.
	ReleaseLock(ctx context.Context, key string) error

	// LockHeld reports whether the mutex is currently held.
	LockHeld(ctx context.Context, key string) (bool, error)

	// Increment atomically bumps a counter and returns the new value.
	Increment(ctx context.Context, key string) (int64, error)

	// Decrement atomically lowers a counter, clamping at zero, and returns
	// the new value.
	Decrement(ctx context.Context, key string) (int64, error)

	// Counter returns the current counter value (0 when unset).
	Counter(ctx context.Context, key string) (int64, error)

	// ResetCounter deletes a counter key.
	ResetCounter(ctx context.Context, key string) error

	// CacheGet returns a cached value, or ok=false on miss.
	CacheGet(ctx context.Context, key string) (string, bool, error)

	// CacheSet stores a value with the given TTL.
	CacheSet(ctx context.Context, key, value string, ttl time.Duration) error
}
