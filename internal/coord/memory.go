package coord

import (
	"context"
	"sync"
	"time"
)

// Memory implements Coordinator in process memory for tests. TTLs are
// checked lazily on access.
type Memory struct {
	mu       sync.Mutex
	locks    map[string]time.Time // key -> expiry
	counters map[string]int64
	cache    map[string]memEntry
	now      func() time.Time
}

type memEntry struct {
	value  string
	expiry time.Time
}

// NewMemory creates an empty in-memory coordinator.
func NewMemory() *Memory {
	return &Memory{
		locks:    make(map[string]time.Time),
		counters: make(map[string]int64),
		cache:    make(map[string]memEntry),
		now:      time.Now,
	}
}

func (m *Memory) AcquireLock(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if expiry, ok := m.locks[key]; ok && m.now().Before(expiry) {
		return ErrAlreadyLocked
	}
	m.locks[key] = m.now().Add(ttl)
	return nil
}

func (m *Memory) ReleaseLock(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return nil
}

func (m *Memory) LockHeld(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.locks[key]
	return ok && m.now().Before(expiry), nil
}

func (m *Memory) Increment(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *Memory) Decrement(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]--
	if m.counters[key] < 0 {
		m.counters[key] = 0
	}
	return m.counters[key], nil
}

func (m *Memory) Counter(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key], nil
}

func (m *Memory) ResetCounter(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counters, key)
	return nil
}

func (m *Memory) CacheGet(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.cache[key]
	if !ok || m.now().After(entry.expiry) {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) CacheSet(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = memEntry{value: value, expiry: m.now().Add(ttl)}
	return nil
}
