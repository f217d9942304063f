package coord

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryLock(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.AcquireLock(ctx, "lock", time.Minute); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := m.AcquireLock(ctx, "lock", time.Minute); !errors.Is(err, ErrAlreadyLocked) {
		t.Errorf("second acquire: got %v, want ErrAlreadyLocked", err)
	}

	held, err := m.LockHeld(ctx, "lock")
	if err != nil || !held {
		t.Errorf("LockHeld = %v, %v; want true, nil", held, err)
	}

	if err := m.ReleaseLock(ctx, "lock"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := m.AcquireLock(ctx, "lock", time.Minute); err != nil {
		t.Errorf("acquire after release failed: %v", err)
	}
}

func TestMemoryLockExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now()
	m.now = func() time.Time { return base }

	if err := m.AcquireLock(ctx, "lock", time.Minute); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	m.now = func() time.Time { return base.Add(2 * time.Minute) }

	held, _ := m.LockHeld(ctx, "lock")
	if held {
		t.Error("lock should have expired")
	}
	if err := m.AcquireLock(ctx, "lock", time.Minute); err != nil {
		t.Errorf("acquire of expired lock failed: %v", err)
	}
}

func TestMemoryCounter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if n, _ := m.Counter(ctx, "c"); n != 0 {
		t.Errorf("unset counter = %d, want 0", n)
	}

	if n, _ := m.Increment(ctx, "c"); n != 1 {
		t.Errorf("increment = %d, want 1", n)
	}
	if n, _ := m.Increment(ctx, "c"); n != 2 {
		t.Errorf("increment = %d, want 2", n)
	}
	if n, _ := m.Decrement(ctx, "c"); n != 1 {
		t.Errorf("decrement = %d, want 1", n)
	}

	// Over-decrementing clamps at zero.
	m.Decrement(ctx, "c")
	if n, _ := m.Decrement(ctx, "c"); n != 0 {
		t.Errorf("over-decrement = %d, want 0", n)
	}

	m.Increment(ctx, "c")
	if err := m.ResetCounter(ctx, "c"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if n, _ := m.Counter(ctx, "c"); n != 0 {
		t.Errorf("counter after reset = %d, want 0", n)
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now()
	m.now = func() time.Time { return base }

	if _, ok, _ := m.CacheGet(ctx, "k"); ok {
		t.Error("unset key should miss")
	}

	if err := m.CacheSet(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v, ok, _ := m.CacheGet(ctx, "k")
	if !ok || v != "v" {
		t.Errorf("CacheGet = %q, %v; want \"v\", true", v, ok)
	}

	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok, _ := m.CacheGet(ctx, "k"); ok {
		t.Error("expired key should miss")
	}
}
