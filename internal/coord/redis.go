package coord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Coordinator on a redis server.
type Redis struct {
	rdb *redis.Client
}

// NewRedis creates a coordinator and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Redis{rdb: rdb}, nil
}

// Close releases the client.
func (r *Redis) Close() error { return r.rdb.Close() }

// AcquireLock takes the mutex with SET NX. The TTL guards against a dead
// holder wedging the sync family.
func (r *Redis) AcquireLock(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := r.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return ErrAlreadyLocked
	}
	return nil
}

// ReleaseLock frees the mutex.
func (r *Redis) ReleaseLock(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

// LockHeld reports whether the mutex key exists.
func (r *Redis) LockHeld(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check lock %s: %w", key, err)
	}
	return n > 0, nil
}

// Increment atomically bumps a counter.
func (r *Redis) Increment(ctx context.Context, key string) (int64, error) {
	n, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return n, nil
}

// Decrement atomically lowers a counter, clamping at zero.
func (r *Redis) Decrement(ctx context.Context, key string) (int64, error) {
	n, err := r.rdb.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("decrement %s: %w", key, err)
	}
	if n < 0 {
		// Duplicate deliveries can over-decrement; pin the floor.
		if err := r.rdb.Set(ctx, key, 0, 0).Err(); err != nil {
			return 0, fmt.Errorf("clamp %s: %w", key, err)
		}
		return 0, nil
	}
	return n, nil
}

// Counter returns the current value, 0 when unset.
func (r *Redis) Counter(ctx context.Context, key string) (int64, error) {
	n, err := r.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", key, err)
	}
	return n, nil
}

// ResetCounter deletes the counter key.
func (r *Redis) ResetCounter(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("reset counter %s: %w", key, err)
	}
	return nil
}

// CacheGet returns a cached value.
func (r *Redis) CacheGet(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return v, true, nil
}

// CacheSet stores a value with a TTL.
func (r *Redis) CacheSet(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
