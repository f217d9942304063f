package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Service.InstanceID == "" {
		return errors.New("service.instance_id is required")
	}

	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Name == "" {
		return errors.New("database.name is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.Password == "" {
		return errors.New("database.password is required")
	}
	if c.Database.MaxConns < 1 {
		return errors.New("database.max_conns must be >= 1")
	}
	if c.Database.MinConns < 0 {
		return errors.New("database.min_conns must be >= 0")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) cannot exceed max_conns (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}

	if c.Bus.MaxDeliver < 1 {
		return errors.New("bus.max_deliver must be >= 1")
	}
	if c.Bus.Prefetch < 1 {
		return errors.New("bus.prefetch must be >= 1")
	}
	if c.Bus.EventDetailBatch < 1 {
		return errors.New("bus.event_detail_batch must be >= 1")
	}
	for queue, n := range c.Bus.Concurrency {
		if n < 1 {
			return fmt.Errorf("bus.concurrency.%s must be >= 1", queue)
		}
	}

	if c.Sync.SnapshotPageLimit < 1 || c.Sync.SnapshotPageLimit > 1000 {
		return fmt.Errorf("sync.snapshot_page_limit must be between 1 and 1000, got %d", c.Sync.SnapshotPageLimit)
	}
	if c.Sync.LockTTL <= 0 {
		return errors.New("sync.lock_ttl must be positive")
	}

	if c.Cleanup.Retention <= 0 {
		return errors.New("cleanup.retention must be positive")
	}

	return nil
}
