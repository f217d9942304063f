package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultListenAddr        = ":8080"
	DefaultLogLevel          = "info"
	DefaultUpstreamURL       = "https://api.elections.kalshi.com/trade-api/v2"
	DefaultAPITimeout        = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultRetryBackoff      = 1 * time.Second
	DefaultRateLimitRPS      = 10.0
	DefaultRateLimitBurst    = 20
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultMigrationsPath    = "migrations"
	DefaultBusURL            = "nats://localhost:4222"
	DefaultMaxDeliver        = 5
	DefaultBackoffBase       = 2 * time.Second
	DefaultBackoffMax        = 2 * time.Minute
	DefaultPrefetch          = 16
	DefaultEventDetailBatch  = 10
	DefaultCacheTTL          = 30 * time.Second
	DefaultSnapshotPageLimit = 250
	DefaultMarketStatus      = "open"
	DefaultLockTTL           = 30 * time.Minute
	DefaultPageLimit         = 200
	DefaultScheduleInterval  = 15 * time.Minute
	DefaultRetention         = 7 * 24 * time.Hour
)

func (c *Config) applyDefaults() {
	if c.Service.ListenAddr == "" {
		c.Service.ListenAddr = DefaultListenAddr
	}
	if c.Service.LogLevel == "" {
		c.Service.LogLevel = DefaultLogLevel
	}

	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultUpstreamURL
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = DefaultAPITimeout
	}
	if c.Upstream.MaxRetries == 0 {
		c.Upstream.MaxRetries = DefaultMaxRetries
	}
	if c.Upstream.RetryBackoff == 0 {
		c.Upstream.RetryBackoff = DefaultRetryBackoff
	}
	if c.Upstream.RateLimitRPS == 0 {
		c.Upstream.RateLimitRPS = DefaultRateLimitRPS
	}
	if c.Upstream.RateLimitBurst == 0 {
		c.Upstream.RateLimitBurst = DefaultRateLimitBurst
	}

	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}
	if c.Database.MigrationsPath == "" {
		c.Database.MigrationsPath = DefaultMigrationsPath
	}

	if c.Bus.URL == "" {
		c.Bus.URL = DefaultBusURL
	}
	if c.Bus.MaxDeliver == 0 {
		c.Bus.MaxDeliver = DefaultMaxDeliver
	}
	if c.Bus.BackoffBase == 0 {
		c.Bus.BackoffBase = DefaultBackoffBase
	}
	if c.Bus.BackoffMax == 0 {
		c.Bus.BackoffMax = DefaultBackoffMax
	}
	if c.Bus.Prefetch == 0 {
		c.Bus.Prefetch = DefaultPrefetch
	}
	if c.Bus.EventDetailBatch == 0 {
		c.Bus.EventDetailBatch = DefaultEventDetailBatch
	}

	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = DefaultCacheTTL
	}

	if c.Sync.SnapshotPageLimit == 0 {
		c.Sync.SnapshotPageLimit = DefaultSnapshotPageLimit
	}
	if c.Sync.DefaultStatus == "" {
		c.Sync.DefaultStatus = DefaultMarketStatus
	}
	if c.Sync.LockTTL == 0 {
		c.Sync.LockTTL = DefaultLockTTL
	}
	if c.Sync.PageLimit == 0 {
		c.Sync.PageLimit = DefaultPageLimit
	}
	if c.Sync.ScheduleInterval == 0 {
		c.Sync.ScheduleInterval = DefaultScheduleInterval
	}

	if c.Cleanup.Retention == 0 {
		c.Cleanup.Retention = DefaultRetention
	}
}
