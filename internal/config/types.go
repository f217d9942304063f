package config

import "time"

// Config is the full curator configuration, loaded from YAML.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Database DBConfig       `yaml:"database"`
	Bus      BusConfig      `yaml:"bus"`
	Redis    RedisConfig    `yaml:"redis"`
	Sync     SyncConfig     `yaml:"sync"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
}

// ServiceConfig identifies the process and its HTTP surface.
type ServiceConfig struct {
	InstanceID string `yaml:"instance_id"`
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
}

// UpstreamConfig configures the exchange REST client.
type UpstreamConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
}

// DBConfig configures the analytical store connection.
type DBConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Name           string `yaml:"name"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	SSLMode        string `yaml:"ssl_mode"`
	MinConns       int    `yaml:"min_conns"`
	MaxConns       int    `yaml:"max_conns"`
	MigrationsPath string `yaml:"migrations_path"`
}

// BusConfig configures the JetStream job queues.
type BusConfig struct {
	URL         string        `yaml:"url"`
	MaxDeliver  int           `yaml:"max_deliver"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffMax  time.Duration `yaml:"backoff_max"`
	Prefetch    int           `yaml:"prefetch"`

	// Concurrency maps queue name to worker count; unlisted queues get 1.
	Concurrency map[string]int `yaml:"concurrency"`

	// EventDetailBatch bounds batch size for the event-detail consumer.
	EventDetailBatch int `yaml:"event_detail_batch"`
}

// RedisConfig configures the cache/lock provider.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// SyncConfig configures sync behavior.
type SyncConfig struct {
	SnapshotPageLimit int           `yaml:"snapshot_page_limit"`
	DefaultStatus     string        `yaml:"default_status"`
	LockTTL           time.Duration `yaml:"lock_ttl"`
	PageLimit         int           `yaml:"page_limit"`
	ScheduleInterval  time.Duration `yaml:"schedule_interval"`
}

// CleanupConfig configures the retention sweep.
type CleanupConfig struct {
	Retention time.Duration `yaml:"retention"`
}
