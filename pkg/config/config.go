package config

import "time"

// Config is the root configuration structure for Ganymede.
// It contains all configuration sections for the HTTP server, the quota
// service, the counter backend, the pending queue, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Quota contains configuration for the daily query-limit service.
	Quota QuotaConfig `yaml:"quota"`

	// Counter contains configuration for the counter backend owning the
	// authoritative per-user daily counts.
	Counter CounterConfig `yaml:"counter"`

	// Queue contains configuration for the local durable pending queue.
	Queue QueueConfig `yaml:"queue"`

	// Telemetry contains configuration for observability including
	// logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of
	// the response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before in-flight requests are dropped.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// QuotaConfig contains configuration for the quota service.
type QuotaConfig struct {
	// DailyLimit is the fixed daily query cap shared by all users.
	// This is the one contractual tunable of the limiter.
	// Default: 10
	DailyLimit int `yaml:"daily_limit"`

	// ResetTimezone is the IANA timezone anchoring the daily reset, so
	// all users share one reset instant regardless of their location.
	// Default: "America/New_York"
	ResetTimezone string `yaml:"reset_timezone"`

	// RetryDelay is how long after a failed record the first background
	// flush is attempted.
	// Default: 5s
	RetryDelay time.Duration `yaml:"retry_delay"`

	// FlushSchedule is a cron expression for periodic backlog flushes.
	// Empty disables scheduled flushing.
	// Default: "*/5 * * * *"
	FlushSchedule string `yaml:"flush_schedule"`
}

// CounterConfig contains configuration for the counter backend.
type CounterConfig struct {
	// Backend selects the storage backend.
	// Options: "memory", "sqlite", "redis"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Redis configures the redis backend.
	Redis RedisConfig `yaml:"redis"`
}

// SQLiteConfig contains configuration for the SQLite counter backend.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	// Default: "data/counts.db"
	Path string `yaml:"path"`
}

// RedisConfig contains configuration for the Redis counter backend.
type RedisConfig struct {
	// Address is the Redis server address (host:port).
	// Default: "127.0.0.1:6379"
	Address string `yaml:"address"`

	// Password is the Redis password. Empty for no auth.
	// This should typically be provided via GANYMEDE_COUNTER_REDIS_PASSWORD.
	Password string `yaml:"password"`

	// DB is the Redis database number.
	// Default: 0
	DB int `yaml:"db"`
}

// QueueConfig contains configuration for the pending queue store.
type QueueConfig struct {
	// Path is the path of the JSON file persisting the pending queue.
	// Default: "data/pending_queue.json"
	Path string `yaml:"path"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metrics exposure.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the /metrics endpoint is served.
	// Default: true
	Enabled *bool `yaml:"enabled"`
}
