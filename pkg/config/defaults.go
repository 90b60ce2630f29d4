package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Quota defaults
	DefaultDailyLimit    = 10
	DefaultResetTimezone = "America/New_York"
	DefaultRetryDelay    = 5 * time.Second
	DefaultFlushSchedule = "*/5 * * * *"

	// Counter defaults
	DefaultCounterBackend = "memory"
	DefaultSQLitePath     = "data/counts.db"
	DefaultRedisAddress   = "127.0.0.1:6379"

	// Queue defaults
	DefaultQueuePath = "data/pending_queue.json"

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultMetricsEnabled = true
)

// ApplyDefaults fills unset configuration fields with default values.
// Explicitly configured fields are left untouched.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Quota
	if cfg.Quota.DailyLimit == 0 {
		cfg.Quota.DailyLimit = DefaultDailyLimit
	}
	if cfg.Quota.ResetTimezone == "" {
		cfg.Quota.ResetTimezone = DefaultResetTimezone
	}
	if cfg.Quota.RetryDelay == 0 {
		cfg.Quota.RetryDelay = DefaultRetryDelay
	}
	if cfg.Quota.FlushSchedule == "" {
		cfg.Quota.FlushSchedule = DefaultFlushSchedule
	}

	// Counter
	if cfg.Counter.Backend == "" {
		cfg.Counter.Backend = DefaultCounterBackend
	}
	if cfg.Counter.SQLite.Path == "" {
		cfg.Counter.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Counter.Redis.Address == "" {
		cfg.Counter.Redis.Address = DefaultRedisAddress
	}

	// Queue
	if cfg.Queue.Path == "" {
		cfg.Queue.Path = DefaultQueuePath
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Enabled == nil {
		enabled := DefaultMetricsEnabled
		cfg.Telemetry.Metrics.Enabled = &enabled
	}
}
