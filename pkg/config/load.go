package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention GANYMEDE_SECTION_FIELD (e.g., GANYMEDE_QUOTA_DAILY_LIMIT) and
// always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables use the format GANYMEDE_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("GANYMEDE_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("GANYMEDE_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("GANYMEDE_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("GANYMEDE_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Quota overrides
	if val := os.Getenv("GANYMEDE_QUOTA_DAILY_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Quota.DailyLimit = i
		}
	}
	if val := os.Getenv("GANYMEDE_QUOTA_RESET_TIMEZONE"); val != "" {
		cfg.Quota.ResetTimezone = val
	}
	if val := os.Getenv("GANYMEDE_QUOTA_RETRY_DELAY"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Quota.RetryDelay = d
		}
	}
	if val := os.Getenv("GANYMEDE_QUOTA_FLUSH_SCHEDULE"); val != "" {
		cfg.Quota.FlushSchedule = val
	}

	// Counter overrides
	if val := os.Getenv("GANYMEDE_COUNTER_BACKEND"); val != "" {
		cfg.Counter.Backend = val
	}
	if val := os.Getenv("GANYMEDE_COUNTER_SQLITE_PATH"); val != "" {
		cfg.Counter.SQLite.Path = val
	}
	if val := os.Getenv("GANYMEDE_COUNTER_REDIS_ADDRESS"); val != "" {
		cfg.Counter.Redis.Address = val
	}
	if val := os.Getenv("GANYMEDE_COUNTER_REDIS_PASSWORD"); val != "" {
		cfg.Counter.Redis.Password = val
	}
	if val := os.Getenv("GANYMEDE_COUNTER_REDIS_DB"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Counter.Redis.DB = i
		}
	}

	// Queue overrides
	if val := os.Getenv("GANYMEDE_QUEUE_PATH"); val != "" {
		cfg.Queue.Path = val
	}

	// Telemetry overrides
	if val := os.Getenv("GANYMEDE_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("GANYMEDE_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("GANYMEDE_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
}
