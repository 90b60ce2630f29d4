package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("Expected default listen address, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Quota.DailyLimit != DefaultDailyLimit {
		t.Errorf("Expected default daily limit %d, got %d", DefaultDailyLimit, cfg.Quota.DailyLimit)
	}
	if cfg.Quota.ResetTimezone != DefaultResetTimezone {
		t.Errorf("Expected default timezone, got %q", cfg.Quota.ResetTimezone)
	}
	if cfg.Counter.Backend != DefaultCounterBackend {
		t.Errorf("Expected default backend, got %q", cfg.Counter.Backend)
	}
	if cfg.Telemetry.Metrics.Enabled == nil || !*cfg.Telemetry.Metrics.Enabled {
		t.Error("Expected metrics enabled by default")
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := Config{}
	cfg.Quota.DailyLimit = 25
	disabled := false
	cfg.Telemetry.Metrics.Enabled = &disabled

	ApplyDefaults(&cfg)

	if cfg.Quota.DailyLimit != 25 {
		t.Errorf("Expected explicit limit preserved, got %d", cfg.Quota.DailyLimit)
	}
	if *cfg.Telemetry.Metrics.Enabled {
		t.Error("Expected explicit metrics disable preserved")
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: "0.0.0.0:9090"
quota:
  daily_limit: 20
  retry_delay: 2s
counter:
  backend: sqlite
  sqlite:
    path: /tmp/counts.db
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("Expected configured address, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Quota.DailyLimit != 20 {
		t.Errorf("Expected daily limit 20, got %d", cfg.Quota.DailyLimit)
	}
	if cfg.Quota.RetryDelay != 2*time.Second {
		t.Errorf("Expected retry delay 2s, got %v", cfg.Quota.RetryDelay)
	}
	if cfg.Counter.Backend != "sqlite" {
		t.Errorf("Expected sqlite backend, got %q", cfg.Counter.Backend)
	}

	// Unset fields get defaults
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("Expected default read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Quota.ResetTimezone != DefaultResetTimezone {
		t.Errorf("Expected default timezone, got %q", cfg.Quota.ResetTimezone)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not a mapping")
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfigFile(t, `
quota:
  daily_limit: -1
counter:
  backend: dynamodb
`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !strings.Contains(err.Error(), "quota.daily_limit") {
		t.Errorf("Expected daily_limit in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "counter.backend") {
		t.Errorf("Expected backend in error, got %v", err)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
quota:
  daily_limit: 20
`)

	t.Setenv("GANYMEDE_QUOTA_DAILY_LIMIT", "50")
	t.Setenv("GANYMEDE_SERVER_LISTEN_ADDRESS", "0.0.0.0:7070")
	t.Setenv("GANYMEDE_COUNTER_BACKEND", "redis")
	t.Setenv("GANYMEDE_COUNTER_REDIS_ADDRESS", "redis.internal:6379")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides failed: %v", err)
	}

	if cfg.Quota.DailyLimit != 50 {
		t.Errorf("Expected env override 50, got %d", cfg.Quota.DailyLimit)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:7070" {
		t.Errorf("Expected env override address, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Counter.Redis.Address != "redis.internal:6379" {
		t.Errorf("Expected env override redis address, got %q", cfg.Counter.Redis.Address)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "bad listen address",
			mutate: func(c *Config) { c.Server.ListenAddress = "no-port" },
			field:  "server.listen_address",
		},
		{
			name:   "zero daily limit",
			mutate: func(c *Config) { c.Quota.DailyLimit = 0 },
			field:  "quota.daily_limit",
		},
		{
			name:   "unknown timezone",
			mutate: func(c *Config) { c.Quota.ResetTimezone = "Mars/Olympus" },
			field:  "quota.reset_timezone",
		},
		{
			name:   "bad cron expression",
			mutate: func(c *Config) { c.Quota.FlushSchedule = "every now and then" },
			field:  "quota.flush_schedule",
		},
		{
			name:   "unknown backend",
			mutate: func(c *Config) { c.Counter.Backend = "etcd" },
			field:  "counter.backend",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Telemetry.Logging.Level = "loud" },
			field:  "telemetry.logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			ApplyDefaults(&cfg)
			tt.mutate(&cfg)

			err := Validate(&cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Expected error mentioning %q, got %v", tt.field, err)
			}
		})
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		t.Errorf("Expected default configuration to be valid: %v", err)
	}
}

func TestSingleton_SetAndGet(t *testing.T) {
	original := GetConfig()
	defer SetConfig(original)

	var cfg Config
	ApplyDefaults(&cfg)
	SetConfig(&cfg)

	if GetConfig() != &cfg {
		t.Error("Expected GetConfig to return the instance set with SetConfig")
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := writeConfigFile(t, "quota:\n  daily_limit: 10\n")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	reloaded := make(chan struct{}, 1)
	go func() {
		_ = w.Watch(func() error {
			select {
			case reloaded <- struct{}{}:
			default:
			}
			return nil
		})
	}()
	defer w.Stop()

	// Give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("quota:\n  daily_limit: 30\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("Expected reload after config change")
	}
}

func TestWatcher_StopIsIdempotentWhenNotRunning(t *testing.T) {
	path := writeConfigFile(t, "quota:\n  daily_limit: 10\n")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	// Stop before Watch started must not block or panic.
	w.Stop()
}
