package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "quota.daily_limit").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All errors are collected and returned
// together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateQuota(&cfg.Quota)...)
	errs = append(errs, validateCounter(&cfg.Counter)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "cannot be empty",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("must be host:port, got %q", cfg.ListenAddress),
		})
	}

	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "cannot be negative",
		})
	}

	return errs
}

func validateQuota(cfg *QuotaConfig) []FieldError {
	var errs []FieldError

	if cfg.DailyLimit <= 0 {
		errs = append(errs, FieldError{
			Field:   "quota.daily_limit",
			Message: fmt.Sprintf("must be a positive integer, got %d", cfg.DailyLimit),
		})
	}

	if _, err := time.LoadLocation(cfg.ResetTimezone); err != nil {
		errs = append(errs, FieldError{
			Field:   "quota.reset_timezone",
			Message: fmt.Sprintf("unknown timezone %q", cfg.ResetTimezone),
		})
	}

	if cfg.RetryDelay < 0 {
		errs = append(errs, FieldError{
			Field:   "quota.retry_delay",
			Message: "cannot be negative",
		})
	}

	if cfg.FlushSchedule != "" {
		if _, err := cron.ParseStandard(cfg.FlushSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "quota.flush_schedule",
				Message: fmt.Sprintf("invalid cron expression %q", cfg.FlushSchedule),
			})
		}
	}

	return errs
}

func validateCounter(cfg *CounterConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "counter.sqlite.path",
				Message: "required when backend is sqlite",
			})
		}
	case "redis":
		if cfg.Redis.Address == "" {
			errs = append(errs, FieldError{
				Field:   "counter.redis.address",
				Message: "required when backend is redis",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "counter.backend",
			Message: fmt.Sprintf("must be one of memory, sqlite, redis; got %q", cfg.Backend),
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error; got %q", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json or text; got %q", cfg.Logging.Format),
		})
	}

	return errs
}
