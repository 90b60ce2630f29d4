package counter

import (
	"context"
	"errors"
	"time"
)

// Backend defines the interface for daily query-count persistence.
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// CountForToday returns the number of queries recorded for userID in
	// the current day bucket. Returns an error on backend failure; callers
	// must not substitute a count of their own on error.
	CountForToday(ctx context.Context, userID string) (int, error)

	// Record appends one query for userID to the current day bucket.
	// Record must be safe to call more than once for the same logical
	// query; the cost of a duplicate is a bounded over-count, never a
	// corrupted bucket.
	Record(ctx context.Context, userID string) error

	// Close releases any resources held by the backend.
	// The backend should not be used after calling Close.
	Close() error
}

// ErrBackendUnavailable is returned when the counter backend cannot be
// reached or rejects the operation. Callers fail closed on this error.
var ErrBackendUnavailable = errors.New("counter backend unavailable")

// dayKey returns the day bucket for now in loc, formatted as 2006-01-02.
// Every backend buckets by the same reference timezone so all users share
// one reset instant.
func dayKey(now time.Time, loc *time.Location) string {
	return now.In(loc).Format("2006-01-02")
}
