package quota

import (
	"errors"
	"time"
)

const (
	// DefaultDailyLimit is the daily query cap applied when no limit is
	// configured.
	DefaultDailyLimit = 10

	// DefaultRetryDelay is how long after a failed record the first
	// background flush is attempted.
	DefaultRetryDelay = 5 * time.Second

	// maxFlushAttempts is the bounded-retry cap: a pending record that has
	// failed this many flush attempts is abandoned, so a permanently
	// invalid user ID or a permanently broken backend cannot grow the
	// queue without bound.
	maxFlushAttempts = 10
)

// Error types for quota operations.
var (
	// ErrInvalidUserID is returned when a counting or recording operation
	// is given a missing or empty user ID.
	ErrInvalidUserID = errors.New("invalid user id")
)

// CheckResult contains the decision and metadata from a limit check.
// It is a computed snapshot and is never persisted.
//
// A CheckResult always carries an authoritative-looking answer: when the
// count cannot be obtained the result is fail-closed (CanProceed=false,
// LimitReached=true) with Err populated, never an error return.
type CheckResult struct {
	// CanProceed indicates whether the user may issue another query.
	CanProceed bool `json:"can_proceed"`

	// LimitReached indicates the daily cap has been hit (or the check
	// failed and the service fell closed).
	LimitReached bool `json:"limit_reached"`

	// CurrentCount is today's recorded count as of the check. Zero when
	// the check failed.
	CurrentCount int `json:"current_count"`

	// Limit is the configured daily cap.
	Limit int `json:"limit"`

	// NextReset is the next daily reset instant, in UTC.
	NextReset time.Time `json:"next_reset"`

	// Err describes the failure that forced a fail-safe deny, if any.
	Err string `json:"error,omitempty"`
}
