package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PendingKey is the fixed store key under which the pending queue lives.
const PendingKey = "quota_pending_queries"

// PendingRecord represents one query that was performed but not yet confirmed
// as durably recorded by the counter backend.
//
// A record exists only between the moment its initial remote recording call
// fails and the moment it is either successfully flushed or abandoned after
// the maximum attempt count.
type PendingRecord struct {
	// ID identifies the record within the local queue, for logging only.
	// It is never sent to the counter backend.
	ID string `json:"id"`

	// UserID is the user the query belongs to.
	UserID string `json:"user_id"`

	// Timestamp is when the query was captured. Informational only; it is
	// not used for deduplication.
	Timestamp time.Time `json:"timestamp"`

	// Attempts is the number of failed flush attempts so far.
	Attempts int `json:"attempts"`
}

// NewPendingRecord creates a pending record for userID captured now.
func NewPendingRecord(userID string) PendingRecord {
	return PendingRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Attempts:  0,
	}
}

// Queue persists an ordered list of pending records as one JSON value under
// PendingKey in a Store. The list is the sole source of truth for "work not
// yet durably recorded" and is always rewritten as a whole.
type Queue struct {
	store  Store
	logger *slog.Logger
}

// New creates a queue backed by store.
func New(store Store) *Queue {
	return &Queue{
		store:  store,
		logger: slog.Default().With("component", "quota.queue"),
	}
}

// Load returns the current pending records in insertion order.
// Store failures are logged and surface as an empty queue; losing the
// resilience queue must never break the caller.
func (q *Queue) Load() []PendingRecord {
	data, exists, err := q.store.Get(PendingKey)
	if err != nil {
		q.logger.Warn("failed to read pending queue", "error", err)
		return nil
	}
	if !exists || len(data) == 0 {
		return nil
	}

	var records []PendingRecord
	if err := json.Unmarshal(data, &records); err != nil {
		q.logger.Warn("discarding corrupt pending queue", "error", err)
		return nil
	}
	return records
}

// Save replaces the persisted queue with records in one write.
func (q *Queue) Save(records []PendingRecord) error {
	if records == nil {
		records = []PendingRecord{}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal pending queue: %w", err)
	}
	if err := q.store.Set(PendingKey, data); err != nil {
		return fmt.Errorf("failed to persist pending queue: %w", err)
	}
	return nil
}

// Append adds record to the end of the persisted queue (read-modify-write of
// the whole value).
func (q *Queue) Append(record PendingRecord) error {
	records := q.Load()
	records = append(records, record)
	return q.Save(records)
}

// Len returns the number of pending records.
func (q *Queue) Len() int {
	return len(q.Load())
}
