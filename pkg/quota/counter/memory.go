package counter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryBackend implements Backend using in-memory storage.
// All data is lost when the process exits. Intended for tests and
// development; production deployments use the sqlite or redis backend.
//
// MemoryBackend is thread-safe and supports concurrent access.
type MemoryBackend struct {
	// counts maps composite key (day:userID) to the query count.
	counts map[string]int

	// loc is the reference timezone for day bucketing.
	loc *time.Location

	mu sync.RWMutex

	// now is swappable for tests.
	now func() time.Time
}

// NewMemoryBackend creates an in-memory counter backend bucketing days in loc.
func NewMemoryBackend(loc *time.Location) *MemoryBackend {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryBackend{
		counts: make(map[string]int),
		loc:    loc,
		now:    time.Now,
	}
}

// CountForToday returns the count recorded for userID today.
func (m *MemoryBackend) CountForToday(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("user id cannot be empty")
	}

	key := m.makeKey(userID)

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.counts[key], nil
}

// Record appends one query for userID to today's bucket.
func (m *MemoryBackend) Record(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id cannot be empty")
	}

	key := m.makeKey(userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.counts[key]++
	return nil
}

// Close releases resources. No-op for the memory backend.
func (m *MemoryBackend) Close() error {
	return nil
}

// Size returns the number of stored day buckets. Useful for tests.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.counts)
}

func (m *MemoryBackend) makeKey(userID string) string {
	return fmt.Sprintf("%s:%s", dayKey(m.now(), m.loc), userID)
}
