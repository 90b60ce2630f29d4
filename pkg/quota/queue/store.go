package queue

import (
	"fmt"
	"sync"
)

// Store is a string-keyed blob store used to persist the pending queue.
// Implementations must be safe for concurrent use within one process.
// Cross-process coordination is not provided; the queue is a resilience
// mechanism, not the authoritative count.
type Store interface {
	// Get returns the value stored under key. The second return value is
	// false if no value exists.
	Get(key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value atomically.
	Set(key string, value []byte) error
}

// MemoryStore implements Store with an in-memory map.
// All data is lost when the process exits. Intended for tests and
// development.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string][]byte),
	}
}

// Get returns the value stored under key.
func (m *MemoryStore) Get(key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, fmt.Errorf("key cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.values[key]
	if !exists {
		return nil, false, nil
	}

	// Copy so callers cannot mutate the stored slice.
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Set stores value under key.
func (m *MemoryStore) Set(key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = stored
	return nil
}
