package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore implements Store with a single JSON file on disk.
// Writes replace the whole file atomically (temp file + rename), so a crash
// mid-write leaves either the old or the new value, never a torn blob.
//
// FileStore is safe for concurrent use within one process. Two processes
// writing the same file are not coordinated.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file store at path. The parent directory is created
// if it does not exist.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	return &FileStore{path: path}, nil
}

// Get returns the value stored under key.
func (f *FileStore) Get(key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, fmt.Errorf("key cannot be empty")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return nil, false, err
	}

	value, exists := values[key]
	if !exists {
		return nil, false, nil
	}
	return []byte(value), true, nil
}

// Set stores value under key, rewriting the file atomically.
func (f *FileStore) Set(key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	values[key] = string(value)

	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal store contents: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}

	return nil
}

// read loads the file contents. A missing file is an empty store.
// Caller must hold the lock.
func (f *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	values := make(map[string]string)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse store file: %w", err)
	}
	return values, nil
}
