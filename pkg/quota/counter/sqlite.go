package counter

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend implements Backend using SQLite for persistence.
// This backend provides durable counts across restarts and is suitable for
// single-instance deployments.
//
// SQLiteBackend uses a write-ahead log (WAL) for better concurrent
// performance and keeps one row per (day, user) pair, incremented with an
// upsert so duplicate recording can only over-count, never corrupt a bucket.
type SQLiteBackend struct {
	db        *sql.DB
	loc       *time.Location
	done      chan struct{}
	closeOnce sync.Once

	countStmt  *sql.Stmt
	recordStmt *sql.Stmt

	// now is swappable for tests.
	now func() time.Time
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// Location is the reference timezone for day bucketing.
	// Default: UTC
	Location *time.Location

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// RetentionDays is how many past day buckets to keep.
	// Default: 30
	RetentionDays int

	// CleanupInterval is how often to delete expired day buckets.
	// Default: 1 hour
	CleanupInterval time.Duration
}

// NewSQLiteBackend creates a SQLite counter backend with default settings.
func NewSQLiteBackend(dbPath string, loc *time.Location) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{
		DBPath:   dbPath,
		Location: loc,
	})
}

// NewSQLiteBackendWithConfig creates a SQLite backend with custom configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 30
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Hour
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:   db,
		loc:  cfg.Location,
		done: make(chan struct{}),
		now:  time.Now,
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go backend.cleanupLoop(cfg.RetentionDays, cfg.CleanupInterval)

	return backend, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_counts (
		day TEXT NOT NULL,
		user_id TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		last_updated INTEGER NOT NULL,
		PRIMARY KEY (day, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_query_counts_day ON query_counts(day);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.countStmt, err = s.db.Prepare(`
		SELECT count FROM query_counts
		WHERE day = ? AND user_id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare count statement: %w", err)
	}

	s.recordStmt, err = s.db.Prepare(`
		INSERT INTO query_counts (day, user_id, count, last_updated)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (day, user_id) DO UPDATE SET
			count = count + 1,
			last_updated = excluded.last_updated
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record statement: %w", err)
	}

	return nil
}

// CountForToday returns the count recorded for userID today.
func (s *SQLiteBackend) CountForToday(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("user id cannot be empty")
	}

	var count int
	err := s.countStmt.QueryRowContext(ctx, dayKey(s.now(), s.loc), userID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return count, nil
}

// Record appends one query for userID to today's bucket.
func (s *SQLiteBackend) Record(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id cannot be empty")
	}

	_, err := s.recordStmt.ExecContext(ctx, dayKey(s.now(), s.loc), userID, s.now().Unix())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return nil
}

// Close releases any resources held by the backend.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		if s.countStmt != nil {
			s.countStmt.Close()
		}
		if s.recordStmt != nil {
			s.recordStmt.Close()
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// cleanupLoop periodically deletes day buckets older than the retention period.
func (s *SQLiteBackend) cleanupLoop(retentionDays int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := dayKey(s.now().AddDate(0, 0, -retentionDays), s.loc)
			_, _ = s.db.Exec("DELETE FROM query_counts WHERE day < ?", cutoff)
		case <-s.done:
			return
		}
	}
}
