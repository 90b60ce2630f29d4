package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/ganymede/pkg/quota/counter"
	"mercator-hq/ganymede/pkg/quota/queue"
)

// Service is the process-wide accounting authority for daily query limits.
//
// One Service should be shared by all callers in a process so they share the
// same pending queue and the same in-flight flush guard; see Default for the
// shared instance.
//
// # Example
//
//	svc := quota.NewService(quota.Config{
//	    Backend:    backend,
//	    QueueStore: store,
//	    DailyLimit: 10,
//	})
//
//	result := svc.Check(ctx, userID)
//	if !result.CanProceed {
//	    // deny the query
//	}
//
//	// ... after the query is processed:
//	svc.RecordReliable(ctx, userID)
type Service struct {
	backend counter.Backend
	pending *queue.Queue
	loc     *time.Location

	// limit is atomic so config hot-reload can adjust it while checks run.
	limit atomic.Int64

	retryDelay time.Duration

	// flushing is the single-flight guard: at most one flush runs at a
	// time for this service.
	flushing atomic.Bool

	// watchOnce guards trigger subscription, once per service lifetime.
	watchOnce sync.Once

	logger  *slog.Logger
	metrics *Metrics

	// now is swappable for tests.
	now func() time.Time
}

// Config contains configuration for the quota service.
type Config struct {
	// Backend is the counter backend owning the authoritative counts.
	// Default: in-memory backend.
	Backend counter.Backend

	// QueueStore persists the pending-record queue.
	// Default: in-memory store.
	QueueStore queue.Store

	// DailyLimit is the fixed daily query cap.
	// Default: DefaultDailyLimit.
	DailyLimit int

	// Location is the reference timezone anchoring the daily reset. All
	// users share the same reset instant regardless of where they are.
	// Default: UTC.
	Location *time.Location

	// RetryDelay is the delay before the first background flush after a
	// failed record. Default: DefaultRetryDelay.
	RetryDelay time.Duration
}

// NewService creates a quota service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Backend == nil {
		cfg.Backend = counter.NewMemoryBackend(cfg.Location)
	}
	if cfg.QueueStore == nil {
		cfg.QueueStore = queue.NewMemoryStore()
	}
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = DefaultDailyLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	s := &Service{
		backend:    cfg.Backend,
		pending:    queue.New(cfg.QueueStore),
		loc:        cfg.Location,
		retryDelay: cfg.RetryDelay,
		logger:     slog.Default().With("component", "quota.service"),
		metrics:    sharedMetrics(),
		now:        time.Now,
	}
	s.limit.Store(int64(cfg.DailyLimit))
	return s
}

// DailyLimit returns the configured daily query cap.
func (s *Service) DailyLimit() int {
	return int(s.limit.Load())
}

// SetDailyLimit changes the daily cap. Takes effect immediately; used by
// config hot-reload.
func (s *Service) SetDailyLimit(limit int) {
	if limit <= 0 {
		return
	}
	s.limit.Store(int64(limit))
	s.logger.Info("daily limit updated", "limit", limit)
}

// CurrentCount returns today's recorded query count for userID.
//
// There is no fallback here: if the backend call fails the error propagates,
// because an inaccurate count must not silently appear accurate. Callers
// that need a safe answer use LimitReached or Check instead.
func (s *Service) CurrentCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrInvalidUserID
	}

	count, err := s.backend.CountForToday(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch query count: %w", err)
	}
	return count, nil
}

// LimitReached reports whether userID has reached the daily cap.
//
// Fail closed: if the count cannot be obtained, the user is treated as
// limited rather than allowing unlimited queries during an outage.
func (s *Service) LimitReached(ctx context.Context, userID string) bool {
	count, err := s.CurrentCount(ctx, userID)
	if err != nil {
		s.logger.Warn("limit check failed, denying", "user_id", userID, "error", err)
		s.metrics.RecordCheck(false, true)
		return true
	}
	return count >= s.DailyLimit()
}

// Check is the primary gate to call before allowing a new query.
//
// On success CanProceed reflects the count against the cap. On any failure
// (empty user ID, backend error) the result is fail-closed with Err
// populated; Check never returns an error alongside the result.
func (s *Service) Check(ctx context.Context, userID string) *CheckResult {
	start := s.now()
	limit := s.DailyLimit()

	result := &CheckResult{
		Limit:     limit,
		NextReset: s.NextResetTime(),
	}

	count, err := s.CurrentCount(ctx, userID)
	if err != nil {
		result.CanProceed = false
		result.LimitReached = true
		result.CurrentCount = 0
		result.Err = err.Error()
		s.metrics.RecordCheck(false, true)
		s.metrics.ObserveCheckDuration(s.now().Sub(start).Seconds())
		return result
	}

	result.CurrentCount = count
	result.CanProceed = count < limit
	result.LimitReached = !result.CanProceed
	s.metrics.RecordCheck(result.CanProceed, false)
	s.metrics.ObserveCheckDuration(s.now().Sub(start).Seconds())
	return result
}

// Record performs one remote record attempt with no retry. This is the
// low-level, non-durable primitive; most callers want RecordReliable.
func (s *Service) Record(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}

	if err := s.backend.Record(ctx, userID); err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}
	return nil
}

// RecordReliable records a query for userID, tolerating backend failures.
//
// It makes one synchronous record attempt. On success it returns true and
// kicks a best-effort background flush of any backlog, which self-heals
// records queued during past outages. On failure it appends a pending
// record to the durable queue, arms a one-shot retry, and returns false.
//
// A false return means "accepted for eventual recording, not confirmed".
// Callers must not block on it and must not re-invoke RecordReliable for
// the same logical query; that would double-count once the queue flushes.
//
// RecordReliable never returns an error. An empty userID returns false
// without enqueueing anything: there is nothing meaningful to retry.
func (s *Service) RecordReliable(ctx context.Context, userID string) bool {
	if userID == "" {
		s.logger.Warn("record requested without user id")
		s.metrics.RecordOutcome("invalid")
		return false
	}

	err := s.backend.Record(ctx, userID)
	if err == nil {
		s.metrics.RecordOutcome("recorded")
		go s.FlushPending(context.Background(), "")
		return true
	}
	s.logger.Warn("record failed, queueing for retry", "user_id", userID, "error", err)

	record := queue.NewPendingRecord(userID)
	if err := s.pending.Append(record); err != nil {
		// Losing the resilience queue is strictly worse than surfacing
		// the write failure to the caller, so it stays best-effort.
		s.logger.Error("failed to persist pending record", "user_id", userID, "error", err)
	}
	s.metrics.RecordOutcome("queued")
	s.metrics.SetPendingRecords(s.pending.Len())

	time.AfterFunc(s.retryDelay, func() {
		s.FlushPending(context.Background(), "")
	})

	return false
}

// FlushPending attempts to deliver queued pending records to the backend.
// If userID is non-empty, only that user's records are attempted; others
// are kept untouched in their original order.
//
// FlushPending is best-effort and never propagates errors. It is
// single-flight: a call while another flush is in progress is a no-op.
// The surviving records are written back in one shot at the end, so a
// crash mid-flush can at worst leave records pending again.
func (s *Service) FlushPending(ctx context.Context, userID string) {
	if !s.flushing.CompareAndSwap(false, true) {
		return
	}
	defer s.flushing.Store(false)

	records := s.pending.Load()
	if len(records) == 0 {
		return
	}

	still := make([]queue.PendingRecord, 0, len(records))
	flushed := 0
	abandoned := 0

	for _, record := range records {
		if userID != "" && record.UserID != userID {
			still = append(still, record)
			continue
		}

		if err := s.backend.Record(ctx, record.UserID); err != nil {
			record.Attempts++
			if record.Attempts >= maxFlushAttempts {
				s.logger.Warn("abandoning pending record",
					"record_id", record.ID,
					"user_id", record.UserID,
					"attempts", record.Attempts,
				)
				abandoned++
				continue
			}
			still = append(still, record)
			continue
		}
		flushed++
	}

	if err := s.pending.Save(still); err != nil {
		s.logger.Error("failed to persist pending queue after flush", "error", err)
	}

	s.metrics.RecordFlush(flushed, abandoned)
	s.metrics.SetPendingRecords(len(still))

	if flushed > 0 || abandoned > 0 {
		s.logger.Info("flushed pending records",
			"flushed", flushed,
			"abandoned", abandoned,
			"remaining", len(still),
		)
	}
}

// PendingCount returns the number of records awaiting flush.
func (s *Service) PendingCount() int {
	return s.pending.Len()
}

// NextResetTime returns the next occurrence of local midnight in the
// service's reference timezone, normalized to UTC at second precision.
// The returned instant is strictly in the future and identical for all
// callers regardless of their machine timezone.
func (s *Service) NextResetTime() time.Time {
	now := s.now().In(s.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	return midnight.AddDate(0, 0, 1).UTC().Truncate(time.Second)
}

// Close releases the counter backend.
func (s *Service) Close() error {
	return s.backend.Close()
}
