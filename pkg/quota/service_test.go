package quota

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/ganymede/pkg/quota/queue"
)

// fakeBackend is a controllable counter backend for tests.
type fakeBackend struct {
	mu           sync.Mutex
	counts       map[string]int
	countErr     error
	recordErr    error
	failuresLeft int // when > 0, Record fails and decrements
	recordCalls  []string
	gate         chan struct{} // when set, Record blocks until the gate closes
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{counts: make(map[string]int)}
}

func (f *fakeBackend) CountForToday(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.counts[userID], nil
}

func (f *fakeBackend) Record(ctx context.Context, userID string) error {
	f.mu.Lock()
	f.recordCalls = append(f.recordCalls, userID)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return errors.New("backend down")
	}
	if f.recordErr != nil {
		return f.recordErr
	}
	f.counts[userID]++
	return nil
}

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.recordCalls))
	copy(out, f.recordCalls)
	return out
}

func newTestService(t *testing.T, backend *fakeBackend, limit int) *Service {
	t.Helper()
	return NewService(Config{
		Backend:    backend,
		QueueStore: queue.NewMemoryStore(),
		DailyLimit: limit,
		Location:   time.UTC,
		// Long enough that the armed retry never races with assertions;
		// the retry-timer test builds its own service.
		RetryDelay: time.Hour,
	})
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// ============================================================================
// Checking
// ============================================================================

func TestCheck_UnderLimit(t *testing.T) {
	backend := newFakeBackend()
	backend.counts["u1"] = 5
	svc := newTestService(t, backend, 10)

	result := svc.Check(context.Background(), "u1")

	if !result.CanProceed {
		t.Error("Expected CanProceed=true under the limit")
	}
	if result.LimitReached {
		t.Error("Expected LimitReached=false under the limit")
	}
	if result.CurrentCount != 5 {
		t.Errorf("Expected CurrentCount=5, got %d", result.CurrentCount)
	}
	if result.Limit != 10 {
		t.Errorf("Expected Limit=10, got %d", result.Limit)
	}
	if result.Err != "" {
		t.Errorf("Expected no error, got %q", result.Err)
	}
}

func TestCheck_AtLimit(t *testing.T) {
	backend := newFakeBackend()
	backend.counts["u1"] = 10
	svc := newTestService(t, backend, 10)

	result := svc.Check(context.Background(), "u1")

	if result.CanProceed {
		t.Error("Expected CanProceed=false at the limit")
	}
	if !result.LimitReached {
		t.Error("Expected LimitReached=true at the limit")
	}
	if result.CurrentCount != 10 {
		t.Errorf("Expected CurrentCount=10, got %d", result.CurrentCount)
	}
	if result.Err != "" {
		t.Errorf("Expected no error, got %q", result.Err)
	}
}

func TestLimitReached_Boundary(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(t, backend, 10)
	ctx := context.Background()

	backend.counts["u1"] = 9
	if svc.LimitReached(ctx, "u1") {
		t.Error("Expected limit not reached at count=limit-1")
	}

	backend.counts["u1"] = 10
	if !svc.LimitReached(ctx, "u1") {
		t.Error("Expected limit reached at count=limit")
	}
}

func TestCheck_FailsClosedOnBackendError(t *testing.T) {
	backend := newFakeBackend()
	backend.countErr = errors.New("connection refused")
	svc := newTestService(t, backend, 10)
	ctx := context.Background()

	if !svc.LimitReached(ctx, "u1") {
		t.Error("Expected LimitReached=true when the count is unavailable")
	}

	result := svc.Check(ctx, "u1")
	if result.CanProceed {
		t.Error("Expected CanProceed=false when the count is unavailable")
	}
	if !result.LimitReached {
		t.Error("Expected LimitReached=true when the count is unavailable")
	}
	if result.CurrentCount != 0 {
		t.Errorf("Expected CurrentCount=0 on failure, got %d", result.CurrentCount)
	}
	if result.Err == "" {
		t.Error("Expected Err to be populated on failure")
	}
	if !strings.Contains(result.Err, "connection refused") {
		t.Errorf("Expected Err to carry the cause, got %q", result.Err)
	}
}

func TestCheck_EmptyUserIDFailsClosed(t *testing.T) {
	svc := newTestService(t, newFakeBackend(), 10)

	result := svc.Check(context.Background(), "")
	if result.CanProceed {
		t.Error("Expected CanProceed=false for empty user id")
	}
	if result.Err == "" {
		t.Error("Expected Err to be populated for empty user id")
	}
}

func TestCurrentCount_PropagatesErrors(t *testing.T) {
	backend := newFakeBackend()
	backend.countErr = errors.New("boom")
	svc := newTestService(t, backend, 10)

	if _, err := svc.CurrentCount(context.Background(), "u1"); err == nil {
		t.Error("Expected error to propagate from CurrentCount")
	}
	if _, err := svc.CurrentCount(context.Background(), ""); !errors.Is(err, ErrInvalidUserID) {
		t.Errorf("Expected ErrInvalidUserID for empty user id, got %v", err)
	}
}

// ============================================================================
// Recording
// ============================================================================

func TestRecordReliable_Success(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(t, backend, 10)

	if !svc.RecordReliable(context.Background(), "u1") {
		t.Error("Expected true when the backend accepts the record")
	}
	if svc.PendingCount() != 0 {
		t.Errorf("Expected empty queue after success, got %d", svc.PendingCount())
	}

	count, err := svc.CurrentCount(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CurrentCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected count=1 after record, got %d", count)
	}
}

func TestRecordReliable_FailureQueues(t *testing.T) {
	backend := newFakeBackend()
	backend.recordErr = errors.New("backend down")
	svc := newTestService(t, backend, 10)

	if svc.RecordReliable(context.Background(), "u1") {
		t.Error("Expected false when the backend rejects the record")
	}

	records := svc.pending.Load()
	if len(records) != 1 {
		t.Fatalf("Expected exactly 1 queued record, got %d", len(records))
	}
	if records[0].UserID != "u1" {
		t.Errorf("Expected queued record for u1, got %s", records[0].UserID)
	}
	if records[0].Attempts != 0 {
		t.Errorf("Expected Attempts=0 on a fresh record, got %d", records[0].Attempts)
	}
}

func TestRecordReliable_EmptyUserIDNotQueued(t *testing.T) {
	svc := newTestService(t, newFakeBackend(), 10)

	if svc.RecordReliable(context.Background(), "") {
		t.Error("Expected false for empty user id")
	}
	if svc.PendingCount() != 0 {
		t.Error("Expected nothing queued for empty user id")
	}
}

func TestRecordReliable_RetryTimerDrainsQueue(t *testing.T) {
	backend := newFakeBackend()
	backend.failuresLeft = 1
	svc := NewService(Config{
		Backend:    backend,
		QueueStore: queue.NewMemoryStore(),
		DailyLimit: 10,
		Location:   time.UTC,
		RetryDelay: 10 * time.Millisecond,
	})

	if svc.RecordReliable(context.Background(), "u1") {
		t.Error("Expected false on first attempt")
	}
	if svc.PendingCount() != 1 {
		t.Fatalf("Expected 1 pending record, got %d", svc.PendingCount())
	}

	// The armed retry fires after retryDelay and the backend has recovered
	waitFor(t, 2*time.Second, func() bool { return svc.PendingCount() == 0 })

	count, _ := svc.CurrentCount(context.Background(), "u1")
	if count != 1 {
		t.Errorf("Expected the queued record to be delivered once, got count=%d", count)
	}
}

func TestRecordReliable_SuccessFlushesBacklog(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(t, backend, 10)

	// Backlog from a past outage, for a different user
	if err := svc.pending.Append(queue.NewPendingRecord("u2")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if !svc.RecordReliable(context.Background(), "u1") {
		t.Fatal("Expected record to succeed")
	}

	waitFor(t, 2*time.Second, func() bool { return svc.PendingCount() == 0 })

	count, _ := svc.CurrentCount(context.Background(), "u2")
	if count != 1 {
		t.Errorf("Expected backlog for u2 to be flushed, got count=%d", count)
	}
}

func TestRecord_NoRetry(t *testing.T) {
	backend := newFakeBackend()
	backend.recordErr = errors.New("backend down")
	svc := newTestService(t, backend, 10)

	if err := svc.Record(context.Background(), "u1"); err == nil {
		t.Error("Expected error to propagate from Record")
	}
	if svc.PendingCount() != 0 {
		t.Error("Expected Record to not queue on failure")
	}
	if err := svc.Record(context.Background(), ""); !errors.Is(err, ErrInvalidUserID) {
		t.Errorf("Expected ErrInvalidUserID, got %v", err)
	}
}

// ============================================================================
// Flushing
// ============================================================================

func TestFlushPending_BoundedRetry(t *testing.T) {
	backend := newFakeBackend()
	backend.recordErr = errors.New("permanently down")
	svc := newTestService(t, backend, 10)

	if err := svc.pending.Append(queue.NewPendingRecord("u1")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	ctx := context.Background()
	for i := 1; i <= 9; i++ {
		svc.FlushPending(ctx, "")
		records := svc.pending.Load()
		if len(records) != 1 {
			t.Fatalf("Expected record to survive flush %d, queue has %d", i, len(records))
		}
		if records[0].Attempts != i {
			t.Fatalf("Expected Attempts=%d after flush %d, got %d", i, i, records[0].Attempts)
		}
	}

	// The 10th failed attempt abandons the record, never fewer
	svc.FlushPending(ctx, "")
	if svc.PendingCount() != 0 {
		t.Fatalf("Expected record abandoned after 10 failed attempts, queue has %d", svc.PendingCount())
	}

	// An eleventh flush does not touch the backend
	callsBefore := len(backend.calls())
	svc.FlushPending(ctx, "")
	if len(backend.calls()) != callsBefore {
		t.Error("Expected no further attempts after abandonment")
	}
}

func TestFlushPending_ScopedToUser(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(t, backend, 10)

	r1 := queue.NewPendingRecord("u1")
	r2 := queue.NewPendingRecord("u2")
	r2.Attempts = 3
	r3 := queue.NewPendingRecord("u1")
	if err := svc.pending.Save([]queue.PendingRecord{r1, r2, r3}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	svc.FlushPending(context.Background(), "u1")

	records := svc.pending.Load()
	if len(records) != 1 {
		t.Fatalf("Expected only u2's record to remain, got %d records", len(records))
	}
	if records[0].UserID != "u2" {
		t.Errorf("Expected remaining record for u2, got %s", records[0].UserID)
	}
	if records[0].Attempts != 3 {
		t.Errorf("Expected u2's attempts untouched at 3, got %d", records[0].Attempts)
	}

	for _, call := range backend.calls() {
		if call != "u1" {
			t.Errorf("Expected only u1 to be attempted, saw %s", call)
		}
	}

	count, _ := svc.CurrentCount(context.Background(), "u1")
	if count != 2 {
		t.Errorf("Expected both u1 records delivered, got count=%d", count)
	}
}

func TestFlushPending_SingleFlight(t *testing.T) {
	backend := newFakeBackend()
	backend.gate = make(chan struct{})
	svc := newTestService(t, backend, 10)

	if err := svc.pending.Append(queue.NewPendingRecord("u1")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		svc.FlushPending(context.Background(), "")
		close(done)
	}()

	<-started
	waitFor(t, 2*time.Second, func() bool { return len(backend.calls()) == 1 })

	// A second flush while the first is blocked inside the backend is a
	// no-op: the queue is untouched and the backend sees no extra call.
	svc.FlushPending(context.Background(), "")
	if got := len(backend.calls()); got != 1 {
		t.Errorf("Expected re-entrant flush to be a no-op, backend saw %d calls", got)
	}

	close(backend.gate)
	<-done

	if svc.PendingCount() != 0 {
		t.Errorf("Expected queue drained after the first flush, got %d", svc.PendingCount())
	}
}

func TestFlushPending_RetriesThenSucceeds(t *testing.T) {
	backend := newFakeBackend()
	backend.failuresLeft = 4 // initial record + three flush attempts
	svc := newTestService(t, backend, 10)
	ctx := context.Background()

	if svc.RecordReliable(ctx, "u1") {
		t.Fatal("Expected initial record to fail")
	}

	for i := 1; i <= 3; i++ {
		svc.FlushPending(ctx, "")
		records := svc.pending.Load()
		if len(records) != 1 {
			t.Fatalf("Expected record still queued after flush %d", i)
		}
		if records[0].Attempts != i {
			t.Fatalf("Expected Attempts=%d after flush %d, got %d", i, i, records[0].Attempts)
		}
	}

	// Fourth flush succeeds
	svc.FlushPending(ctx, "")
	if svc.PendingCount() != 0 {
		t.Fatalf("Expected queue empty after successful flush, got %d", svc.PendingCount())
	}

	count, _ := svc.CurrentCount(ctx, "u1")
	if count != 1 {
		t.Errorf("Expected exactly one delivered record, got count=%d", count)
	}
}

// ============================================================================
// Reset time
// ============================================================================

func TestNextResetTime_StrictlyFuture(t *testing.T) {
	svc := newTestService(t, newFakeBackend(), 10)

	reset := svc.NextResetTime()
	if !reset.After(time.Now()) {
		t.Errorf("Expected reset time in the future, got %v", reset)
	}
	if reset.Location() != time.UTC {
		t.Errorf("Expected UTC-normalized reset time, got %v", reset.Location())
	}
	if reset.Nanosecond() != 0 {
		t.Errorf("Expected second precision, got %v", reset)
	}
}

func TestNextResetTime_AnchoredToReferenceTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone database unavailable: %v", err)
	}

	svc := NewService(Config{
		Backend:    newFakeBackend(),
		QueueStore: queue.NewMemoryStore(),
		DailyLimit: 10,
		Location:   loc,
	})

	// 2026-03-10 23:30 UTC is 18:30 or 19:30 in New York; next New York
	// midnight is 2026-03-11 00:00-04:00 = 04:00 UTC.
	svc.now = func() time.Time {
		return time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	}

	reset := svc.NextResetTime()
	want := time.Date(2026, 3, 11, 4, 0, 0, 0, time.UTC)
	if !reset.Equal(want) {
		t.Errorf("Expected reset at %v, got %v", want, reset)
	}
	if !reset.After(svc.now()) {
		t.Error("Expected reset strictly after now")
	}
}

func TestNextResetTime_JustBeforeMidnight(t *testing.T) {
	svc := newTestService(t, newFakeBackend(), 10)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)
	}

	reset := svc.NextResetTime()
	want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if !reset.Equal(want) {
		t.Errorf("Expected reset at %v, got %v", want, reset)
	}
}

// ============================================================================
// Configuration and singleton
// ============================================================================

func TestSetDailyLimit(t *testing.T) {
	backend := newFakeBackend()
	backend.counts["u1"] = 5
	svc := newTestService(t, backend, 10)
	ctx := context.Background()

	if svc.LimitReached(ctx, "u1") {
		t.Error("Expected limit not reached at 5/10")
	}

	svc.SetDailyLimit(5)
	if !svc.LimitReached(ctx, "u1") {
		t.Error("Expected limit reached at 5/5 after update")
	}

	// Invalid limits are ignored
	svc.SetDailyLimit(0)
	if svc.DailyLimit() != 5 {
		t.Errorf("Expected limit unchanged at 5, got %d", svc.DailyLimit())
	}
}

func TestDefault_SharedInstance(t *testing.T) {
	svc := newTestService(t, newFakeBackend(), 10)
	SetDefault(svc)
	defer SetDefault(nil)

	if Default() != svc {
		t.Error("Expected Default to return the instance set with SetDefault")
	}
	if Default() != Default() {
		t.Error("Expected Default to be stable")
	}
}

// ============================================================================
// Triggers
// ============================================================================

func TestWatchTriggers_WakeFlushesQueue(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(t, backend, 10)

	if err := svc.pending.Append(queue.NewPendingRecord("u1")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	connectivity := NewSignal()
	done := make(chan struct{})
	defer close(done)

	svc.WatchTriggers(done, connectivity)
	connectivity.Wake()

	waitFor(t, 2*time.Second, func() bool { return svc.PendingCount() == 0 })

	count, _ := svc.CurrentCount(context.Background(), "u1")
	if count != 1 {
		t.Errorf("Expected queued record delivered after wake, got count=%d", count)
	}
}

func TestWatchTriggers_SubscribesOnce(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(t, backend, 10)

	first := NewSignal()
	second := NewSignal()
	done := make(chan struct{})
	defer close(done)

	svc.WatchTriggers(done, first)
	// Second registration is ignored; waking its signal must not flush.
	svc.WatchTriggers(done, second)

	if err := svc.pending.Append(queue.NewPendingRecord("u1")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	second.Wake()
	time.Sleep(50 * time.Millisecond)
	if svc.PendingCount() != 1 {
		t.Error("Expected ignored notifier to not trigger a flush")
	}

	first.Wake()
	waitFor(t, 2*time.Second, func() bool { return svc.PendingCount() == 0 })
}

// ============================================================================
// Scheduler
// ============================================================================

func TestFlushScheduler_InvalidSchedule(t *testing.T) {
	svc := newTestService(t, newFakeBackend(), 10)
	sched := NewFlushScheduler(svc, "not a cron expression")

	if err := sched.Start(context.Background()); err == nil {
		t.Error("Expected error for invalid cron expression")
	}
}

func TestFlushScheduler_EmptyScheduleIsNoop(t *testing.T) {
	svc := newTestService(t, newFakeBackend(), 10)
	sched := NewFlushScheduler(svc, "")

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if sched.IsRunning() {
		t.Error("Expected scheduler to stay stopped with empty schedule")
	}
}

func TestFlushScheduler_StartStop(t *testing.T) {
	svc := newTestService(t, newFakeBackend(), 10)
	sched := NewFlushScheduler(svc, "*/5 * * * *")

	ctx, cancel := context.WithCancel(context.Background())
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !sched.IsRunning() {
		t.Error("Expected scheduler running after Start")
	}
	if sched.NextRun() == nil {
		t.Error("Expected a next run time while running")
	}

	cancel()
	waitFor(t, 2*time.Second, func() bool { return !sched.IsRunning() })
}
