package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// FlushScheduler runs periodic backlog flushes on a cron schedule, so a
// long-lived process drains queued records even when no traffic and no wake
// signals arrive.
type FlushScheduler struct {
	service  *Service
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewFlushScheduler creates a scheduler that flushes service's pending
// queue per the cron expression in schedule.
func NewFlushScheduler(service *Service, schedule string) *FlushScheduler {
	return &FlushScheduler{
		service:  service,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "quota.scheduler"),
	}
}

// Start begins scheduled flushing.
//
// Common cron expressions:
//   - "*/5 * * * *" - Every 5 minutes
//   - "@hourly"     - Every hour
//
// If the schedule is empty, the scheduler does nothing.
func (f *FlushScheduler) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.schedule == "" {
		f.logger.Info("flush schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(f.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", f.schedule, err)
	}

	_, err := f.cron.AddFunc(f.schedule, func() {
		f.runFlush(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule flush: %w", err)
	}

	f.cron.Start()
	f.running = true

	f.logger.Info("flush scheduler started", "schedule", f.schedule)

	// Stop with the context
	go func() {
		<-ctx.Done()
		f.Stop()
	}()

	return nil
}

// runFlush executes one flush cycle.
func (f *FlushScheduler) runFlush(ctx context.Context) {
	pending := f.service.PendingCount()
	if pending == 0 {
		f.logger.Debug("scheduled flush skipped, queue empty")
		return
	}

	f.logger.Info("starting scheduled flush", "pending", pending)
	f.service.FlushPending(ctx, "")
}

// Stop stops the scheduler and waits for any running flush to complete.
func (f *FlushScheduler) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cron != nil && f.running {
		ctx := f.cron.Stop()
		<-ctx.Done()
		f.running = false
		f.logger.Info("flush scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (f *FlushScheduler) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.running
}

// NextRun returns the next scheduled flush time.
func (f *FlushScheduler) NextRun() *time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cron == nil {
		return nil
	}

	entries := f.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
