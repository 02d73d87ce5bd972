package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one type swept on every scheduled run.
type Job struct {
	Type   string
	Policy Policy
}

// Scheduler runs batch sweeps of configured types on a cron schedule.
type Scheduler struct {
	sweeper *Sweeper
	cron    *cron.Cron
	logger  *slog.Logger

	mu       sync.Mutex
	schedule string
	jobs     []Job
	entry    cron.EntryID
	running  bool
}

// NewScheduler creates a scheduler running jobs through sweeper.
func NewScheduler(sweeper *Sweeper, schedule string, jobs []Job, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sweeper:  sweeper,
		cron:     cron.New(),
		logger:   logger.With("component", "retention.scheduler"),
		schedule: schedule,
		jobs:     jobs,
	}
}

// Start begins scheduled sweeps. The scheduler stops when ctx is cancelled
// or Stop is called.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "0 */6 * * *"  - Every 6 hours
//   - "*/15 * * * *" - Every 15 minutes
//
// If the schedule is empty, the scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping scheduler")
		return nil
	}

	entry, err := s.cron.AddFunc(s.schedule, func() { _ = s.RunOnce(ctx) })
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = entry

	s.cron.Start()
	s.running = true

	s.logger.Info("sweep scheduler started",
		"schedule", s.schedule,
		"types", len(s.jobs),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Update replaces the schedule and jobs, for configuration reloads.
// A running scheduler is rescheduled immediately.
func (s *Scheduler) Update(ctx context.Context, schedule string, jobs []Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	s.jobs = jobs
	if schedule == s.schedule || !s.running {
		s.schedule = schedule
		return nil
	}

	entry, err := s.cron.AddFunc(schedule, func() { _ = s.RunOnce(ctx) })
	if err != nil {
		return fmt.Errorf("failed to reschedule: %w", err)
	}
	s.cron.Remove(s.entry)
	s.entry = entry
	s.schedule = schedule

	s.logger.Info("sweep schedule updated", "schedule", schedule, "types", len(jobs))
	return nil
}

// RunOnce sweeps every job's type once and returns the joined errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	s.logger.Info("starting scheduled sweep", "types", len(jobs))

	var (
		errs    []error
		deleted int64
	)
	for _, job := range jobs {
		if !job.Policy.Enabled() {
			s.logger.Debug("retention disabled for type, skipping", "type", job.Type)
			continue
		}
		batch, err := s.sweeper.SweepType(ctx, job.Type, job.Policy, false)
		if batch != nil {
			deleted += batch.Deleted
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Error("scheduled sweep finished with errors",
			"deleted", deleted,
			"error", err,
		)
		return err
	}

	s.logger.Info("scheduled sweep completed", "deleted", deleted)
	return nil
}

// Stop stops the scheduler and waits for any running sweep to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("sweep scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled sweep time, or nil if none is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	next := s.cron.Entry(s.entry).Next
	return &next
}
