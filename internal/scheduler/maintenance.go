package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/tasks"
)

// Job names, as they appear in logs.
const (
	JobAuditCleanup  = "audit_cleanup"
	JobOverdueNotice = "overdue_notice"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Enqueuer hands a task to the background queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
}

// MaintenanceScheduler enqueues periodic housekeeping tasks. It never runs
// the work itself: jobs go through the task queue so that retries and
// timeouts are handled in one place.
type MaintenanceScheduler struct {
	queue         Enqueuer
	cfg           config.Maintenance
	retentionDays int

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
	entries   map[string]cron.EntryID
}

// NewMaintenanceScheduler creates a scheduler for the given schedules.
// An empty schedule disables that job.
func NewMaintenanceScheduler(queue Enqueuer, cfg config.Maintenance, audit config.Audit) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		queue:         queue,
		cfg:           cfg,
		retentionDays: audit.RetentionDays,
		cron:          cron.New(cron.WithParser(cronParser)),
		entries:       make(map[string]cron.EntryID),
	}
}

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

// Start registers the jobs and starts the cron loop. The scheduler stops
// when ctx is cancelled.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if !s.cfg.Enabled {
		log.Printf("Maintenance scheduler: disabled")
		return nil
	}

	jobs := []struct {
		name     string
		schedule string
		task     func() backlite.Task
	}{
		{JobAuditCleanup, s.cfg.AuditCleanupSchedule, s.auditCleanupTask},
		{JobOverdueNotice, s.cfg.OverdueNoticeSchedule, func() backlite.Task { return tasks.OverdueNoticeTask{} }},
	}

	for _, job := range jobs {
		if job.schedule == "" {
			continue
		}
		if err := ValidateSchedule(job.schedule); err != nil {
			return fmt.Errorf("invalid cron schedule '%s' for %s: %w", job.schedule, job.name, err)
		}

		name, build := job.name, job.task
		id, err := s.cron.AddFunc(job.schedule, func() {
			s.enqueue(ctx, name, build())
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", name, err)
		}
		s.entries[name] = id
	}

	s.cron.Start()
	s.isRunning = true

	for name, id := range s.entries {
		log.Printf("Maintenance scheduler: %s next run at %v", name, s.cron.Entry(id).Next.Format(time.RFC3339))
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the cron loop and waits for running jobs to return.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	s.isRunning = false

	log.Printf("Maintenance scheduler: stopped")
}

// IsRunning returns whether the scheduler is active.
func (s *MaintenanceScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Scheduled returns the names of the registered jobs.
func (s *MaintenanceScheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for _, name := range []string{JobAuditCleanup, JobOverdueNotice} {
		if _, ok := s.entries[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

func (s *MaintenanceScheduler) auditCleanupTask() backlite.Task {
	return tasks.CleanupAuditEventsTask{RetentionDays: s.retentionDays}
}

func (s *MaintenanceScheduler) enqueue(ctx context.Context, name string, task backlite.Task) {
	id, err := s.queue.Enqueue(ctx, task)
	if err != nil {
		log.Printf("Maintenance scheduler: failed to enqueue %s: %v", name, err)
		return
	}
	log.Printf("Maintenance scheduler: enqueued %s (task %s)", name, id)
}
