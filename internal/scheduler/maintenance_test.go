package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/tasks"
)

type recordingQueue struct {
	mu    sync.Mutex
	tasks []backlite.Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, task backlite.Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.tasks = append(q.tasks, task)
	return "task-1", nil
}

func maintenanceConfig() config.Maintenance {
	return config.Maintenance{
		Enabled:               true,
		AuditCleanupSchedule:  "30 3 * * *",
		OverdueNoticeSchedule: "0 8 * * *",
	}
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 8 * * *"))
	assert.NoError(t, ValidateSchedule("*/15 * * * 1-5"))
	assert.Error(t, ValidateSchedule("every day"))
	assert.Error(t, ValidateSchedule("0 0 8 * * *"), "seconds field is not accepted")
}

func TestMaintenanceScheduler_StartStop(t *testing.T) {
	s := NewMaintenanceScheduler(&recordingQueue{}, maintenanceConfig(), config.Audit{RetentionDays: 30})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	assert.Equal(t, []string{JobAuditCleanup, JobOverdueNotice}, s.Scheduled())

	require.NoError(t, s.Start(ctx), "second start is a no-op")

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}

func TestMaintenanceScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewMaintenanceScheduler(&recordingQueue{}, maintenanceConfig(), config.Audit{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestMaintenanceScheduler_Disabled(t *testing.T) {
	cfg := maintenanceConfig()
	cfg.Enabled = false
	s := NewMaintenanceScheduler(&recordingQueue{}, cfg, config.Audit{})

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestMaintenanceScheduler_EmptyScheduleSkipsJob(t *testing.T) {
	cfg := maintenanceConfig()
	cfg.AuditCleanupSchedule = ""
	s := NewMaintenanceScheduler(&recordingQueue{}, cfg, config.Audit{})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Equal(t, []string{JobOverdueNotice}, s.Scheduled())
}

func TestMaintenanceScheduler_InvalidSchedule(t *testing.T) {
	cfg := maintenanceConfig()
	cfg.OverdueNoticeSchedule = "whenever"
	s := NewMaintenanceScheduler(&recordingQueue{}, cfg, config.Audit{})

	err := s.Start(context.Background())
	assert.ErrorContains(t, err, JobOverdueNotice)
	assert.False(t, s.IsRunning())
}

func TestMaintenanceScheduler_Enqueue(t *testing.T) {
	queue := &recordingQueue{}
	s := NewMaintenanceScheduler(queue, maintenanceConfig(), config.Audit{RetentionDays: 45})

	s.enqueue(context.Background(), JobAuditCleanup, s.auditCleanupTask())
	require.Len(t, queue.tasks, 1)
	assert.Equal(t, tasks.CleanupAuditEventsTask{RetentionDays: 45}, queue.tasks[0])

	queue.err = errors.New("queue closed")
	assert.NotPanics(t, func() {
		s.enqueue(context.Background(), JobOverdueNotice, tasks.OverdueNoticeTask{})
	})
}
