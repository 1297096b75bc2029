package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/librarian/internal/tasks"
)

// Task types that can be triggered manually.
const (
	TaskTypeAuditCleanup   = "cleanup_audit_events"
	TaskTypeOverdueNotices = "overdue_notices"
)

// TaskQueue is the part of the task client the controller needs.
type TaskQueue interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// TasksController handles task queue management endpoints.
type TasksController struct {
	queue TaskQueue
}

// NewTasksController creates a new TasksController.
func NewTasksController(queue TaskQueue) *TasksController {
	return &TasksController{queue: queue}
}

// TaskTypeInfo describes an available task type.
type TaskTypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Queue       string `json:"queue"`
}

// ListTaskTypes handles GET /api/tasks/types
// Returns the list of available task types that can be triggered.
func (tc *TasksController) ListTaskTypes(c *gin.Context) {
	types := []TaskTypeInfo{
		{
			Type:        TaskTypeAuditCleanup,
			Description: "Delete audit events older than the retention period",
			Queue:       tasks.CleanupAuditEventsTask{}.Config().Name,
		},
		{
			Type:        TaskTypeOverdueNotices,
			Description: "Record an overdue notice for every loan past its due date",
			Queue:       tasks.OverdueNoticeTask{}.Config().Name,
		},
	}

	c.JSON(http.StatusOK, gin.H{
		"task_types": types,
	})
}

// GetTaskStatus handles GET /api/tasks/:id
// Returns the status of a specific task.
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "task ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.queue.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}
	if status == backlite.TaskStatusNotFound {
		respondNotFound(c, "task")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": tasks.StatusName(status),
	})
}

// RunTaskRequest is the optional request body for running a task.
type RunTaskRequest struct {
	// RetentionDays overrides the audit retention for cleanup_audit_events.
	RetentionDays int `json:"retention_days" binding:"min=0"`
	// Limit caps the number of loans examined by overdue_notices.
	Limit int `json:"limit" binding:"min=0"`
	// IntervalHours is the minimum spacing between two notices for one loan.
	IntervalHours int `json:"interval_hours" binding:"min=0"`
}

// RunTask handles POST /api/tasks/:type/run
// Manually triggers a task of the specified type.
func (tc *TasksController) RunTask(c *gin.Context) {
	taskType := c.Param("type")

	var req RunTaskRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
	}

	var task backlite.Task
	switch taskType {
	case TaskTypeAuditCleanup:
		task = tasks.CleanupAuditEventsTask{RetentionDays: req.RetentionDays}
	case TaskTypeOverdueNotices:
		task = tasks.OverdueNoticeTask{Limit: req.Limit, IntervalHours: req.IntervalHours}
	default:
		respondError(c, http.StatusNotFound, fmt.Sprintf("unknown task type: %s", taskType), "unknown_task_type")
		return
	}

	id, err := tc.queue.Enqueue(c.Request.Context(), task)
	if err != nil {
		respondInternalError(c, err, "enqueue "+taskType)
		return
	}
	log.Printf("Task %s enqueued manually (id=%s)", taskType, id)

	respondAccepted(c, "task enqueued", gin.H{
		"task_id": id,
		"type":    taskType,
	})
}
