package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/lending"
)

// Defaults for overdue notice runs.
const (
	DefaultNoticeBatch    = 500
	DefaultNoticeInterval = 24 * time.Hour
)

// OverdueLister returns open loans past their due date, with book and borrower loaded.
type OverdueLister interface {
	ListOverdue(ctx context.Context, limit int) ([]entities.Loan, error)
	Policy() lending.Policy
	Now() time.Time
}

// NoticeRecorder records overdue notices and answers whether one was recently sent.
type NoticeRecorder interface {
	NoticeSentSince(loanID uint, since time.Time) (bool, error)
	LogOverdueNotice(loan *entities.Loan, daysOverdue, fineDue int) error
}

// OverdueNoticeTask records one overdue notice per overdue loan, skipping
// loans that were already noticed within the interval.
type OverdueNoticeTask struct {
	Limit         int `json:"limit"`
	IntervalHours int `json:"interval_hours"`
}

// Config returns the queue configuration for overdue notice tasks.
func (t OverdueNoticeTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "overdue_notices",
		MaxAttempts: 2,
		Backoff:     10 * time.Minute,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration: 72 * time.Hour,
			Data:     &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// NoticeResult summarizes one notice run.
type NoticeResult struct {
	Overdue int
	Sent    int
	Skipped int
}

// SendOverdueNotices runs one notice pass. Notices are idempotent within
// interval, so a retried or duplicated task does not notify twice.
func SendOverdueNotices(ctx context.Context, lister OverdueLister, recorder NoticeRecorder, task OverdueNoticeTask) (NoticeResult, error) {
	var result NoticeResult

	limit := task.Limit
	if limit <= 0 {
		limit = DefaultNoticeBatch
	}
	interval := time.Duration(task.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = DefaultNoticeInterval
	}

	overdue, err := lister.ListOverdue(ctx, limit)
	if err != nil {
		return result, fmt.Errorf("list overdue loans: %w", err)
	}
	result.Overdue = len(overdue)

	now := lister.Now()
	policy := lister.Policy()
	for i := range overdue {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		loan := &overdue[i]

		sent, err := recorder.NoticeSentSince(loan.ID, now.Add(-interval))
		if err != nil {
			return result, fmt.Errorf("check notice for loan %d: %w", loan.ID, err)
		}
		if sent {
			result.Skipped++
			continue
		}

		if err := recorder.LogOverdueNotice(loan, lending.DaysOverdue(loan, now), policy.FineDue(loan, now)); err != nil {
			return result, fmt.Errorf("record notice for loan %d: %w", loan.ID, err)
		}
		result.Sent++
	}

	return result, nil
}

// OverdueNoticeProcessor creates a processor function for OverdueNoticeTask.
func OverdueNoticeProcessor(lister OverdueLister, recorder NoticeRecorder) backlite.QueueProcessor[OverdueNoticeTask] {
	return func(ctx context.Context, task OverdueNoticeTask) error {
		if lister == nil || recorder == nil {
			return fmt.Errorf("overdue notices not configured")
		}

		result, err := SendOverdueNotices(ctx, lister, recorder, task)
		if err != nil {
			return err
		}

		log.Printf("[TASK] Overdue notices: %d overdue, %d sent, %d already notified",
			result.Overdue, result.Sent, result.Skipped)
		return nil
	}
}

// NewOverdueNoticeQueue creates a backlite queue for overdue notice tasks.
func NewOverdueNoticeQueue(lister OverdueLister, recorder NoticeRecorder) backlite.Queue {
	return backlite.NewQueue(OverdueNoticeProcessor(lister, recorder))
}
