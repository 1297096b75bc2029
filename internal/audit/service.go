package audit

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/entities"
)

// ActionOverdueNotice is recorded once per overdue loan per notice run.
const ActionOverdueNotice = "overdue_notice"

// Service provides high-level audit logging functionality.
type Service struct {
	repo    *audit.Repository
	pending sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.repo.LogEvent(event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// Wait blocks until all background writes have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// LogLoan records a loan lifecycle event (borrow, return, renew, lost, fine payment).
func (s *Service) LogLoan(ctx context.Context, userID uint, action string, loanID uint, description string, err error) {
	s.LogAsync(s.event(ctx, userID, entities.AuditEventLoan, action, "loan", loanID, description, err))
}

// LogCatalog records a change to the book catalog.
func (s *Service) LogCatalog(ctx context.Context, userID uint, action string, bookID uint, description string, err error) {
	s.LogAsync(s.event(ctx, userID, entities.AuditEventCatalog, action, "book", bookID, description, err))
}

// LogUser records an account administration event.
func (s *Service) LogUser(ctx context.Context, userID uint, action string, targetID uint, description string, err error) {
	s.LogAsync(s.event(ctx, userID, entities.AuditEventUser, action, "user", targetID, description, err))
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(ctx context.Context, userID uint, action string, success bool) {
	event := s.event(ctx, userID, entities.AuditEventAuth, action, "", 0, "", nil)
	if !success {
		event.Status = entities.AuditStatusFailed
	}
	s.LogAsync(event)
}

// LogOverdueNotice records that the borrower of loan was notified. It is
// written synchronously so that a notice run can rely on it for deduplication.
func (s *Service) LogOverdueNotice(loan *entities.Loan, daysOverdue, fineDue int) error {
	event := s.event(context.Background(), loan.UserID, entities.AuditEventNotice, ActionOverdueNotice, "loan", loan.ID,
		"Loan of \""+truncate(loan.Book.Title, 200)+"\" is overdue", nil)

	metadata := map[string]any{
		"book_id":      loan.BookID,
		"due_at":       loan.DueAt.Format(time.RFC3339),
		"days_overdue": daysOverdue,
		"fine_due":     fineDue,
	}
	if mdBytes, e := json.Marshal(metadata); e == nil {
		event.Metadata = string(mdBytes)
	}

	return s.repo.LogEvent(event)
}

// NoticeSentSince reports whether an overdue notice for the loan was recorded after since.
func (s *Service) NoticeSentSince(loanID uint, since time.Time) (bool, error) {
	return s.repo.HasEventSince(ActionOverdueNotice, "loan", loanID, since)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(filter audit.Filter) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(filter)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

func (s *Service) event(ctx context.Context, userID uint, eventType entities.AuditEventType, action, entityType string, entityID uint, description string, err error) *entities.AuditEvent {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   eventType,
		Action:      action,
		Description: truncate(description, 500),
		EntityType:  entityType,
		RequestID:   RequestID(ctx),
		IPAddress:   ClientIP(ctx),
		Status:      entities.AuditStatusSuccess,
	}
	if entityID > 0 {
		id := entityID
		event.EntityID = &id
	}
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
	return event
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
