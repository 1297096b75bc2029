package lending

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/entities"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordedEvent struct {
	action string
	id     uint
	err    error
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (a *recordingAuditor) LogLoan(_ context.Context, _ uint, action string, loanID uint, _ string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, recordedEvent{action, loanID, err})
}

func (a *recordingAuditor) LogCatalog(_ context.Context, _ uint, action string, bookID uint, _ string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, recordedEvent{action, bookID, err})
}

func (a *recordingAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.action)
	}
	return out
}

type harness struct {
	db      *gorm.DB
	clock   *fakeClock
	svc     *Service
	catalog *Catalog
	auditor *recordingAuditor
	admin   Actor
	alice   Actor
	bob     Actor
	isbn    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.NewSilentDatabase(filepath.Join(t.TempDir(), "lending.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.DefaultLending()
	cfg.LostItemFee = 20

	h := &harness{
		db:      db.DB,
		clock:   &fakeClock{t: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)},
		auditor: &recordingAuditor{},
	}
	h.svc = NewService(db.DB, cfg, WithClock(h.clock.Now), WithAuditor(h.auditor))
	h.catalog = NewCatalog(db.DB, h.auditor)

	h.admin = h.createUser(t, "admin", entities.UserRoleAdmin)
	h.alice = h.createUser(t, "alice", entities.UserRoleMember)
	h.bob = h.createUser(t, "bob", entities.UserRoleMember)
	return h
}

func (h *harness) createUser(t *testing.T, name string, role entities.UserRole) Actor {
	t.Helper()
	user := &entities.User{Username: name, Email: name + "@example.com", Role: role, Active: true}
	require.NoError(t, h.db.Create(user).Error)
	return Actor{UserID: user.ID, Role: role}
}

func (h *harness) addBook(t *testing.T, copies int) *entities.Book {
	t.Helper()
	h.isbn++
	book, err := h.catalog.AddBook(context.Background(), h.admin, NewBook{
		BookDetails: BookDetails{
			Title:  fmt.Sprintf("Book %d", h.isbn),
			Author: "Author",
			ISBN:   fmt.Sprintf("978000000%04d", h.isbn),
		},
		Copies: copies,
	})
	require.NoError(t, err)
	return book
}

func (h *harness) book(t *testing.T, id uint) *entities.Book {
	t.Helper()
	var book entities.Book
	require.NoError(t, h.db.First(&book, id).Error)
	return &book
}

func (h *harness) loan(t *testing.T, id uint) *entities.Loan {
	t.Helper()
	var loan entities.Loan
	require.NoError(t, h.db.First(&loan, id).Error)
	return &loan
}

func (h *harness) borrow(t *testing.T, actor Actor, book *entities.Book) *entities.Loan {
	t.Helper()
	loan, err := h.svc.Borrow(context.Background(), actor, BorrowRequest{BookID: book.ID})
	require.NoError(t, err)
	return loan
}

func requireCopyInvariant(t *testing.T, book *entities.Book) {
	t.Helper()
	require.GreaterOrEqual(t, book.AvailableCopies, 0, "available copies went negative")
	require.LessOrEqual(t, book.AvailableCopies, book.TotalCopies, "available copies exceed total")
}
