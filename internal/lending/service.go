// Package lending implements the loan lifecycle: borrowing, returning,
// renewing and losing copies of catalog books, plus the catalog
// administration that has to respect outstanding loans.
//
// Every operation runs in a single database transaction. Copy counters move
// only through the conditional updates of the books repository and loan
// records only through guarded transitions of the loans repository, so the
// invariants hold under concurrent requests without read-then-write races.
package lending

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/database/loans"
	"github.com/mrlokans/librarian/internal/database/users"
	"github.com/mrlokans/librarian/internal/entities"
)

// Audit actions recorded for loan operations.
const (
	ActionBorrow  = "loan_borrow"
	ActionReturn  = "loan_return"
	ActionRenew   = "loan_renew"
	ActionLost    = "loan_lost"
	ActionPayFine = "loan_pay_fine"
)

// Auditor receives a record of every mutating operation, successful or not.
type Auditor interface {
	LogLoan(ctx context.Context, userID uint, action string, loanID uint, description string, err error)
	LogCatalog(ctx context.Context, userID uint, action string, bookID uint, description string, err error)
}

type noopAuditor struct{}

func (noopAuditor) LogLoan(context.Context, uint, string, uint, string, error)    {}
func (noopAuditor) LogCatalog(context.Context, uint, string, uint, string, error) {}

// BorrowRequest is the input of Borrow. A nil DueAt means the default loan period.
type BorrowRequest struct {
	BookID uint
	DueAt  *time.Time
}

// LoanQuery filters ListLoans. Members only ever see their own loans.
type LoanQuery struct {
	UserID    uint
	BookID    uint
	Status    string
	DueAfter  *time.Time
	DueBefore *time.Time
	Limit     int
	Offset    int
}

// Service runs loan lifecycle operations.
type Service struct {
	db      *gorm.DB
	policy  Policy
	retries int
	now     func() time.Time
	auditor Auditor
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now, for deterministic due dates and fines.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAuditor sets the audit sink.
func WithAuditor(a Auditor) Option {
	return func(s *Service) {
		if a != nil {
			s.auditor = a
		}
	}
}

func NewService(db *gorm.DB, cfg config.Lending, opts ...Option) *Service {
	s := &Service{
		db:      db,
		policy:  NewPolicy(cfg),
		retries: cfg.ConflictRetries,
		now:     time.Now,
		auditor: noopAuditor{},
	}
	if s.retries <= 0 {
		s.retries = config.DefaultLending().ConflictRetries
	}
	for _, opt := range opts {
		opt(s)
	}

	// Timestamps are stored as text, so they are kept in one zone for
	// due-date comparisons in SQL to order correctly.
	clock := s.now
	s.now = func() time.Time { return clock().UTC() }
	return s
}

// Policy returns the lending rules in effect.
func (s *Service) Policy() Policy {
	return s.policy
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time {
	return s.now()
}

// Borrow opens a loan of one copy of the requested book for actor.
func (s *Service) Borrow(ctx context.Context, actor Actor, req BorrowRequest) (*entities.Loan, error) {
	now := s.now()
	var loan *entities.Loan

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inventory := books.NewRepository(tx)
		ledger := loans.NewRepository(tx)

		due, err := s.policy.DueDate(req.DueAt, now)
		if err != nil {
			return err
		}

		user, err := users.NewRepository(tx).GetUserByID(actor.UserID)
		if errors.Is(err, users.ErrUserNotFound) {
			return fail(ErrUserNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}

		book, err := inventory.GetByID(req.BookID)
		if errors.Is(err, books.ErrBookNotFound) {
			return fail(ErrBookNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load book: %w", err)
		}

		active, err := ledger.CountActive(user.ID)
		if err != nil {
			return fmt.Errorf("failed to count active loans: %w", err)
		}
		_, err = ledger.FindActive(user.ID, book.ID)
		hasLoan := err == nil
		if err != nil && !errors.Is(err, loans.ErrLoanNotFound) {
			return fmt.Errorf("failed to look up open loan: %w", err)
		}

		if err := s.policy.CanBorrow(user, book, active, hasLoan); err != nil {
			return err
		}

		reserved, err := inventory.ReserveCopy(book.ID)
		if err != nil {
			return fmt.Errorf("failed to reserve copy: %w", err)
		}
		if !reserved {
			return fail(ErrUnavailable)
		}

		loan = &entities.Loan{
			UserID:     user.ID,
			BookID:     book.ID,
			BorrowedAt: now,
			DueAt:      due,
			Status:     entities.LoanStatusBorrowed,
		}
		if err := ledger.Create(loan); err != nil {
			if database.IsDuplicateKey(err) {
				return fail(ErrDuplicateLoan)
			}
			return fmt.Errorf("failed to create loan: %w", err)
		}

		return s.attachBook(tx, loan)
	})

	var loanID uint
	if loan != nil && err == nil {
		loanID = loan.ID
	}
	s.auditor.LogLoan(ctx, actor.UserID, ActionBorrow, loanID, fmt.Sprintf("Borrow book %d", req.BookID), err)
	if err != nil {
		return nil, err
	}

	log.Printf("Loan %d: user %d borrowed book %d, due %s", loan.ID, loan.UserID, loan.BookID, loan.DueAt.Format(time.RFC3339))
	return loan, nil
}

// Return closes a borrowed loan, charges any uncharged overdue days and puts
// the copy back on the shelf.
func (s *Service) Return(ctx context.Context, actor Actor, loanID uint) (*entities.Loan, error) {
	loan, err := s.transition(ctx, loanID, func(tx *gorm.DB, loan *entities.Loan, now time.Time) (map[string]interface{}, error) {
		if err := s.policy.CanReturn(loan, actor); err != nil {
			return nil, err
		}
		fine, through := s.policy.Accrue(loan, now)
		return map[string]interface{}{
			"status":               entities.LoanStatusReturned,
			"returned_at":          now,
			"fine":                 loan.Fine + fine,
			"fine_accrued_through": through,
		}, nil
	}, func(tx *gorm.DB, loan *entities.Loan) error {
		released, err := books.NewRepository(tx).ReleaseCopy(loan.BookID)
		if err != nil {
			return fmt.Errorf("failed to release copy: %w", err)
		}
		if !released {
			log.Printf("Warning: book %d already has all copies available on return of loan %d", loan.BookID, loan.ID)
		}
		return nil
	})

	s.auditor.LogLoan(ctx, actor.UserID, ActionReturn, loanID, fmt.Sprintf("Return loan %d", loanID), err)
	if err != nil {
		return nil, err
	}
	if loan.Fine > 0 {
		log.Printf("Loan %d returned with fine %d", loan.ID, loan.Fine)
	}
	return loan, nil
}

// Renew extends the due date of a borrowed loan by one renewal period. If
// the loan is already overdue, the elapsed overdue days are charged now.
func (s *Service) Renew(ctx context.Context, actor Actor, loanID uint) (*entities.Loan, error) {
	loan, err := s.transition(ctx, loanID, func(tx *gorm.DB, loan *entities.Loan, now time.Time) (map[string]interface{}, error) {
		if err := s.policy.CanRenew(loan, actor); err != nil {
			return nil, err
		}
		fine, through := s.policy.Accrue(loan, now)
		return map[string]interface{}{
			"due_at":               s.policy.RenewedDueDate(loan),
			"renewals":             loan.Renewals + 1,
			"fine":                 loan.Fine + fine,
			"fine_accrued_through": through,
		}, nil
	}, nil)

	s.auditor.LogLoan(ctx, actor.UserID, ActionRenew, loanID, fmt.Sprintf("Renew loan %d", loanID), err)
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// MarkLost closes a borrowed loan whose copy will not come back. The
// borrower is charged the overdue days so far plus the lost item fee, and
// the copy leaves the inventory.
func (s *Service) MarkLost(ctx context.Context, actor Actor, loanID uint) (*entities.Loan, error) {
	loan, err := s.transition(ctx, loanID, func(tx *gorm.DB, loan *entities.Loan, now time.Time) (map[string]interface{}, error) {
		if err := s.policy.CanMarkLost(loan, actor); err != nil {
			return nil, err
		}
		fine, through := s.policy.Accrue(loan, now)
		return map[string]interface{}{
			"status":               entities.LoanStatusLost,
			"fine":                 loan.Fine + fine + s.policy.LostItemFee,
			"fine_accrued_through": through,
		}, nil
	}, func(tx *gorm.DB, loan *entities.Loan) error {
		retired, err := books.NewRepository(tx).RetireCopy(loan.BookID)
		if err != nil {
			return fmt.Errorf("failed to retire copy: %w", err)
		}
		if !retired {
			log.Printf("Warning: book %d has no copy on loan to retire for loan %d", loan.BookID, loan.ID)
		}
		return nil
	})

	s.auditor.LogLoan(ctx, actor.UserID, ActionLost, loanID, fmt.Sprintf("Mark loan %d lost", loanID), err)
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// PayFine marks the fine of a closed loan as settled.
func (s *Service) PayFine(ctx context.Context, actor Actor, loanID uint) (*entities.Loan, error) {
	loan, err := s.transition(ctx, loanID, func(tx *gorm.DB, loan *entities.Loan, now time.Time) (map[string]interface{}, error) {
		if err := s.policy.CanPayFine(loan, actor); err != nil {
			return nil, err
		}
		return map[string]interface{}{"fine_paid": true}, nil
	}, nil)

	s.auditor.LogLoan(ctx, actor.UserID, ActionPayFine, loanID, fmt.Sprintf("Pay fine on loan %d", loanID), err)
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// GetLoan returns a loan visible to actor.
func (s *Service) GetLoan(ctx context.Context, actor Actor, loanID uint) (*entities.Loan, error) {
	loan, err := loans.NewRepository(s.db.WithContext(ctx)).GetByID(loanID)
	if errors.Is(err, loans.ErrLoanNotFound) {
		return nil, fail(ErrLoanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load loan: %w", err)
	}
	if loan.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, fail(ErrForbidden)
	}
	return loan, nil
}

// ListLoans returns a page of loans visible to actor.
func (s *Service) ListLoans(ctx context.Context, actor Actor, q LoanQuery) ([]entities.Loan, int64, error) {
	if !validStatusFilter(q.Status) {
		return nil, 0, newError(ErrInvalidFilter, "unknown loan status %q", q.Status)
	}
	if !actor.IsAdmin() {
		if q.UserID != 0 && q.UserID != actor.UserID {
			return nil, 0, fail(ErrForbidden)
		}
		q.UserID = actor.UserID
	}

	result, total, err := loans.NewRepository(s.db.WithContext(ctx)).List(loans.Filter{
		UserID:    q.UserID,
		BookID:    q.BookID,
		Status:    q.Status,
		DueAfter:  inUTC(q.DueAfter),
		DueBefore: inUTC(q.DueBefore),
		Now:       s.now(),
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list loans: %w", err)
	}
	return result, total, nil
}

func inUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// ListOverdue returns every open loan past its due date, oldest first.
func (s *Service) ListOverdue(ctx context.Context, limit int) ([]entities.Loan, error) {
	result, err := loans.NewRepository(s.db.WithContext(ctx)).ListOverdue(s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue loans: %w", err)
	}
	return result, nil
}

func validStatusFilter(status string) bool {
	switch status {
	case "", loans.FilterActive,
		string(entities.LoanStatusBorrowed),
		string(entities.LoanStatusOverdue),
		string(entities.LoanStatusReturned),
		string(entities.LoanStatusLost):
		return true
	}
	return false
}

type (
	// planFunc validates the loan as read and returns the column updates to apply.
	planFunc func(tx *gorm.DB, loan *entities.Loan, now time.Time) (map[string]interface{}, error)
	// afterFunc runs inside the same transaction once the loan update won.
	afterFunc func(tx *gorm.DB, loan *entities.Loan) error
)

// transition reads the loan, plans an update and applies it guarded by the
// status and version that were read. A lost race is re-examined: if the
// loan is now closed the caller gets the matching business failure,
// otherwise the whole step is retried with backoff.
func (s *Service) transition(ctx context.Context, loanID uint, plan planFunc, after afterFunc) (*entities.Loan, error) {
	var result *entities.Loan

	err := retryOnConflict(ctx, s.retries, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ledger := loans.NewRepository(tx)
			now := s.now()

			loan, err := ledger.GetByID(loanID)
			if errors.Is(err, loans.ErrLoanNotFound) {
				return fail(ErrLoanNotFound)
			}
			if err != nil {
				return fmt.Errorf("failed to load loan: %w", err)
			}

			updates, err := plan(tx, loan, now)
			if err != nil {
				return err
			}

			ok, err := ledger.Transition(loan.ID, loan.Version, loan.Status, updates)
			if err != nil {
				return fmt.Errorf("failed to update loan: %w", err)
			}
			if !ok {
				return explainLostRace(tx, ledger, loanID, plan, now)
			}

			if after != nil {
				if err := after(tx, loan); err != nil {
					return err
				}
			}

			result, err = ledger.GetByID(loanID)
			if err != nil {
				return fmt.Errorf("failed to reload loan: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// explainLostRace re-reads a loan whose guarded update matched no row. If the
// fresh state itself forbids the operation (the loan was returned meanwhile)
// that failure is reported; otherwise the attempt is stale and retried.
func explainLostRace(tx *gorm.DB, ledger *loans.Repository, loanID uint, plan planFunc, now time.Time) error {
	current, err := ledger.GetByID(loanID)
	if err != nil {
		return fmt.Errorf("failed to reload loan: %w", err)
	}
	if _, err := plan(tx, current, now); err != nil {
		return err
	}
	return errStale
}

func (s *Service) attachBook(tx *gorm.DB, loan *entities.Loan) error {
	book, err := books.NewRepository(tx).GetByID(loan.BookID)
	if err != nil {
		return fmt.Errorf("failed to reload book: %w", err)
	}
	loan.Book = *book
	return nil
}
