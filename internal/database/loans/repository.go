// Package loans provides database operations for the loan ledger.
//
// Loan records are never deleted. Status changes go through Transition,
// which only succeeds if the record still has the status and version the
// caller read, so two concurrent returns of one loan cannot both win.
package loans

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/entities"
)

// ErrLoanNotFound is returned when no loan matches the lookup.
var ErrLoanNotFound = errors.New("loan not found")

// Status filter values accepted by List in addition to the persisted statuses.
const (
	// FilterActive matches every loan that is still out, overdue or not.
	FilterActive = "active"
)

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	UserID    uint
	BookID    uint
	Status    string // borrowed, overdue, returned, lost or active
	DueAfter  *time.Time
	DueBefore *time.Time
	Now       time.Time // reference instant for borrowed/overdue
	Limit     int
	Offset    int
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new loan. Opening a second borrowed loan for the same
// (user, book) pair violates idx_loans_open_user_book.
func (r *Repository) Create(loan *entities.Loan) error {
	if loan.Version == 0 {
		loan.Version = 1
	}
	return r.db.Omit("User", "Book").Create(loan).Error
}

// GetByID retrieves a loan together with its book.
func (r *Repository) GetByID(id uint) (*entities.Loan, error) {
	var loan entities.Loan
	err := r.db.Preload("Book").First(&loan, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// FindActive returns the user's open loan for the book, if any.
func (r *Repository) FindActive(userID, bookID uint) (*entities.Loan, error) {
	var loan entities.Loan
	err := r.db.Where("user_id = ? AND book_id = ? AND status = ?", userID, bookID, entities.LoanStatusBorrowed).
		First(&loan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// CountActive returns the number of non-terminal loans held by the user.
func (r *Repository) CountActive(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Loan{}).
		Where("user_id = ? AND status = ?", userID, entities.LoanStatusBorrowed).
		Count(&count).Error
	return count, err
}

// CountActiveForBook returns the number of open loans of the book.
func (r *Repository) CountActiveForBook(bookID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Loan{}).
		Where("book_id = ? AND status = ?", bookID, entities.LoanStatusBorrowed).
		Count(&count).Error
	return count, err
}

// List returns a page of loans, most recent first, with the total match count.
func (r *Repository) List(filter Filter) ([]entities.Loan, int64, error) {
	var loans []entities.Loan
	var total int64

	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}

	query := r.db.Model(&entities.Loan{})
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.BookID > 0 {
		query = query.Where("book_id = ?", filter.BookID)
	}

	switch filter.Status {
	case "":
	case FilterActive:
		query = query.Where("status = ?", entities.LoanStatusBorrowed)
	case string(entities.LoanStatusOverdue):
		query = query.Where("status = ? AND due_at < ?", entities.LoanStatusBorrowed, now)
	case string(entities.LoanStatusBorrowed):
		query = query.Where("status = ? AND due_at >= ?", entities.LoanStatusBorrowed, now)
	default:
		query = query.Where("status = ?", filter.Status)
	}

	if filter.DueAfter != nil {
		query = query.Where("due_at >= ?", *filter.DueAfter)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_at < ?", *filter.DueBefore)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	err := query.Preload("Book").
		Order("borrowed_at DESC, id DESC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&loans).Error
	return loans, total, err
}

// ListOverdue returns open loans whose due date is before now, oldest due first.
// User and Book are preloaded for reporting.
func (r *Repository) ListOverdue(now time.Time, limit int) ([]entities.Loan, error) {
	var loans []entities.Loan
	query := r.db.Preload("User").Preload("Book").
		Where("status = ? AND due_at < ?", entities.LoanStatusBorrowed, now).
		Order("due_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&loans).Error
	return loans, err
}

// Transition applies updates to the loan only if it still has fromStatus and
// fromVersion, bumping the version. It returns false when the record was
// changed by someone else in the meantime.
func (r *Repository) Transition(id uint, fromVersion int, fromStatus entities.LoanStatus, updates map[string]interface{}) (bool, error) {
	values := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["version"] = gorm.Expr("version + 1")

	result := r.db.Model(&entities.Loan{}).
		Where("id = ? AND version = ? AND status = ?", id, fromVersion, fromStatus).
		Updates(values)
	return result.RowsAffected == 1, result.Error
}
