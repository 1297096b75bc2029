package entities

import "time"

// LoanStatus is the persisted state of a loan record.
// Overdue is never stored: it is derived from (status, due date, now).
type LoanStatus string

const (
	LoanStatusBorrowed LoanStatus = "borrowed"
	LoanStatusReturned LoanStatus = "returned"
	LoanStatusLost     LoanStatus = "lost"

	// LoanStatusOverdue is a computed view over a borrowed loan past its due date.
	LoanStatusOverdue LoanStatus = "overdue"
)

// IsTerminal reports whether no further lifecycle transition is possible.
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusReturned || s == LoanStatusLost
}

// Loan records one user's custody of one copy of a book.
type Loan struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"index;not null" json:"user_id"`
	BookID     uint       `gorm:"index;not null" json:"book_id"`
	BorrowedAt time.Time  `gorm:"not null" json:"borrowed_at"`
	DueAt      time.Time  `gorm:"index;not null" json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	Status     LoanStatus `gorm:"index;size:20;not null" json:"-"`
	Renewals   int        `gorm:"not null;check:chk_loans_renewals,renewals >= 0" json:"renewals"`
	Fine       int        `gorm:"not null;check:chk_loans_fine,fine >= 0" json:"fine"`
	FinePaid   bool       `gorm:"not null" json:"fine_paid"`

	// FineAccruedThrough marks the instant up to which overdue days have
	// already been charged into Fine (set when an overdue loan is renewed).
	FineAccruedThrough *time.Time `json:"fine_accrued_through,omitempty"`

	// Version is bumped on every transition and guards concurrent updates.
	Version int `gorm:"not null;default:1" json:"-"`

	User      User      `gorm:"foreignKey:UserID" json:"-"`
	Book      Book      `gorm:"foreignKey:BookID" json:"book,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Loan) TableName() string {
	return "loans"
}

// IsOverdue reports whether the loan is still out and past its due date.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.Status == LoanStatusBorrowed && now.After(l.DueAt)
}

// EffectiveStatus returns the status as seen at the given instant,
// reporting borrowed loans past their due date as overdue.
func (l *Loan) EffectiveStatus(now time.Time) LoanStatus {
	if l.IsOverdue(now) {
		return LoanStatusOverdue
	}
	return l.Status
}
