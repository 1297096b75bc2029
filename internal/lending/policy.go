package lending

import (
	"time"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entities"
)

const day = 24 * time.Hour

// Actor is the verified identity performing an operation.
type Actor struct {
	UserID uint
	Role   entities.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == entities.UserRoleAdmin
}

// Policy holds the lending rules. All methods are pure: they read only their
// arguments and never touch storage.
type Policy struct {
	LoanPeriod     time.Duration
	RenewalPeriod  time.Duration
	MaxActiveLoans int
	MaxRenewals    int
	FinePerDay     int
	LostItemFee    int
}

func NewPolicy(cfg config.Lending) Policy {
	p := Policy{
		LoanPeriod:     cfg.LoanPeriod,
		RenewalPeriod:  cfg.RenewalPeriod,
		MaxActiveLoans: cfg.MaxActiveLoans,
		MaxRenewals:    cfg.MaxRenewals,
		FinePerDay:     cfg.FinePerDay,
		LostItemFee:    cfg.LostItemFee,
	}
	defaults := config.DefaultLending()
	if p.LoanPeriod <= 0 {
		p.LoanPeriod = defaults.LoanPeriod
	}
	if p.RenewalPeriod <= 0 {
		p.RenewalPeriod = defaults.RenewalPeriod
	}
	if p.MaxActiveLoans <= 0 {
		p.MaxActiveLoans = defaults.MaxActiveLoans
	}
	if p.MaxRenewals < 0 {
		p.MaxRenewals = defaults.MaxRenewals
	}
	if p.FinePerDay < 0 {
		p.FinePerDay = defaults.FinePerDay
	}
	if p.LostItemFee < 0 {
		p.LostItemFee = 0
	}
	return p
}

// CanBorrow checks whether user may take a new loan of book, given the
// number of loans the user currently holds and whether one of them is for
// this book. The borrow limit is checked before availability so that a user
// at the limit is told so even when the shelf is empty.
func (p Policy) CanBorrow(user *entities.User, book *entities.Book, activeLoans int64, hasLoanForBook bool) error {
	if user == nil || !user.Active {
		return fail(ErrUserInactive)
	}
	if book == nil {
		return fail(ErrBookNotFound)
	}
	if !book.Active {
		return fail(ErrBookInactive)
	}
	if hasLoanForBook {
		return fail(ErrDuplicateLoan)
	}
	if activeLoans >= int64(p.MaxActiveLoans) {
		return newError(ErrBorrowLimitReached, "borrow limit of %d active loans reached", p.MaxActiveLoans)
	}
	if book.AvailableCopies <= 0 {
		return fail(ErrUnavailable)
	}
	return nil
}

// DueDate resolves the due date for a new loan. A requested date must lie
// strictly after now; nil means now plus the loan period. The result is in
// UTC so that it compares correctly with the stored text timestamps.
func (p Policy) DueDate(requested *time.Time, now time.Time) (time.Time, error) {
	if requested == nil {
		return now.Add(p.LoanPeriod), nil
	}
	if !requested.After(now) {
		return time.Time{}, fail(ErrInvalidDueDate)
	}
	return requested.UTC(), nil
}

// CanReturn checks whether actor may return loan.
func (p Policy) CanReturn(loan *entities.Loan, actor Actor) error {
	if loan.UserID != actor.UserID && !actor.IsAdmin() {
		return fail(ErrForbidden)
	}
	switch loan.Status {
	case entities.LoanStatusReturned:
		return fail(ErrAlreadyReturned)
	case entities.LoanStatusBorrowed:
		return nil
	default:
		return newError(ErrNotReturnable, "loan in status %q cannot be returned", loan.Status)
	}
}

// CanRenew checks whether actor may renew loan. Only the borrower may renew,
// administrators included.
func (p Policy) CanRenew(loan *entities.Loan, actor Actor) error {
	if loan.UserID != actor.UserID {
		return fail(ErrForbidden)
	}
	if loan.Status != entities.LoanStatusBorrowed {
		return newError(ErrNotRenewable, "loan in status %q cannot be renewed", loan.Status)
	}
	if loan.Renewals >= p.MaxRenewals {
		return newError(ErrRenewalLimitReached, "renewal limit of %d reached", p.MaxRenewals)
	}
	return nil
}

// CanMarkLost checks whether actor may declare loan lost.
func (p Policy) CanMarkLost(loan *entities.Loan, actor Actor) error {
	if !actor.IsAdmin() {
		return fail(ErrForbidden)
	}
	if loan.Status != entities.LoanStatusBorrowed {
		return newError(ErrNotLosable, "loan in status %q cannot be marked lost", loan.Status)
	}
	return nil
}

// CanPayFine checks whether actor may settle the fine on loan.
func (p Policy) CanPayFine(loan *entities.Loan, actor Actor) error {
	if !actor.IsAdmin() {
		return fail(ErrForbidden)
	}
	if !loan.Status.IsTerminal() || loan.Fine <= 0 || loan.FinePaid {
		return fail(ErrFineNotPayable)
	}
	return nil
}

// ComputeFine returns the fine owed for overdue days of loan up to asOf
// that have not been charged yet. Every started day past the due date costs
// FinePerDay. Terminal loans owe nothing more.
func (p Policy) ComputeFine(loan *entities.Loan, asOf time.Time) int {
	_, days := p.unchargedDays(loan, asOf)
	return days * p.FinePerDay
}

// Accrue charges the overdue days elapsed up to asOf. It returns the amount
// to add to the loan's fine and the new accrued-through marker, which lands
// on a whole-day boundary after the start of charging so that a partially
// elapsed day is never charged twice.
func (p Policy) Accrue(loan *entities.Loan, asOf time.Time) (int, *time.Time) {
	start, days := p.unchargedDays(loan, asOf)
	if days == 0 {
		return 0, loan.FineAccruedThrough
	}
	through := start.Add(time.Duration(days) * day)
	return days * p.FinePerDay, &through
}

// FineDue is the loan's total fine as of asOf: what has been charged plus
// what would be charged if the loan were returned now.
func (p Policy) FineDue(loan *entities.Loan, asOf time.Time) int {
	return loan.Fine + p.ComputeFine(loan, asOf)
}

// DaysOverdue counts started days past the due date of an open loan.
func DaysOverdue(loan *entities.Loan, asOf time.Time) int {
	if !loan.IsOverdue(asOf) {
		return 0
	}
	elapsed := asOf.Sub(loan.DueAt)
	days := int(elapsed / day)
	if elapsed%day != 0 {
		days++
	}
	return days
}

// RenewedDueDate returns the due date after one renewal.
func (p Policy) RenewedDueDate(loan *entities.Loan) time.Time {
	return loan.DueAt.Add(p.RenewalPeriod)
}

func (p Policy) unchargedDays(loan *entities.Loan, asOf time.Time) (time.Time, int) {
	if loan.Status != entities.LoanStatusBorrowed {
		return time.Time{}, 0
	}
	start := loan.DueAt
	if loan.FineAccruedThrough != nil && loan.FineAccruedThrough.After(start) {
		start = *loan.FineAccruedThrough
	}
	if !asOf.After(start) {
		return start, 0
	}
	elapsed := asOf.Sub(start)
	days := int(elapsed / day)
	if elapsed%day != 0 {
		days++
	}
	return start, days
}
