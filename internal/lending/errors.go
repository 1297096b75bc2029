package lending

import (
	"errors"
	"fmt"
)

// Kind classifies a business failure for boundary layers (HTTP status codes,
// CLI exit messages).
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindForbidden        Kind = "forbidden"
	KindConflict         Kind = "conflict"
	KindLimitReached     Kind = "limit_reached"
	KindInvalidState     Kind = "invalid_state"
	KindCapacityExceeded Kind = "capacity_exceeded"
	KindInvalid          Kind = "invalid"
)

// Reasons. Each one belongs to exactly one Kind; see kindOf.
var (
	ErrBookNotFound        = errors.New("book not found")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrBookInactive        = errors.New("book is not in circulation")
	ErrUserInactive        = errors.New("user account is inactive")
	ErrUnavailable         = errors.New("no copies available")
	ErrDuplicateLoan       = errors.New("user already has this book on loan")
	ErrBorrowLimitReached  = errors.New("borrow limit reached")
	ErrAlreadyReturned     = errors.New("loan already returned")
	ErrNotReturnable       = errors.New("loan cannot be returned")
	ErrNotRenewable        = errors.New("loan cannot be renewed")
	ErrRenewalLimitReached = errors.New("renewal limit reached")
	ErrForbidden           = errors.New("operation not permitted")
	ErrConcurrentUpdate    = errors.New("record was modified concurrently")
	ErrISBNTaken           = errors.New("isbn already in catalog")
	ErrOutstandingLoans    = errors.New("book has copies on loan")
	ErrCopiesOnLoan        = errors.New("total copies below copies on loan")
	ErrInvalidDueDate      = errors.New("due date must be in the future")
	ErrInvalidCopies       = errors.New("copy count must not be negative")
	ErrFineNotPayable      = errors.New("no outstanding fine on loan")
	ErrNotLosable          = errors.New("loan cannot be marked lost")
	ErrInvalidFilter       = errors.New("invalid filter")
)

var reasonKinds = map[error]Kind{
	ErrBookNotFound:        KindNotFound,
	ErrLoanNotFound:        KindNotFound,
	ErrUserNotFound:        KindNotFound,
	ErrBookInactive:        KindInvalidState,
	ErrUserInactive:        KindForbidden,
	ErrUnavailable:         KindConflict,
	ErrDuplicateLoan:       KindConflict,
	ErrBorrowLimitReached:  KindLimitReached,
	ErrAlreadyReturned:     KindInvalidState,
	ErrNotReturnable:       KindInvalidState,
	ErrNotRenewable:        KindInvalidState,
	ErrRenewalLimitReached: KindLimitReached,
	ErrForbidden:           KindForbidden,
	ErrConcurrentUpdate:    KindConflict,
	ErrISBNTaken:           KindConflict,
	ErrOutstandingLoans:    KindInvalidState,
	ErrCopiesOnLoan:        KindCapacityExceeded,
	ErrInvalidDueDate:      KindInvalid,
	ErrInvalidCopies:       KindInvalid,
	ErrFineNotPayable:      KindInvalidState,
	ErrNotLosable:          KindInvalidState,
	ErrInvalidFilter:       KindInvalid,
}

// Error is a tagged business failure. errors.Is matches both the Reason
// sentinel and the Kind.
type Error struct {
	Kind    Kind
	Reason  error
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Reason.Error()
}

func (e *Error) Unwrap() error {
	return e.Reason
}

// Is lets callers test for a whole class of failures with errors.Is(err, KindConflict).
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	return false
}

// Error makes Kind usable as an errors.Is target.
func (k Kind) Error() string {
	return string(k)
}

// Code returns a stable machine-readable code for the reason.
func (e *Error) Code() string {
	if code, ok := reasonCodes[e.Reason]; ok {
		return code
	}
	return string(e.Kind)
}

var reasonCodes = map[error]string{
	ErrBookNotFound:        "book_not_found",
	ErrLoanNotFound:        "loan_not_found",
	ErrUserNotFound:        "user_not_found",
	ErrBookInactive:        "book_inactive",
	ErrUserInactive:        "user_inactive",
	ErrUnavailable:         "unavailable",
	ErrDuplicateLoan:       "duplicate_loan",
	ErrBorrowLimitReached:  "borrow_limit_reached",
	ErrAlreadyReturned:     "already_returned",
	ErrNotReturnable:       "not_returnable",
	ErrNotRenewable:        "not_renewable",
	ErrRenewalLimitReached: "renewal_limit_reached",
	ErrForbidden:           "forbidden",
	ErrConcurrentUpdate:    "conflict",
	ErrISBNTaken:           "isbn_taken",
	ErrOutstandingLoans:    "outstanding_loans",
	ErrCopiesOnLoan:        "capacity_exceeded",
	ErrInvalidDueDate:      "invalid_due_date",
	ErrInvalidCopies:       "invalid_copies",
	ErrFineNotPayable:      "fine_not_payable",
	ErrNotLosable:          "not_losable",
	ErrInvalidFilter:       "invalid_filter",
}

func newError(reason error, format string, args ...interface{}) *Error {
	kind, ok := reasonKinds[reason]
	if !ok {
		kind = KindInvalid
	}
	msg := ""
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Reason: reason, Message: msg}
}

func fail(reason error) *Error {
	return newError(reason, "")
}

// AsError extracts the tagged failure from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
