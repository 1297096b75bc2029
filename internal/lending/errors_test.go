package lending

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", fail(ErrUnavailable))

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, KindConflict)
	assert.NotErrorIs(t, err, KindNotFound)
	assert.NotErrorIs(t, err, ErrDuplicateLoan)
}

func TestError_Kinds(t *testing.T) {
	tests := []struct {
		reason error
		kind   Kind
	}{
		{ErrBookNotFound, KindNotFound},
		{ErrLoanNotFound, KindNotFound},
		{ErrForbidden, KindForbidden},
		{ErrDuplicateLoan, KindConflict},
		{ErrISBNTaken, KindConflict},
		{ErrBorrowLimitReached, KindLimitReached},
		{ErrRenewalLimitReached, KindLimitReached},
		{ErrAlreadyReturned, KindInvalidState},
		{ErrNotRenewable, KindInvalidState},
		{ErrCopiesOnLoan, KindCapacityExceeded},
		{ErrInvalidDueDate, KindInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.reason.Error(), func(t *testing.T) {
			e := fail(tt.reason)
			assert.Equal(t, tt.kind, e.Kind)
		})
	}
}

func TestError_MessageAndCode(t *testing.T) {
	e := newError(ErrRenewalLimitReached, "renewal limit of %d reached", 3)
	assert.Equal(t, "renewal limit of 3 reached", e.Error())
	assert.Equal(t, "renewal_limit_reached", e.Code())

	plain := fail(ErrAlreadyReturned)
	assert.Equal(t, "loan already returned", plain.Error())
	assert.Equal(t, "already_returned", plain.Code())

	unknown := &Error{Kind: KindInvalid, Reason: errors.New("other")}
	assert.Equal(t, "invalid", unknown.Code())
}

func TestAsError(t *testing.T) {
	e, ok := AsError(fmt.Errorf("ctx: %w", fail(ErrLoanNotFound)))
	require.True(t, ok)
	assert.Equal(t, KindNotFound, e.Kind)

	_, ok = AsError(errors.New("database is locked"))
	assert.False(t, ok)
}

func TestEveryReasonHasKindAndCode(t *testing.T) {
	for reason := range reasonKinds {
		_, ok := reasonCodes[reason]
		assert.True(t, ok, "missing code for %v", reason)
	}
	assert.Len(t, reasonCodes, len(reasonKinds))
}
