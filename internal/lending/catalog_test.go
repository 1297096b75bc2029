package lending

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_AddBook(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	book, err := h.catalog.AddBook(ctx, h.admin, NewBook{
		BookDetails: BookDetails{Title: " Dune ", Author: "Frank Herbert", ISBN: "978-0-441-17271-9"},
		Copies:      3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "9780441172719", book.ISBN)
	assert.Equal(t, 3, book.TotalCopies)
	assert.Equal(t, 3, book.AvailableCopies)
	assert.True(t, book.Active)

	_, err = h.catalog.AddBook(ctx, h.admin, NewBook{
		BookDetails: BookDetails{Title: "Dune again", Author: "F", ISBN: "9780441172719"},
		Copies:      1,
	})
	assert.ErrorIs(t, err, ErrISBNTaken)
	assert.ErrorIs(t, err, KindConflict)

	_, err = h.catalog.AddBook(ctx, h.alice, NewBook{BookDetails: BookDetails{Title: "X", Author: "Y", ISBN: "1"}, Copies: 1})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.catalog.AddBook(ctx, h.admin, NewBook{BookDetails: BookDetails{Title: "X", Author: "Y", ISBN: "2"}, Copies: -1})
	assert.ErrorIs(t, err, ErrInvalidCopies)

	assert.Contains(t, h.auditor.actions(), ActionBookCreate)
}

func TestCatalog_UpdateBook(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.addBook(t, 1)
	second := h.addBook(t, 1)

	updated, err := h.catalog.UpdateBook(ctx, h.admin, first.ID, BookDetails{
		Title: "New title", Author: "New author", ISBN: first.ISBN, Publisher: "Ace", PublicationYear: 1965,
	})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, 1965, updated.PublicationYear)

	_, err = h.catalog.UpdateBook(ctx, h.admin, first.ID, BookDetails{Title: "T", Author: "A", ISBN: second.ISBN})
	assert.ErrorIs(t, err, ErrISBNTaken)

	_, err = h.catalog.UpdateBook(ctx, h.admin, 999, BookDetails{Title: "T", Author: "A", ISBN: "x"})
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = h.catalog.UpdateBook(ctx, h.bob, first.ID, BookDetails{Title: "T", Author: "A", ISBN: "x"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCatalog_SetTotalCopies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	book := h.addBook(t, 3)
	h.borrow(t, h.alice, book)
	h.borrow(t, h.bob, book)

	grown, err := h.catalog.SetTotalCopies(ctx, h.admin, book.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, grown.TotalCopies)
	assert.Equal(t, 3, grown.AvailableCopies)

	_, err = h.catalog.SetTotalCopies(ctx, h.admin, book.ID, 1)
	assert.ErrorIs(t, err, ErrCopiesOnLoan)
	assert.ErrorIs(t, err, KindCapacityExceeded)
	assert.Equal(t, 5, h.book(t, book.ID).TotalCopies)

	shrunk, err := h.catalog.SetTotalCopies(ctx, h.admin, book.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, shrunk.AvailableCopies)

	_, err = h.catalog.SetTotalCopies(ctx, h.admin, book.ID, -1)
	assert.ErrorIs(t, err, ErrInvalidCopies)

	_, err = h.catalog.SetTotalCopies(ctx, h.admin, 999, 1)
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = h.catalog.SetTotalCopies(ctx, h.alice, book.ID, 10)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCatalog_DeactivateAndReactivate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	book := h.addBook(t, 2)
	loan := h.borrow(t, h.alice, book)

	_, err := h.catalog.Deactivate(ctx, h.admin, book.ID)
	assert.ErrorIs(t, err, ErrOutstandingLoans)
	assert.True(t, h.book(t, book.ID).Active)

	_, err = h.svc.Return(ctx, h.alice, loan.ID)
	require.NoError(t, err)

	deactivated, err := h.catalog.Deactivate(ctx, h.admin, book.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	_, err = h.catalog.GetBook(ctx, h.alice, book.ID)
	assert.ErrorIs(t, err, ErrBookNotFound, "members do not see withdrawn books")

	got, err := h.catalog.GetBook(ctx, h.admin, book.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	reactivated, err := h.catalog.Reactivate(ctx, h.admin, book.ID)
	require.NoError(t, err)
	assert.True(t, reactivated.Active)

	_, err = h.catalog.Reactivate(ctx, h.admin, 999)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestCatalog_ListBooks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addBook(t, 1)
	withdrawn := h.addBook(t, 1)
	_, err := h.catalog.Deactivate(ctx, h.admin, withdrawn.ID)
	require.NoError(t, err)

	tests := []struct {
		name  string
		actor Actor
		query BookQuery
		want  int64
	}{
		{"member sees active only", h.alice, BookQuery{IncludeInactive: true}, 1},
		{"admin default", h.admin, BookQuery{}, 1},
		{"admin with inactive", h.admin, BookQuery{IncludeInactive: true}, 2},
		{"search by isbn", h.admin, BookQuery{Search: withdrawn.ISBN, IncludeInactive: true}, 1},
		{"search miss", h.alice, BookQuery{Search: "zzz"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := h.catalog.ListBooks(ctx, tt.actor, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, total)
		})
	}
}

func TestCatalog_LostCopyShrinksInventory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	book := h.addBook(t, 1)
	loan := h.borrow(t, h.alice, book)

	_, err := h.svc.MarkLost(ctx, h.admin, loan.ID)
	require.NoError(t, err)

	stored := h.book(t, book.ID)
	assert.Equal(t, 0, stored.TotalCopies)
	assert.Equal(t, 0, stored.AvailableCopies)

	// With no copies on loan the title can be withdrawn.
	deactivated, err := h.catalog.Deactivate(ctx, h.admin, book.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)
}
