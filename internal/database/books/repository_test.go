package books

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, *database.Database) {
	t.Helper()
	db, err := database.NewSilentDatabase(filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.DB), db
}

func createBook(t *testing.T, repo *Repository, isbn string, copies int) *entities.Book {
	t.Helper()
	book := &entities.Book{
		Title:           "Book " + isbn,
		Author:          "Author",
		ISBN:            isbn,
		TotalCopies:     copies,
		AvailableCopies: copies,
		Active:          true,
	}
	require.NoError(t, repo.Create(book))
	return book
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo, _ := setupTestDB(t)

	book := createBook(t, repo, "9780131103627", 2)
	assert.NotZero(t, book.ID)

	byID, err := repo.GetByID(book.ID)
	require.NoError(t, err)
	assert.Equal(t, "9780131103627", byID.ISBN)

	byISBN, err := repo.GetByISBN("9780131103627")
	require.NoError(t, err)
	assert.Equal(t, book.ID, byISBN.ID)

	_, err = repo.GetByID(999)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestRepository_CreateDuplicateISBN(t *testing.T) {
	repo, _ := setupTestDB(t)
	createBook(t, repo, "111", 1)

	err := repo.Create(&entities.Book{Title: "Other", Author: "A", ISBN: "111", Active: true})
	require.Error(t, err)
	assert.True(t, database.IsDuplicateKey(err))
}

func TestRepository_ReserveAndReleaseCopy(t *testing.T) {
	repo, _ := setupTestDB(t)
	book := createBook(t, repo, "222", 1)

	ok, err := repo.ReserveCopy(book.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ReserveCopy(book.ID)
	require.NoError(t, err)
	assert.False(t, ok, "no copy left to reserve")

	got, err := repo.GetByID(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)
	assert.Equal(t, int64(1), got.BorrowCount)

	ok, err = repo.ReleaseCopy(book.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ReleaseCopy(book.ID)
	require.NoError(t, err)
	assert.False(t, ok, "available must not exceed total")

	got, err = repo.GetByID(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestRepository_ReserveCopyInactive(t *testing.T) {
	repo, _ := setupTestDB(t)
	book := createBook(t, repo, "333", 3)

	ok, err := repo.Deactivate(book.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.ReserveCopy(book.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_DeactivateWithCopiesOnLoan(t *testing.T) {
	repo, _ := setupTestDB(t)
	book := createBook(t, repo, "444", 2)

	_, err := repo.ReserveCopy(book.ID)
	require.NoError(t, err)

	ok, err := repo.Deactivate(book.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.ReleaseCopy(book.ID)
	require.NoError(t, err)

	ok, err = repo.Deactivate(book.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Reactivate(book.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(book.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func TestRepository_SetTotalCopies(t *testing.T) {
	repo, _ := setupTestDB(t)
	book := createBook(t, repo, "555", 3)

	// Two copies go out on loan.
	for i := 0; i < 2; i++ {
		ok, err := repo.ReserveCopy(book.ID)
		require.NoError(t, err)
		require.True(t, ok)
	}

	tests := []struct {
		name          string
		total         int
		wantOK        bool
		wantTotal     int
		wantAvailable int
	}{
		{"grow", 5, true, 5, 3},
		{"shrink to on-loan count", 2, true, 2, 0},
		{"below on-loan count", 1, false, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := repo.SetTotalCopies(book.ID, tt.total)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)

			got, err := repo.GetByID(book.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, got.TotalCopies)
			assert.Equal(t, tt.wantAvailable, got.AvailableCopies)
		})
	}
}

func TestRepository_RetireCopy(t *testing.T) {
	repo, _ := setupTestDB(t)
	book := createBook(t, repo, "666", 2)

	ok, err := repo.RetireCopy(book.ID)
	require.NoError(t, err)
	assert.False(t, ok, "only copies on loan can be retired")

	_, err = repo.ReserveCopy(book.ID)
	require.NoError(t, err)

	ok, err = repo.RetireCopy(book.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalCopies)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestRepository_List(t *testing.T) {
	repo, _ := setupTestDB(t)
	createBook(t, repo, "701", 1)
	createBook(t, repo, "702", 1)
	inactive := createBook(t, repo, "703", 1)
	_, err := repo.Deactivate(inactive.ID)
	require.NoError(t, err)

	all, total, err := repo.List(Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	active, total, err := repo.List(Filter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, active, 2)

	found, total, err := repo.List(Filter{Query: "702"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, found, 1)
	assert.Equal(t, "702", found[0].ISBN)

	page, total, err := repo.List(Filter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)
}

func TestRepository_UpdateDetails(t *testing.T) {
	repo, _ := setupTestDB(t)
	book := createBook(t, repo, "801", 4)

	book.Title = "Renamed"
	book.Publisher = "Press"
	book.AvailableCopies = 0 // ignored
	require.NoError(t, repo.UpdateDetails(book))

	got, err := repo.GetByID(book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "Press", got.Publisher)
	assert.Equal(t, 4, got.AvailableCopies)

	err = repo.UpdateDetails(&entities.Book{ID: 999, Title: "x"})
	assert.ErrorIs(t, err, ErrBookNotFound)
}
