package lending

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/entities"
)

// Audit actions recorded for catalog operations.
const (
	ActionBookCreate     = "book_create"
	ActionBookUpdate     = "book_update"
	ActionBookCopies     = "book_set_copies"
	ActionBookDeactivate = "book_deactivate"
	ActionBookReactivate = "book_reactivate"
)

// BookDetails are the descriptive fields of a catalog entry.
type BookDetails struct {
	Title           string
	Author          string
	ISBN            string
	Publisher       string
	PublicationYear int
}

// NewBook is the input of AddBook.
type NewBook struct {
	BookDetails
	Copies int
}

// BookQuery filters ListBooks.
type BookQuery struct {
	Search          string
	IncludeInactive bool
	Limit           int
	Offset          int
}

// Catalog manages the book inventory on behalf of administrators.
type Catalog struct {
	db      *gorm.DB
	auditor Auditor
}

func NewCatalog(db *gorm.DB, auditor Auditor) *Catalog {
	if auditor == nil {
		auditor = noopAuditor{}
	}
	return &Catalog{db: db, auditor: auditor}
}

// AddBook registers a new title with all of its copies available.
func (c *Catalog) AddBook(ctx context.Context, actor Actor, in NewBook) (*entities.Book, error) {
	book := &entities.Book{
		Title:           strings.TrimSpace(in.Title),
		Author:          strings.TrimSpace(in.Author),
		ISBN:            normalizeISBN(in.ISBN),
		Publisher:       strings.TrimSpace(in.Publisher),
		PublicationYear: in.PublicationYear,
		TotalCopies:     in.Copies,
		AvailableCopies: in.Copies,
		Active:          true,
	}

	err := c.requireAdmin(actor)
	if err == nil && in.Copies < 0 {
		err = fail(ErrInvalidCopies)
	}
	if err == nil {
		if createErr := books.NewRepository(c.db.WithContext(ctx)).Create(book); createErr != nil {
			err = translateBookWriteError(createErr, book.ISBN)
		}
	}

	c.auditor.LogCatalog(ctx, actor.UserID, ActionBookCreate, book.ID, fmt.Sprintf("Add %q (%s)", book.Title, book.ISBN), err)
	if err != nil {
		return nil, err
	}
	log.Printf("Catalog: added book %d %q with %d copies", book.ID, book.Title, book.TotalCopies)
	return book, nil
}

// UpdateBook replaces the descriptive fields of a book.
func (c *Catalog) UpdateBook(ctx context.Context, actor Actor, id uint, in BookDetails) (*entities.Book, error) {
	var book *entities.Book
	err := c.requireAdmin(actor)
	if err == nil {
		repo := books.NewRepository(c.db.WithContext(ctx))
		updateErr := repo.UpdateDetails(&entities.Book{
			ID:              id,
			Title:           strings.TrimSpace(in.Title),
			Author:          strings.TrimSpace(in.Author),
			ISBN:            normalizeISBN(in.ISBN),
			Publisher:       strings.TrimSpace(in.Publisher),
			PublicationYear: in.PublicationYear,
		})
		if updateErr != nil {
			err = translateBookWriteError(updateErr, normalizeISBN(in.ISBN))
		} else {
			book, err = c.load(repo, id)
		}
	}

	c.auditor.LogCatalog(ctx, actor.UserID, ActionBookUpdate, id, fmt.Sprintf("Update book %d", id), err)
	if err != nil {
		return nil, err
	}
	return book, nil
}

// SetTotalCopies resizes the copy pool. The new total may not be lower than
// the number of copies currently on loan.
func (c *Catalog) SetTotalCopies(ctx context.Context, actor Actor, id uint, total int) (*entities.Book, error) {
	book, err := c.conditional(ctx, actor, id, func(repo *books.Repository) (bool, error) {
		if total < 0 {
			return false, fail(ErrInvalidCopies)
		}
		return repo.SetTotalCopies(id, total)
	}, fail(ErrCopiesOnLoan))

	c.auditor.LogCatalog(ctx, actor.UserID, ActionBookCopies, id, fmt.Sprintf("Set total copies of book %d to %d", id, total), err)
	return book, err
}

// Deactivate withdraws a book from circulation. Refused while any copy is on loan.
func (c *Catalog) Deactivate(ctx context.Context, actor Actor, id uint) (*entities.Book, error) {
	book, err := c.conditional(ctx, actor, id, func(repo *books.Repository) (bool, error) {
		return repo.Deactivate(id)
	}, fail(ErrOutstandingLoans))

	c.auditor.LogCatalog(ctx, actor.UserID, ActionBookDeactivate, id, fmt.Sprintf("Deactivate book %d", id), err)
	return book, err
}

// Reactivate returns a book to circulation.
func (c *Catalog) Reactivate(ctx context.Context, actor Actor, id uint) (*entities.Book, error) {
	book, err := c.conditional(ctx, actor, id, func(repo *books.Repository) (bool, error) {
		return repo.Reactivate(id)
	}, fail(ErrBookNotFound))

	c.auditor.LogCatalog(ctx, actor.UserID, ActionBookReactivate, id, fmt.Sprintf("Reactivate book %d", id), err)
	return book, err
}

// GetBook returns a book. Members cannot see deactivated books.
func (c *Catalog) GetBook(ctx context.Context, actor Actor, id uint) (*entities.Book, error) {
	book, err := c.load(books.NewRepository(c.db.WithContext(ctx)), id)
	if err != nil {
		return nil, err
	}
	if !book.Active && !actor.IsAdmin() {
		return nil, fail(ErrBookNotFound)
	}
	return book, nil
}

// ListBooks searches the catalog. Inactive books are listed for administrators only.
func (c *Catalog) ListBooks(ctx context.Context, actor Actor, q BookQuery) ([]entities.Book, int64, error) {
	result, total, err := books.NewRepository(c.db.WithContext(ctx)).List(books.Filter{
		Query:      q.Search,
		ActiveOnly: !(q.IncludeInactive && actor.IsAdmin()),
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list books: %w", err)
	}
	return result, total, nil
}

// conditional runs a guarded inventory update in a transaction. When the
// update matches no row, a missing book is reported as NotFound and an
// existing one as refused.
func (c *Catalog) conditional(ctx context.Context, actor Actor, id uint, update func(*books.Repository) (bool, error), refused error) (*entities.Book, error) {
	if err := c.requireAdmin(actor); err != nil {
		return nil, err
	}

	var book *entities.Book
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := books.NewRepository(tx)

		current, err := c.load(repo, id)
		if err != nil {
			return err
		}

		ok, err := update(repo)
		if err != nil {
			var tagged *Error
			if errors.As(err, &tagged) {
				return err
			}
			return fmt.Errorf("failed to update book %d: %w", current.ID, err)
		}
		if !ok {
			return refused
		}

		book, err = c.load(repo, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

func (c *Catalog) load(repo *books.Repository, id uint) (*entities.Book, error) {
	book, err := repo.GetByID(id)
	if errors.Is(err, books.ErrBookNotFound) {
		return nil, fail(ErrBookNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load book: %w", err)
	}
	return book, nil
}

func (c *Catalog) requireAdmin(actor Actor) error {
	if !actor.IsAdmin() {
		return fail(ErrForbidden)
	}
	return nil
}

func translateBookWriteError(err error, isbn string) error {
	if database.IsDuplicateKey(err) {
		return newError(ErrISBNTaken, "isbn %s already in catalog", isbn)
	}
	if errors.Is(err, books.ErrBookNotFound) {
		return fail(ErrBookNotFound)
	}
	return fmt.Errorf("failed to save book: %w", err)
}

// normalizeISBN strips spaces and hyphens so that "978-0-13-110362-7" and
// "9780131103627" refer to the same title.
func normalizeISBN(isbn string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, strings.TrimSpace(isbn))
}
