// Package books provides database operations for the book inventory.
//
// Copy counters are never written with read-modify-write in Go code. Every
// change to AvailableCopies or TotalCopies is a single conditional UPDATE
// whose WHERE clause encodes the invariant 0 <= available <= total; a call
// that would break it affects zero rows and reports false.
//
// # Usage
//
//	repo := books.NewRepository(tx)
//	ok, err := repo.ReserveCopy(bookID)
package books

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/entities"
)

// ErrBookNotFound is returned when no book matches the lookup.
var ErrBookNotFound = errors.New("book not found")

// Filter narrows List results.
type Filter struct {
	Query      string // matched against title, author and ISBN
	ActiveOnly bool
	Limit      int
	Offset     int
}

// Repository handles book inventory database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new book. A duplicate ISBN surfaces as a unique
// constraint error (see database.IsDuplicateKey).
func (r *Repository) Create(book *entities.Book) error {
	return r.db.Create(book).Error
}

// GetByID retrieves a book by its ID.
func (r *Repository) GetByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.First(&book, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetByISBN retrieves a book by its catalog number.
func (r *Repository) GetByISBN(isbn string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Where("isbn = ?", isbn).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// List returns a page of books ordered by title along with the total match count.
func (r *Repository) List(filter Filter) ([]entities.Book, int64, error) {
	var books []entities.Book
	var total int64

	query := r.db.Model(&entities.Book{})
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + q + "%"
		query = query.Where("LOWER(title) LIKE LOWER(?) OR LOWER(author) LIKE LOWER(?) OR isbn LIKE ?",
			pattern, pattern, pattern)
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

	err := query.Order("title ASC, id ASC").Limit(filter.Limit).Offset(filter.Offset).Find(&books).Error
	return books, total, err
}

// UpdateDetails overwrites the descriptive fields of a book. Copy counters
// and the active flag are not touched.
func (r *Repository) UpdateDetails(book *entities.Book) error {
	result := r.db.Model(&entities.Book{}).Where("id = ?", book.ID).Updates(map[string]interface{}{
		"title":            book.Title,
		"author":           book.Author,
		"isbn":             book.ISBN,
		"publisher":        book.Publisher,
		"publication_year": book.PublicationYear,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// ReserveCopy takes one copy off the shelf for a new loan and bumps the
// lifetime borrow counter. Returns false when the book is inactive or has
// no copy available.
func (r *Repository) ReserveCopy(id uint) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND active = ? AND available_copies > 0", id, true).
		Updates(map[string]interface{}{
			"available_copies": gorm.Expr("available_copies - 1"),
			"borrow_count":     gorm.Expr("borrow_count + 1"),
		})
	return result.RowsAffected == 1, result.Error
}

// ReleaseCopy puts one copy back on the shelf. Returns false when every
// copy is already available.
func (r *Repository) ReleaseCopy(id uint) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND available_copies < total_copies", id).
		Update("available_copies", gorm.Expr("available_copies + 1"))
	return result.RowsAffected == 1, result.Error
}

// RetireCopy removes a copy that is out on loan from the inventory, as
// happens when the copy is lost. Available copies are unchanged.
func (r *Repository) RetireCopy(id uint) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND total_copies > available_copies", id).
		Update("total_copies", gorm.Expr("total_copies - 1"))
	return result.RowsAffected == 1, result.Error
}

// SetTotalCopies changes the size of the copy pool, moving available copies
// by the same delta. Returns false when the new total is smaller than the
// number of copies currently on loan.
func (r *Repository) SetTotalCopies(id uint, total int) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND ? >= total_copies - available_copies", id, total).
		Updates(map[string]interface{}{
			"available_copies": gorm.Expr("available_copies + (? - total_copies)", total),
			"total_copies":     total,
		})
	return result.RowsAffected == 1, result.Error
}

// Deactivate soft-deletes a book. Returns false when any copy is on loan.
func (r *Repository) Deactivate(id uint) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND available_copies = total_copies", id).
		Update("active", false)
	return result.RowsAffected == 1, result.Error
}

// Reactivate returns a deactivated book to circulation.
func (r *Repository) Reactivate(id uint) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ?", id).
		Update("active", true)
	return result.RowsAffected == 1, result.Error
}
