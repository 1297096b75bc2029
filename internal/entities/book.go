package entities

import "time"

// Book is a catalog title with a pool of physical copies.
// AvailableCopies is only ever changed through conditional updates in the
// books repository so that 0 <= AvailableCopies <= TotalCopies holds.
type Book struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"index;size:512;not null" json:"title"`
	Author          string    `gorm:"index;size:256;not null" json:"author"`
	ISBN            string    `gorm:"uniqueIndex;size:20;not null" json:"isbn"`
	Publisher       string    `gorm:"size:256" json:"publisher,omitempty"`
	PublicationYear int       `json:"publication_year,omitempty"`
	TotalCopies     int       `gorm:"not null;check:chk_books_total,total_copies >= 0" json:"total_copies"`
	AvailableCopies int       `gorm:"not null;check:chk_books_available,available_copies >= 0 AND available_copies <= total_copies" json:"available_copies"`
	BorrowCount     int64     `gorm:"not null" json:"borrow_count"`
	Active          bool      `gorm:"index;not null" json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Book) TableName() string {
	return "books"
}

// OnLoan returns the number of copies currently checked out.
func (b *Book) OnLoan() int {
	return b.TotalCopies - b.AvailableCopies
}
