package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/lending"
)

// BookRequest is the body of book create and update requests.
type BookRequest struct {
	Title           string `json:"title" binding:"required,max=512"`
	Author          string `json:"author" binding:"required,max=256"`
	ISBN            string `json:"isbn" binding:"required,max=20"`
	Publisher       string `json:"publisher" binding:"max=256"`
	PublicationYear int    `json:"publication_year" binding:"min=0,max=9999"`
	Copies          int    `json:"copies" binding:"min=0"`
}

func (r BookRequest) details() lending.BookDetails {
	return lending.BookDetails{
		Title:           r.Title,
		Author:          r.Author,
		ISBN:            r.ISBN,
		Publisher:       r.Publisher,
		PublicationYear: r.PublicationYear,
	}
}

// CopiesRequest sets the number of physical copies a title has.
type CopiesRequest struct {
	TotalCopies *int `json:"total_copies" binding:"required,min=0"`
}

type BooksController struct {
	catalog *lending.Catalog
}

func NewBooksController(catalog *lending.Catalog) *BooksController {
	return &BooksController{catalog: catalog}
}

// ListBooks handles GET /api/books
// Query: q (title/author/ISBN search), include_inactive (admins only), limit, offset.
func (bc *BooksController) ListBooks(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	books, total, err := bc.catalog.ListBooks(c.Request.Context(), actorFrom(c), lending.BookQuery{
		Search:          c.Query("q"),
		IncludeInactive: c.Query("include_inactive") == "true",
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		respondLendingError(c, err, "list books")
		return
	}

	respondPage(c, books, total, limit, offset, len(books))
}

// GetBook handles GET /api/books/:id
func (bc *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.catalog.GetBook(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondLendingError(c, err, "get book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// CreateBook handles POST /api/books
func (bc *BooksController) CreateBook(c *gin.Context) {
	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	book, err := bc.catalog.AddBook(c.Request.Context(), actorFrom(c), lending.NewBook{
		BookDetails: req.details(),
		Copies:      req.Copies,
	})
	if err != nil {
		respondLendingError(c, err, "create book")
		return
	}
	respondCreated(c, book)
}

// UpdateBook handles PUT /api/books/:id
// Copies in the body are ignored; use PUT /api/books/:id/copies.
func (bc *BooksController) UpdateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	book, err := bc.catalog.UpdateBook(c.Request.Context(), actorFrom(c), id, req.details())
	if err != nil {
		respondLendingError(c, err, "update book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// SetCopies handles PUT /api/books/:id/copies
func (bc *BooksController) SetCopies(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req CopiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	book, err := bc.catalog.SetTotalCopies(c.Request.Context(), actorFrom(c), id, *req.TotalCopies)
	if err != nil {
		respondLendingError(c, err, "set copies")
		return
	}
	c.JSON(http.StatusOK, book)
}

// DeactivateBook handles POST /api/books/:id/deactivate
func (bc *BooksController) DeactivateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.catalog.Deactivate(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondLendingError(c, err, "deactivate book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// ReactivateBook handles POST /api/books/:id/reactivate
func (bc *BooksController) ReactivateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.catalog.Reactivate(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondLendingError(c, err, "reactivate book")
		return
	}
	c.JSON(http.StatusOK, book)
}
