package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/lending"
)

const defaultOverdueLimit = 100

// BorrowRequest is the body of POST /api/loans.
type BorrowRequest struct {
	BookID uint       `json:"book_id" binding:"required,min=1"`
	DueAt  *time.Time `json:"due_at"`
}

// LoanResponse is a loan as seen at the time of the request: Status is the
// effective status (borrowed loans past due read as overdue) and FineDue
// includes the fine accruing on an open overdue loan.
type LoanResponse struct {
	entities.Loan
	Status      entities.LoanStatus `json:"status"`
	FineDue     int                 `json:"fine_due"`
	DaysOverdue int                 `json:"days_overdue"`
}

type LoansController struct {
	service *lending.Service
}

func NewLoansController(service *lending.Service) *LoansController {
	return &LoansController{service: service}
}

func (lc *LoansController) present(loan *entities.Loan) LoanResponse {
	now := lc.service.Now()
	return LoanResponse{
		Loan:        *loan,
		Status:      loan.EffectiveStatus(now),
		FineDue:     lc.service.Policy().FineDue(loan, now),
		DaysOverdue: lending.DaysOverdue(loan, now),
	}
}

func (lc *LoansController) presentAll(loans []entities.Loan) []LoanResponse {
	out := make([]LoanResponse, len(loans))
	for i := range loans {
		out[i] = lc.present(&loans[i])
	}
	return out
}

// Borrow handles POST /api/loans
func (lc *LoansController) Borrow(c *gin.Context) {
	var req BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	loan, err := lc.service.Borrow(c.Request.Context(), actorFrom(c), lending.BorrowRequest{
		BookID: req.BookID,
		DueAt:  req.DueAt,
	})
	if err != nil {
		respondLendingError(c, err, "borrow")
		return
	}
	respondCreated(c, lc.present(loan))
}

// Return handles POST /api/loans/:id/return
func (lc *LoansController) Return(c *gin.Context) {
	lc.transition(c, "return", lc.service.Return)
}

// Renew handles POST /api/loans/:id/renew
func (lc *LoansController) Renew(c *gin.Context) {
	lc.transition(c, "renew", lc.service.Renew)
}

// MarkLost handles POST /api/loans/:id/lost
func (lc *LoansController) MarkLost(c *gin.Context) {
	lc.transition(c, "mark lost", lc.service.MarkLost)
}

// PayFine handles POST /api/loans/:id/pay
func (lc *LoansController) PayFine(c *gin.Context) {
	lc.transition(c, "pay fine", lc.service.PayFine)
}

func (lc *LoansController) transition(c *gin.Context, name string, op func(ctx context.Context, actor lending.Actor, loanID uint) (*entities.Loan, error)) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	loan, err := op(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondLendingError(c, err, name)
		return
	}
	c.JSON(http.StatusOK, lc.present(loan))
}

// GetLoan handles GET /api/loans/:id
func (lc *LoansController) GetLoan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	loan, err := lc.service.GetLoan(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondLendingError(c, err, "get loan")
		return
	}
	c.JSON(http.StatusOK, lc.present(loan))
}

// ListLoans handles GET /api/loans
// Query: user_id (admins only), book_id, status, due_after, due_before, limit, offset.
func (lc *LoansController) ListLoans(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}
	userID, ok := parseOptionalQueryID(c, "user_id")
	if !ok {
		return
	}
	bookID, ok := parseOptionalQueryID(c, "book_id")
	if !ok {
		return
	}
	dueAfter, ok := parseOptionalTime(c, "due_after")
	if !ok {
		return
	}
	dueBefore, ok := parseOptionalTime(c, "due_before")
	if !ok {
		return
	}

	loans, total, err := lc.service.ListLoans(c.Request.Context(), actorFrom(c), lending.LoanQuery{
		UserID:    userID,
		BookID:    bookID,
		Status:    c.Query("status"),
		DueAfter:  dueAfter,
		DueBefore: dueBefore,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		respondLendingError(c, err, "list loans")
		return
	}

	respondPage(c, lc.presentAll(loans), total, limit, offset, len(loans))
}

// ListOverdue handles GET /api/loans/overdue
// Returns open loans past their due date, oldest due first.
func (lc *LoansController) ListOverdue(c *gin.Context) {
	limit := defaultOverdueLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondBadRequest(c, "invalid limit")
			return
		}
		limit = min(n, maxPageLimit)
	}

	loans, err := lc.service.ListOverdue(c.Request.Context(), limit)
	if err != nil {
		respondInternalError(c, err, "list overdue")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"loans": lc.presentAll(loans),
		"count": len(loans),
	})
}
