package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kipronoh/circulation/internal/middleware"
	"github.com/kipronoh/circulation/internal/models"
)

// LoanServiceInterface defines the interface for loan service operations
type LoanServiceInterface interface {
	BorrowBook(ctx context.Context, actor models.Actor, userID, bookID int32, notes string) (*models.LoanResponse, error)
	ReturnBook(ctx context.Context, actor models.Actor, loanID int32, notes string) (*models.LoanResponse, error)
	RenewLoan(ctx context.Context, actor models.Actor, loanID int32) (*models.LoanResponse, error)
	PayFine(ctx context.Context, actor models.Actor, loanID int32) error
	GetUserLoans(ctx context.Context, actor models.Actor, userID int32, limit, offset int32) ([]models.LoanResponse, error)
	GetOverdueLoans(ctx context.Context, actor models.Actor) ([]models.LoanResponse, error)
	GetRenewalHistory(ctx context.Context, actor models.Actor, loanID int32) ([]models.RenewalEntry, error)
}

// LoanHandler handles loan-related HTTP requests
type LoanHandler struct {
	loanService LoanServiceInterface
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanService LoanServiceInterface) *LoanHandler {
	return &LoanHandler{
		loanService: loanService,
	}
}

// BorrowBook checks a book out to the caller, or to another user when
// staff supply user_id
func (h *LoanHandler) BorrowBook(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	var req models.BorrowBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, "Invalid request data", err.Error())
		return
	}

	userID := req.UserID
	if userID == 0 {
		userID = actor.UserID
	}

	loan, err := h.loanService.BorrowBook(c.Request.Context(), actor, userID, req.BookID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Data:    loan,
		Message: "Book borrowed successfully",
	})
}

// ReturnBook finalizes a loan
func (h *LoanHandler) ReturnBook(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	// Body is optional on returns
	var req models.ReturnBookRequest
	_ = c.ShouldBindJSON(&req)

	loan, err := h.loanService.ReturnBook(c.Request.Context(), actor, loanID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    loan,
		Message: "Book returned successfully",
	})
}

// RenewLoan extends a loan's due date
func (h *LoanHandler) RenewLoan(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	loan, err := h.loanService.RenewLoan(c.Request.Context(), actor, loanID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    loan,
		Message: "Loan renewed successfully",
	})
}

// PayFine settles a loan's fine (staff only)
func (h *LoanHandler) PayFine(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.loanService.PayFine(c.Request.Context(), actor, loanID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Fine settled successfully",
	})
}

// GetMyLoans lists the caller's loans
func (h *LoanHandler) GetMyLoans(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	limit, offset := parsePagination(c)

	loans, err := h.loanService.GetUserLoans(c.Request.Context(), actor, actor.UserID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    loans,
		Meta: gin.H{
			"limit":  limit,
			"offset": offset,
			"count":  len(loans),
		},
	})
}

// GetUserLoans lists another user's loans (staff only, enforced by the
// service ownership check)
func (h *LoanHandler) GetUserLoans(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	limit, offset := parsePagination(c)

	loans, err := h.loanService.GetUserLoans(c.Request.Context(), actor, userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    loans,
		Meta: gin.H{
			"limit":  limit,
			"offset": offset,
			"count":  len(loans),
		},
	})
}

// GetOverdueLoans lists all overdue loans (staff only)
func (h *LoanHandler) GetOverdueLoans(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	loans, err := h.loanService.GetOverdueLoans(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    loans,
		Meta: gin.H{
			"count": len(loans),
		},
	})
}

// GetRenewalHistory lists a loan's renewal log
func (h *LoanHandler) GetRenewalHistory(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	renewals, err := h.loanService.GetRenewalHistory(c.Request.Context(), actor, loanID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    renewals,
		Meta: gin.H{
			"count": len(renewals),
		},
	})
}

// parseIDParam parses a positive integer path parameter, responding
// with a validation error on failure
func parseIDParam(c *gin.Context, name string) (int32, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id < 1 {
		respondValidationError(c, "Invalid "+name+" parameter", "must be a positive integer")
		return 0, false
	}
	return int32(id), true
}

// parsePagination reads limit/offset query parameters with sane bounds
func parsePagination(c *gin.Context) (int32, int32) {
	limit := int64(20)
	offset := int64(0)

	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 32); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 32); err == nil && v >= 0 {
			offset = v
		}
	}

	return int32(limit), int32(offset)
}

func respondUnauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    "MISSING_ACTOR",
			Message: "Authentication required",
		},
	})
}
