package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kipronoh/circulation/internal/models"
)

// BookServiceInterface defines the interface for inventory lookups
type BookServiceInterface interface {
	GetBook(ctx context.Context, bookID int32) (*models.Book, error)
}

// BookHandler serves the inventory view of a title
type BookHandler struct {
	bookService BookServiceInterface
}

// NewBookHandler creates a new book handler
func NewBookHandler(bookService BookServiceInterface) *BookHandler {
	return &BookHandler{
		bookService: bookService,
	}
}

// GetBook returns a title with its copy counts and derived status
func (h *BookHandler) GetBook(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := h.bookService.GetBook(c.Request.Context(), bookID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    book,
	})
}
