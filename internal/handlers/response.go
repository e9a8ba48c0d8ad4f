package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kipronoh/circulation/internal/models"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ListResponse represents a paginated list response
type ListResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Meta    interface{} `json:"meta,omitempty"`
}

// respondError maps a service error to the wire envelope. Typed
// circulation errors carry their kind; anything else is a 500.
func respondError(c *gin.Context, err error) {
	kind := models.KindOf(err)

	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	message := "Internal server error"

	switch kind {
	case models.ErrKindNotFound:
		status, code, message = http.StatusNotFound, "NOT_FOUND", err.Error()
	case models.ErrKindConflict:
		status, code, message = http.StatusConflict, "CONFLICT", err.Error()
	case models.ErrKindUnavailable:
		status, code, message = http.StatusBadRequest, "UNAVAILABLE", err.Error()
	case models.ErrKindForbidden:
		status, code, message = http.StatusForbidden, "FORBIDDEN", err.Error()
	case models.ErrKindLimitExceeded:
		status, code, message = http.StatusBadRequest, "LIMIT_EXCEEDED", err.Error()
	}

	c.JSON(status, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// respondValidationError reports a malformed request body or parameter
func respondValidationError(c *gin.Context, message string, details interface{}) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    "VALIDATION_ERROR",
			Message: message,
			Details: details,
		},
	})
}
