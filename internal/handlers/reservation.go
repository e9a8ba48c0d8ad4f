package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kipronoh/circulation/internal/middleware"
	"github.com/kipronoh/circulation/internal/models"
)

// ReservationServiceInterface defines the interface for reservation service operations
type ReservationServiceInterface interface {
	ReserveBook(ctx context.Context, actor models.Actor, userID, bookID int32) (*models.ReservationResponse, error)
	CancelReservation(ctx context.Context, actor models.Actor, reservationID int32) (*models.ReservationResponse, error)
	GetUserReservations(ctx context.Context, actor models.Actor, userID int32, limit, offset int32) ([]models.ReservationResponse, error)
	GetBookQueue(ctx context.Context, actor models.Actor, bookID int32) ([]models.ReservationResponse, error)
}

// ReservationHandler handles reservation-related HTTP requests
type ReservationHandler struct {
	reservationService ReservationServiceInterface
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(reservationService ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
	}
}

// ReserveBook joins the caller to a book's waitlist, or another user
// when staff supply user_id
func (h *ReservationHandler) ReserveBook(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	var req models.ReserveBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, "Invalid request data", err.Error())
		return
	}

	userID := req.UserID
	if userID == 0 {
		userID = actor.UserID
	}

	reservation, err := h.reservationService.ReserveBook(c.Request.Context(), actor, userID, req.BookID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Data:    reservation,
		Message: "Book reserved successfully",
	})
}

// CancelReservation removes an active reservation from the queue
func (h *ReservationHandler) CancelReservation(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	reservationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	reservation, err := h.reservationService.CancelReservation(c.Request.Context(), actor, reservationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    reservation,
		Message: "Reservation cancelled successfully",
	})
}

// GetMyReservations lists the caller's reservations
func (h *ReservationHandler) GetMyReservations(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	limit, offset := parsePagination(c)

	reservations, err := h.reservationService.GetUserReservations(c.Request.Context(), actor, actor.UserID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    reservations,
		Meta: gin.H{
			"limit":  limit,
			"offset": offset,
			"count":  len(reservations),
		},
	})
}

// GetBookQueue lists a book's active waitlist in priority order (staff only)
func (h *ReservationHandler) GetBookQueue(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	reservations, err := h.reservationService.GetBookQueue(c.Request.Context(), actor, bookID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    reservations,
		Meta: gin.H{
			"count": len(reservations),
		},
	})
}
