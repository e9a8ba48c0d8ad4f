package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kipronoh/circulation/internal/middleware"
	"github.com/kipronoh/circulation/internal/models"
)

// NotificationServiceInterface defines the interface for notification service operations
type NotificationServiceInterface interface {
	GetUserNotifications(ctx context.Context, actor models.Actor, userID int32, limit, offset int32) ([]models.Notification, error)
	GetNotification(ctx context.Context, actor models.Actor, id int32) (*models.Notification, error)
}

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationService NotificationServiceInterface
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationService NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// GetMyNotifications lists the caller's notifications, newest first
func (h *NotificationHandler) GetMyNotifications(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	limit, offset := parsePagination(c)

	notifications, err := h.notificationService.GetUserNotifications(c.Request.Context(), actor, actor.UserID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    notifications,
		Meta: gin.H{
			"limit":  limit,
			"offset": offset,
			"count":  len(notifications),
		},
	})
}

// GetNotification loads a single notification
func (h *NotificationHandler) GetNotification(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	notification, err := h.notificationService.GetNotification(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    notification,
	})
}
