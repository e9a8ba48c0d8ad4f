package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/kipronoh/circulation/internal/database/queries"
	"github.com/kipronoh/circulation/internal/models"
)

// notificationQueueKey is the redis list holding pending delivery ids
const notificationQueueKey = "circulation:notifications:pending"

// NotificationQuerier defines the interface for notification database operations
type NotificationQuerier interface {
	CreateNotification(ctx context.Context, arg queries.CreateNotificationParams) (queries.Notification, error)
	GetNotificationByID(ctx context.Context, id int32) (queries.Notification, error)
	MarkNotificationAsSent(ctx context.Context, id int32) error
	ListNotificationsByUser(ctx context.Context, arg queries.ListNotificationsByUserParams) ([]queries.Notification, error)
}

// NotificationQueue is the redis surface the sink needs; *redis.Client
// satisfies it
type NotificationQueue interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	RPop(ctx context.Context, key string) *redis.StringCmd
}

// NotificationService is the fire-and-forget notification sink. It
// records messages and queues them for delivery; clients poll for
// unread entries. Callers never block on or see delivery failures.
type NotificationService struct {
	queries NotificationQuerier
	queue   NotificationQueue
	logger  *slog.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(querier NotificationQuerier, queue NotificationQueue, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		queries: querier,
		queue:   queue,
		logger:  logger,
	}
}

// Notify records a message for a user. Fire-and-forget: failures are
// logged, never surfaced to the triggering operation.
func (s *NotificationService) Notify(ctx context.Context, userID int32, kind models.NotificationKind, title, message string) {
	if _, err := s.CreateNotification(ctx, &models.NotificationRequest{
		UserID:  userID,
		Kind:    kind,
		Title:   title,
		Message: message,
	}); err != nil {
		s.logger.Error("Failed to record notification",
			"user_id", userID, "kind", kind, "error", err)
	}
}

// CreateNotification records a notification and queues it for delivery
func (s *NotificationService) CreateNotification(ctx context.Context, req *models.NotificationRequest) (*models.Notification, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	notification, err := s.queries.CreateNotification(ctx, queries.CreateNotificationParams{
		UserID:  req.UserID,
		Kind:    string(req.Kind),
		Title:   req.Title,
		Message: req.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	// Delivery is best effort; the recorded row is the source of truth
	if s.queue != nil {
		if err := s.queue.LPush(ctx, notificationQueueKey, notification.ID).Err(); err != nil {
			s.logger.Warn("Failed to queue notification for delivery",
				"notification_id", notification.ID, "error", err)
		}
	}

	return convertToNotification(notification), nil
}

// ProcessQueue drains up to batchSize pending notifications and marks
// them sent. Invoked periodically by the scheduler.
func (s *NotificationService) ProcessQueue(ctx context.Context, batchSize int) (int, error) {
	if s.queue == nil {
		return 0, nil
	}

	processed := 0
	for processed < batchSize {
		raw, err := s.queue.RPop(ctx, notificationQueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return processed, fmt.Errorf("failed to pop notification queue: %w", err)
		}

		id, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			s.logger.Warn("Dropping malformed queue entry", "entry", raw)
			continue
		}

		if err := s.queries.MarkNotificationAsSent(ctx, int32(id)); err != nil {
			return processed, fmt.Errorf("failed to mark notification %d sent: %w", id, err)
		}
		processed++
	}

	if processed > 0 {
		s.logger.Info("Delivered notifications", "count", processed)
	}
	return processed, nil
}

// GetUserNotifications lists a user's notifications, newest first
func (s *NotificationService) GetUserNotifications(ctx context.Context, actor models.Actor, userID int32, limit, offset int32) ([]models.Notification, error) {
	if !actor.CanActOn(userID) {
		return nil, models.ForbiddenError("cannot list another user's notifications")
	}

	notifications, err := s.queries.ListNotificationsByUser(ctx, queries.ListNotificationsByUserParams{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	responses := make([]models.Notification, 0, len(notifications))
	for _, n := range notifications {
		responses = append(responses, *convertToNotification(n))
	}
	return responses, nil
}

// GetNotification loads a single notification, owner or staff only
func (s *NotificationService) GetNotification(ctx context.Context, actor models.Actor, id int32) (*models.Notification, error) {
	notification, err := s.queries.GetNotificationByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NotFoundError("notification not found")
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	if !actor.CanActOn(notification.UserID) {
		return nil, models.ForbiddenError("cannot view another user's notification")
	}

	return convertToNotification(notification), nil
}

// convertToNotification converts a queries.Notification to models.Notification
func convertToNotification(n queries.Notification) *models.Notification {
	notification := &models.Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Kind:      models.NotificationKind(n.Kind),
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: n.CreatedAt.Time,
	}

	if n.IsSent.Valid {
		notification.IsSent = n.IsSent.Bool
	}
	if n.SentAt.Valid {
		notification.SentAt = &n.SentAt.Time
	}

	return notification
}
