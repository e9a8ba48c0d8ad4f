package models

import (
	"fmt"
	"time"
)

// NotificationKind classifies a circulation notification
type NotificationKind string

const (
	NotificationBookReady   NotificationKind = "book_ready"
	NotificationDueSoon     NotificationKind = "due_soon"
	NotificationOverdue     NotificationKind = "overdue"
	NotificationFineAccrued NotificationKind = "fine_accrued"
)

// Notification is a recorded message for a user; delivery is
// fire-and-forget and clients poll for unread entries
type Notification struct {
	ID        int32            `json:"id"`
	UserID    int32            `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	IsSent    bool             `json:"is_sent"`
	SentAt    *time.Time       `json:"sent_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationRequest is the input to the notification sink
type NotificationRequest struct {
	UserID  int32            `json:"user_id"`
	Kind    NotificationKind `json:"kind"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
}

// Validate checks the request fields
func (r *NotificationRequest) Validate() error {
	if r.UserID <= 0 {
		return fmt.Errorf("recipient user id is required")
	}
	switch r.Kind {
	case NotificationBookReady, NotificationDueSoon, NotificationOverdue, NotificationFineAccrued:
	default:
		return fmt.Errorf("unknown notification kind: %s", r.Kind)
	}
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	if r.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}
