package queries

import (
	"context"
)

type CreateNotificationParams struct {
	UserID  int32
	Kind    string
	Title   string
	Message string
}

const createNotification = `
INSERT INTO notifications (user_id, kind, title, message)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, kind, title, message, is_sent, sent_at, created_at
`

func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	row := q.db.QueryRow(ctx, createNotification, arg.UserID, arg.Kind, arg.Title, arg.Message)
	var n Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Message, &n.IsSent, &n.SentAt, &n.CreatedAt)
	return n, err
}

const getNotificationByID = `
SELECT id, user_id, kind, title, message, is_sent, sent_at, created_at
FROM notifications
WHERE id = $1
`

func (q *Queries) GetNotificationByID(ctx context.Context, id int32) (Notification, error) {
	row := q.db.QueryRow(ctx, getNotificationByID, id)
	var n Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Message, &n.IsSent, &n.SentAt, &n.CreatedAt)
	return n, err
}

const markNotificationAsSent = `
UPDATE notifications
SET is_sent = true, sent_at = now()
WHERE id = $1
`

func (q *Queries) MarkNotificationAsSent(ctx context.Context, id int32) error {
	_, err := q.db.Exec(ctx, markNotificationAsSent, id)
	return err
}

type ListNotificationsByUserParams struct {
	UserID int32
	Limit  int32
	Offset int32
}

const listNotificationsByUser = `
SELECT id, user_id, kind, title, message, is_sent, sent_at, created_at
FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

func (q *Queries) ListNotificationsByUser(ctx context.Context, arg ListNotificationsByUserParams) ([]Notification, error) {
	rows, err := q.db.Query(ctx, listNotificationsByUser, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var notifications []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Message, &n.IsSent, &n.SentAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
