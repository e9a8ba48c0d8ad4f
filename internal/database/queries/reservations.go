package queries

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const reservationColumns = `id, user_id, book_id, status, priority, reservation_date, expiry_date, fulfilled_at, fulfilled_by, created_at, updated_at`

func scanReservation(row pgx.Row) (Reservation, error) {
	var r Reservation
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.BookID,
		&r.Status,
		&r.Priority,
		&r.ReservationDate,
		&r.ExpiryDate,
		&r.FulfilledAt,
		&r.FulfilledBy,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func collectReservations(rows pgx.Rows) ([]Reservation, error) {
	defer rows.Close()
	var reservations []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

type CreateReservationParams struct {
	UserID     int32
	BookID     int32
	ExpiryDate pgtype.Timestamp
}

// The priority subquery appends the new reservation at the tail of the
// book's active queue, keeping priorities contiguous from 1.
const createReservation = `
INSERT INTO reservations (user_id, book_id, status, priority, reservation_date, expiry_date)
VALUES (
    $1, $2, 'active',
    (SELECT COALESCE(MAX(priority), 0) + 1 FROM reservations WHERE book_id = $2 AND status = 'active'),
    now(), $3
)
RETURNING ` + reservationColumns

func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, createReservation, arg.UserID, arg.BookID, arg.ExpiryDate))
}

const getReservationByID = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE id = $1
`

func (q *Queries) GetReservationByID(ctx context.Context, id int32) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, getReservationByID, id))
}

type GetActiveReservationByUserAndBookParams struct {
	UserID int32
	BookID int32
}

const getActiveReservationByUserAndBook = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE user_id = $1 AND book_id = $2 AND status = 'active'
LIMIT 1
`

func (q *Queries) GetActiveReservationByUserAndBook(ctx context.Context, arg GetActiveReservationByUserAndBookParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, getActiveReservationByUserAndBook, arg.UserID, arg.BookID))
}

// GetNextActiveReservationForBook returns the head of the queue.
// Priority is the queue order; reservation_date breaks ties defensively.
const getNextActiveReservationForBook = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE book_id = $1 AND status = 'active'
ORDER BY priority ASC, reservation_date ASC
LIMIT 1
`

func (q *Queries) GetNextActiveReservationForBook(ctx context.Context, bookID int32) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, getNextActiveReservationForBook, bookID))
}

const listActiveReservationsByBook = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE book_id = $1 AND status = 'active'
ORDER BY priority ASC
`

func (q *Queries) ListActiveReservationsByBook(ctx context.Context, bookID int32) ([]Reservation, error) {
	rows, err := q.db.Query(ctx, listActiveReservationsByBook, bookID)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

type ListReservationsByUserParams struct {
	UserID int32
	Limit  int32
	Offset int32
}

const listReservationsByUser = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE user_id = $1
ORDER BY reservation_date DESC
LIMIT $2 OFFSET $3
`

func (q *Queries) ListReservationsByUser(ctx context.Context, arg ListReservationsByUserParams) ([]Reservation, error) {
	rows, err := q.db.Query(ctx, listReservationsByUser, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

type UpdateReservationStatusParams struct {
	ID          int32
	Status      string
	FulfilledAt pgtype.Timestamp
	FulfilledBy pgtype.Int4
}

const updateReservationStatus = `
UPDATE reservations
SET status = $2,
    fulfilled_at = $3,
    fulfilled_by = $4,
    updated_at = now()
WHERE id = $1
RETURNING ` + reservationColumns

func (q *Queries) UpdateReservationStatus(ctx context.Context, arg UpdateReservationStatusParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, updateReservationStatus, arg.ID, arg.Status, arg.FulfilledAt, arg.FulfilledBy))
}

type ShiftPrioritiesAfterRemovalParams struct {
	BookID   int32
	Priority int32
}

// ShiftPrioritiesAfterRemoval closes the gap left by a removed
// reservation so active priorities stay exactly {1..N}
const shiftPrioritiesAfterRemoval = `
UPDATE reservations
SET priority = priority - 1, updated_at = now()
WHERE book_id = $1 AND status = 'active' AND priority > $2
`

func (q *Queries) ShiftPrioritiesAfterRemoval(ctx context.Context, arg ShiftPrioritiesAfterRemovalParams) error {
	_, err := q.db.Exec(ctx, shiftPrioritiesAfterRemoval, arg.BookID, arg.Priority)
	return err
}

// ListExpiredActiveReservations orders by book then priority so the
// expiry sweep renumbers each book's queue consistently
const listExpiredActiveReservations = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE status = 'active' AND expiry_date < now()
ORDER BY book_id ASC, priority ASC
`

func (q *Queries) ListExpiredActiveReservations(ctx context.Context) ([]Reservation, error) {
	rows, err := q.db.Query(ctx, listExpiredActiveReservations)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}
