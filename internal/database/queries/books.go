package queries

import (
	"context"
)

const getBookByID = `
SELECT id, book_id, title, author, total_copies, available_copies, total_reservations, is_active, created_at, updated_at
FROM books
WHERE id = $1
`

func (q *Queries) GetBookByID(ctx context.Context, id int32) (Book, error) {
	row := q.db.QueryRow(ctx, getBookByID, id)
	var b Book
	err := row.Scan(
		&b.ID,
		&b.BookID,
		&b.Title,
		&b.Author,
		&b.TotalCopies,
		&b.AvailableCopies,
		&b.TotalReservations,
		&b.IsActive,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

// DecrementAvailableCopies claims one copy if and only if one is free.
// The conditional UPDATE is the concurrency contract for the ledger:
// two concurrent claims on the last copy produce exactly one affected row.
const decrementAvailableCopies = `
UPDATE books
SET available_copies = available_copies - 1, updated_at = now()
WHERE id = $1 AND available_copies > 0 AND is_active = true
`

func (q *Queries) DecrementAvailableCopies(ctx context.Context, id int32) (int64, error) {
	tag, err := q.db.Exec(ctx, decrementAvailableCopies, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// IncrementAvailableCopies releases one copy, clamped to total_copies
const incrementAvailableCopies = `
UPDATE books
SET available_copies = LEAST(available_copies + 1, total_copies), updated_at = now()
WHERE id = $1
`

func (q *Queries) IncrementAvailableCopies(ctx context.Context, id int32) error {
	_, err := q.db.Exec(ctx, incrementAvailableCopies, id)
	return err
}

const incrementTotalReservations = `
UPDATE books
SET total_reservations = total_reservations + 1, updated_at = now()
WHERE id = $1
`

func (q *Queries) IncrementTotalReservations(ctx context.Context, id int32) error {
	_, err := q.db.Exec(ctx, incrementTotalReservations, id)
	return err
}

const decrementTotalReservations = `
UPDATE books
SET total_reservations = GREATEST(total_reservations - 1, 0), updated_at = now()
WHERE id = $1
`

func (q *Queries) DecrementTotalReservations(ctx context.Context, id int32) error {
	_, err := q.db.Exec(ctx, decrementTotalReservations, id)
	return err
}
