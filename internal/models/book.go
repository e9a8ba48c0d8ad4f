package models

import "time"

// BookStatus is a derived projection of a book's availability
type BookStatus string

const (
	BookStatusAvailable   BookStatus = "available"
	BookStatusBorrowed    BookStatus = "borrowed"
	BookStatusMaintenance BookStatus = "maintenance"
)

// Book carries the circulation-relevant view of a catalog record.
// Copy counters are owned by the inventory ledger and are only ever
// mutated through borrow/return/reserve/cancel operations.
type Book struct {
	ID                int32      `json:"id"`
	BookID            string     `json:"book_id"`
	Title             string     `json:"title"`
	Author            string     `json:"author"`
	TotalCopies       int32      `json:"total_copies"`
	AvailableCopies   int32      `json:"available_copies"`
	TotalReservations int32      `json:"total_reservations"`
	IsActive          bool       `json:"is_active"`
	Status            BookStatus `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsAvailable reports whether the book can be borrowed right now
func (b *Book) IsAvailable() bool {
	return b.IsActive && b.AvailableCopies > 0
}

// DeriveStatus computes the display status from the copy counters
func (b *Book) DeriveStatus() BookStatus {
	switch {
	case !b.IsActive:
		return BookStatusMaintenance
	case b.AvailableCopies > 0:
		return BookStatusAvailable
	default:
		return BookStatusBorrowed
	}
}
