package models

import "time"

// ReservationStatus tracks a reservation through its lifecycle
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusFulfilled ReservationStatus = "fulfilled"
	ReservationStatusExpired   ReservationStatus = "expired"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Reservation is a queued request for a currently-unavailable book.
// Active reservations for a book hold priorities {1..N} with no gaps;
// every removal renumbers the remainder.
type Reservation struct {
	ID              int32             `json:"id"`
	UserID          int32             `json:"user_id"`
	BookID          int32             `json:"book_id"`
	Status          ReservationStatus `json:"status"`
	Priority        int32             `json:"priority"`
	ReservationDate time.Time         `json:"reservation_date"`
	ExpiryDate      time.Time         `json:"expiry_date"`
	FulfilledAt     *time.Time        `json:"fulfilled_at,omitempty"`
	FulfilledBy     *int32            `json:"fulfilled_by,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// ReserveBookRequest represents a request to join a book's waitlist.
// UserID is optional; staff set it to reserve on behalf of a member.
type ReserveBookRequest struct {
	BookID int32 `json:"book_id" binding:"required,min=1"`
	UserID int32 `json:"user_id"`
}

// ReservationResponse represents a reservation response
type ReservationResponse struct {
	ID              int32             `json:"id"`
	UserID          int32             `json:"user_id"`
	BookID          int32             `json:"book_id"`
	Status          ReservationStatus `json:"status"`
	Priority        int32             `json:"priority"`
	ReservationDate time.Time         `json:"reservation_date"`
	ExpiryDate      time.Time         `json:"expiry_date"`
	FulfilledAt     *time.Time        `json:"fulfilled_at,omitempty"`
	FulfilledBy     *int32            `json:"fulfilled_by,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
