package queries

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Book struct {
	ID                int32
	BookID            string
	Title             string
	Author            string
	TotalCopies       pgtype.Int4
	AvailableCopies   pgtype.Int4
	TotalReservations pgtype.Int4
	IsActive          pgtype.Bool
	CreatedAt         pgtype.Timestamp
	UpdatedAt         pgtype.Timestamp
}

type Loan struct {
	ID           int32
	UserID       int32
	BookID       int32
	Status       string
	BorrowDate   pgtype.Timestamp
	DueDate      pgtype.Timestamp
	ReturnDate   pgtype.Timestamp
	ReturnedBy   pgtype.Int4
	FineAmount   pgtype.Numeric
	FinePaid     pgtype.Bool
	RenewalCount pgtype.Int4
	Notes        pgtype.Text
	CreatedAt    pgtype.Timestamp
	UpdatedAt    pgtype.Timestamp
}

type LoanRenewal struct {
	ID         int32
	LoanID     int32
	RenewedAt  pgtype.Timestamp
	NewDueDate pgtype.Timestamp
	RenewedBy  int32
}

type Reservation struct {
	ID              int32
	UserID          int32
	BookID          int32
	Status          string
	Priority        int32
	ReservationDate pgtype.Timestamp
	ExpiryDate      pgtype.Timestamp
	FulfilledAt     pgtype.Timestamp
	FulfilledBy     pgtype.Int4
	CreatedAt       pgtype.Timestamp
	UpdatedAt       pgtype.Timestamp
}

type Notification struct {
	ID        int32
	UserID    int32
	Kind      string
	Title     string
	Message   string
	IsSent    pgtype.Bool
	SentAt    pgtype.Timestamp
	CreatedAt pgtype.Timestamp
}

type User struct {
	ID           int32
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     pgtype.Bool
	CreatedAt    pgtype.Timestamp
}
