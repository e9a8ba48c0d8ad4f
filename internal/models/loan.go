package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus tracks a loan through its lifecycle.
// Stored status is a cached projection of (due_date, now, return_date);
// read paths derive the effective status from current time.
type LoanStatus string

const (
	LoanStatusBorrowed LoanStatus = "borrowed"
	LoanStatusOverdue  LoanStatus = "overdue"
	LoanStatusReturned LoanStatus = "returned"
)

// Loan represents a borrow record from checkout to return
type Loan struct {
	ID           int32           `json:"id"`
	UserID       int32           `json:"user_id"`
	BookID       int32           `json:"book_id"`
	Status       LoanStatus      `json:"status"`
	BorrowDate   time.Time       `json:"borrow_date"`
	DueDate      time.Time       `json:"due_date"`
	ReturnDate   *time.Time      `json:"return_date,omitempty"`
	ReturnedBy   *int32          `json:"returned_by,omitempty"`
	FineAmount   decimal.Decimal `json:"fine_amount"`
	FinePaid     bool            `json:"fine_paid"`
	RenewalCount int32           `json:"renewal_count"`
	Notes        string          `json:"notes"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsActive reports whether the loan still holds a copy
func (l *Loan) IsActive() bool {
	return l.Status == LoanStatusBorrowed || l.Status == LoanStatusOverdue
}

// EffectiveStatus derives the true status at the given time, ignoring
// whatever stale status is stored
func (l *Loan) EffectiveStatus(now time.Time) LoanStatus {
	if l.Status == LoanStatusReturned {
		return LoanStatusReturned
	}
	if now.After(l.DueDate) {
		return LoanStatusOverdue
	}
	return LoanStatusBorrowed
}

// RenewalEntry is one append-only record of a loan renewal
type RenewalEntry struct {
	ID         int32     `json:"id"`
	LoanID     int32     `json:"loan_id"`
	RenewedAt  time.Time `json:"renewed_at"`
	NewDueDate time.Time `json:"new_due_date"`
	RenewedBy  int32     `json:"renewed_by"`
}

// BorrowBookRequest represents a request to borrow a book. UserID is
// optional; staff set it to borrow on behalf of a member.
type BorrowBookRequest struct {
	BookID int32  `json:"book_id" binding:"required,min=1"`
	UserID int32  `json:"user_id"`
	Notes  string `json:"notes"`
}

// ReturnBookRequest represents a request to return a loan
type ReturnBookRequest struct {
	Notes string `json:"notes"`
}

// LoanResponse represents a loan response with derived fields
type LoanResponse struct {
	ID           int32           `json:"id"`
	UserID       int32           `json:"user_id"`
	BookID       int32           `json:"book_id"`
	Status       LoanStatus      `json:"status"`
	BorrowDate   time.Time       `json:"borrow_date"`
	DueDate      time.Time       `json:"due_date"`
	ReturnDate   *time.Time      `json:"return_date,omitempty"`
	ReturnedBy   *int32          `json:"returned_by,omitempty"`
	FineAmount   decimal.Decimal `json:"fine_amount"`
	FinePaid     bool            `json:"fine_paid"`
	RenewalCount int32           `json:"renewal_count"`
	DaysOverdue  int             `json:"days_overdue,omitempty"`
	Notes        string          `json:"notes"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
