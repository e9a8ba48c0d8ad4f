package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/kipronoh/circulation/internal/database/queries"
	"github.com/kipronoh/circulation/internal/models"
)

// InventoryQuerier defines the interface for inventory database operations
type InventoryQuerier interface {
	GetBookByID(ctx context.Context, id int32) (queries.Book, error)
	DecrementAvailableCopies(ctx context.Context, id int32) (int64, error)
	IncrementAvailableCopies(ctx context.Context, id int32) error
	IncrementTotalReservations(ctx context.Context, id int32) error
	DecrementTotalReservations(ctx context.Context, id int32) error
}

// Ledger is the inventory contract the lifecycle services depend on;
// InventoryService is the production implementation
type Ledger interface {
	GetBook(ctx context.Context, bookID int32) (*models.Book, error)
	TryDecrement(ctx context.Context, bookID int32) (bool, error)
	Increment(ctx context.Context, bookID int32) error
	MarkReserved(ctx context.Context, bookID int32) error
	UnmarkReserved(ctx context.Context, bookID int32) error
}

// InventoryService owns a book's copy counters. Every availability
// mutation in the system goes through TryDecrement/Increment so the
// 0 <= available <= total invariant is enforced in one place.
type InventoryService struct {
	queries InventoryQuerier
	logger  *slog.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(querier InventoryQuerier, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		queries: querier,
		logger:  logger,
	}
}

// GetBook loads the circulation view of a book
func (s *InventoryService) GetBook(ctx context.Context, bookID int32) (*models.Book, error) {
	book, err := s.queries.GetBookByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NotFoundError("book not found")
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return convertToBook(book), nil
}

// TryDecrement claims one available copy. Returns false without side
// effect when no copy is free; the caller interprets that as
// "unavailable". The claim is a single conditional UPDATE, so two
// concurrent claims on the last copy yield exactly one true.
func (s *InventoryService) TryDecrement(ctx context.Context, bookID int32) (bool, error) {
	affected, err := s.queries.DecrementAvailableCopies(ctx, bookID)
	if err != nil {
		return false, fmt.Errorf("failed to decrement available copies: %w", err)
	}
	return affected > 0, nil
}

// Increment releases one copy back to the shelf, clamped to total_copies
func (s *InventoryService) Increment(ctx context.Context, bookID int32) error {
	if err := s.queries.IncrementAvailableCopies(ctx, bookID); err != nil {
		return fmt.Errorf("failed to increment available copies: %w", err)
	}
	return nil
}

// MarkReserved bumps the reporting-only reservation counter
func (s *InventoryService) MarkReserved(ctx context.Context, bookID int32) error {
	if err := s.queries.IncrementTotalReservations(ctx, bookID); err != nil {
		return fmt.Errorf("failed to mark book reserved: %w", err)
	}
	return nil
}

// UnmarkReserved releases the reporting-only reservation counter
func (s *InventoryService) UnmarkReserved(ctx context.Context, bookID int32) error {
	if err := s.queries.DecrementTotalReservations(ctx, bookID); err != nil {
		return fmt.Errorf("failed to unmark book reserved: %w", err)
	}
	return nil
}

// convertToBook converts a queries.Book to models.Book
func convertToBook(b queries.Book) *models.Book {
	book := &models.Book{
		ID:     b.ID,
		BookID: b.BookID,
		Title:  b.Title,
		Author: b.Author,
	}

	if b.TotalCopies.Valid {
		book.TotalCopies = b.TotalCopies.Int32
	}
	if b.AvailableCopies.Valid {
		book.AvailableCopies = b.AvailableCopies.Int32
	}
	if b.TotalReservations.Valid {
		book.TotalReservations = b.TotalReservations.Int32
	}
	if b.IsActive.Valid {
		book.IsActive = b.IsActive.Bool
	}
	if b.CreatedAt.Valid {
		book.CreatedAt = b.CreatedAt.Time
	}
	if b.UpdatedAt.Valid {
		book.UpdatedAt = b.UpdatedAt.Time
	}

	book.Status = book.DeriveStatus()
	return book
}
