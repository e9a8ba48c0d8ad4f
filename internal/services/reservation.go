package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kipronoh/circulation/internal/config"
	"github.com/kipronoh/circulation/internal/database/queries"
	"github.com/kipronoh/circulation/internal/models"
)

// ReservationQuerier defines the interface for reservation database operations
type ReservationQuerier interface {
	CreateReservation(ctx context.Context, arg queries.CreateReservationParams) (queries.Reservation, error)
	GetReservationByID(ctx context.Context, id int32) (queries.Reservation, error)
	GetActiveReservationByUserAndBook(ctx context.Context, arg queries.GetActiveReservationByUserAndBookParams) (queries.Reservation, error)
	GetNextActiveReservationForBook(ctx context.Context, bookID int32) (queries.Reservation, error)
	ListActiveReservationsByBook(ctx context.Context, bookID int32) ([]queries.Reservation, error)
	ListReservationsByUser(ctx context.Context, arg queries.ListReservationsByUserParams) ([]queries.Reservation, error)
	UpdateReservationStatus(ctx context.Context, arg queries.UpdateReservationStatusParams) (queries.Reservation, error)
	ShiftPrioritiesAfterRemoval(ctx context.Context, arg queries.ShiftPrioritiesAfterRemovalParams) error
	ListExpiredActiveReservations(ctx context.Context) ([]queries.Reservation, error)
}

// LoanCreator materializes a loan for a fulfilled reservation, bypassing
// the normal availability check since the copy was already claimed
type LoanCreator interface {
	CreateLoanForReservation(ctx context.Context, userID, bookID int32) (*models.LoanResponse, error)
}

// ReservationService owns the per-book waitlist. Active reservations for
// a book always hold priorities {1..N}; every removal (cancel, expire,
// fulfill) renumbers the remainder so "lowest priority" is always "next
// in line".
type ReservationService struct {
	queries  ReservationQuerier
	ledger   Ledger
	loans    LoanCreator
	notifier Notifier
	policy   config.CirculationConfig
	logger   *slog.Logger
}

// NewReservationService creates a new reservation service
func NewReservationService(querier ReservationQuerier, ledger Ledger, loans LoanCreator, notifier Notifier, policy config.CirculationConfig, logger *slog.Logger) *ReservationService {
	return &ReservationService{
		queries:  querier,
		ledger:   ledger,
		loans:    loans,
		notifier: notifier,
		policy:   policy,
		logger:   logger,
	}
}

// ReserveBook joins a book's waitlist. Reservations exist only for
// unavailable books; an available book must be borrowed instead.
func (s *ReservationService) ReserveBook(ctx context.Context, actor models.Actor, userID, bookID int32) (*models.ReservationResponse, error) {
	if userID != actor.UserID && !actor.IsStaff() {
		return nil, models.ForbiddenError("cannot reserve on behalf of another user")
	}

	book, err := s.ledger.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if !book.IsActive {
		return nil, models.UnavailableError("book is not in circulation")
	}
	if book.IsAvailable() {
		return nil, models.UnavailableError("book is available for immediate borrowing")
	}

	_, err = s.queries.GetActiveReservationByUserAndBook(ctx, queries.GetActiveReservationByUserAndBookParams{
		UserID: userID,
		BookID: bookID,
	})
	if err == nil {
		return nil, models.ConflictError("user already has an active reservation for this book")
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing reservations: %w", err)
	}

	expiryDate := time.Now().UTC().AddDate(0, 0, s.policy.PickupWindowDays)

	reservation, err := s.queries.CreateReservation(ctx, queries.CreateReservationParams{
		UserID:     userID,
		BookID:     bookID,
		ExpiryDate: pgtype.Timestamp{Time: expiryDate, Valid: true},
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, models.ConflictError("user already has an active reservation for this book")
		}
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	if err := s.ledger.MarkReserved(ctx, bookID); err != nil {
		s.logger.Error("Failed to bump reservation counter", "book_id", bookID, "error", err)
	}

	s.logger.Info("Book reserved",
		"reservation_id", reservation.ID, "user_id", userID, "book_id", bookID, "priority", reservation.Priority)

	return convertToReservationResponse(reservation), nil
}

// CancelReservation removes an active reservation and closes the gap it
// leaves in the queue
func (s *ReservationService) CancelReservation(ctx context.Context, actor models.Actor, reservationID int32) (*models.ReservationResponse, error) {
	reservation, err := s.getReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	if !actor.CanActOn(reservation.UserID) {
		return nil, models.ForbiddenError("cannot cancel another user's reservation")
	}

	if reservation.Status != string(models.ReservationStatusActive) {
		return nil, models.ConflictError("reservation is not active")
	}

	cancelled, err := s.queries.UpdateReservationStatus(ctx, queries.UpdateReservationStatusParams{
		ID:     reservationID,
		Status: string(models.ReservationStatusCancelled),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel reservation: %w", err)
	}

	s.release(ctx, reservation.BookID, reservation.Priority)

	s.logger.Info("Reservation cancelled",
		"reservation_id", reservationID, "book_id", reservation.BookID)

	return convertToReservationResponse(cancelled), nil
}

// FulfillNext hands a freed copy to the head of the book's queue.
// An empty queue or a lost inventory race is a no-op: the reservation
// stays active and is retried on the next return.
func (s *ReservationService) FulfillNext(ctx context.Context, bookID int32) error {
	next, err := s.queries.GetNextActiveReservationForBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("failed to get next reservation: %w", err)
	}

	claimed, err := s.ledger.TryDecrement(ctx, bookID)
	if err != nil {
		return err
	}
	if !claimed {
		// Another path took the copy first; the reservation waits
		return nil
	}

	loan, err := s.loans.CreateLoanForReservation(ctx, next.UserID, bookID)
	if err != nil {
		// Give the claimed copy back; the reservation stays active
		if rbErr := s.ledger.Increment(ctx, bookID); rbErr != nil {
			s.logger.Error("Failed to roll back fulfillment claim",
				"book_id", bookID, "error", rbErr)
		}
		return fmt.Errorf("failed to create loan for reservation %d: %w", next.ID, err)
	}

	now := time.Now().UTC()
	if _, err := s.queries.UpdateReservationStatus(ctx, queries.UpdateReservationStatusParams{
		ID:          next.ID,
		Status:      string(models.ReservationStatusFulfilled),
		FulfilledAt: pgtype.Timestamp{Time: now, Valid: true},
	}); err != nil {
		return fmt.Errorf("failed to mark reservation fulfilled: %w", err)
	}

	s.release(ctx, bookID, next.Priority)

	pickupDeadline := now.AddDate(0, 0, s.policy.PickupWindowDays)
	if s.notifier != nil {
		s.notifier.Notify(ctx, next.UserID, models.NotificationBookReady,
			"Reserved book available",
			fmt.Sprintf("Your reserved book is ready for pickup until %s.", pickupDeadline.Format("2006-01-02")))
	}

	s.logger.Info("Reservation fulfilled",
		"reservation_id", next.ID, "book_id", bookID, "user_id", next.UserID, "loan_id", loan.ID)

	return nil
}

// ExpireStale marks every active reservation past its expiry date as
// expired and renumbers each affected book's queue. Reservations are
// processed per book in priority order so the renumbering stays
// consistent; the operation is idempotent.
func (s *ReservationService) ExpireStale(ctx context.Context) (int, error) {
	stale, err := s.queries.ListExpiredActiveReservations(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired reservations: %w", err)
	}

	// Earlier removals in the same book shift the stored priorities of
	// later ones; track the shift so each removal closes the right gap.
	shifted := make(map[int32]int32)
	expiredCount := 0
	for _, reservation := range stale {
		if _, err := s.queries.UpdateReservationStatus(ctx, queries.UpdateReservationStatusParams{
			ID:     reservation.ID,
			Status: string(models.ReservationStatusExpired),
		}); err != nil {
			return expiredCount, fmt.Errorf("failed to expire reservation %d: %w", reservation.ID, err)
		}

		effectivePriority := reservation.Priority - shifted[reservation.BookID]
		s.release(ctx, reservation.BookID, effectivePriority)
		shifted[reservation.BookID]++
		expiredCount++
	}

	if expiredCount > 0 {
		s.logger.Info("Expired stale reservations", "count", expiredCount)
	}
	return expiredCount, nil
}

// GetUserReservations lists a user's reservations, newest first
func (s *ReservationService) GetUserReservations(ctx context.Context, actor models.Actor, userID int32, limit, offset int32) ([]models.ReservationResponse, error) {
	if !actor.CanActOn(userID) {
		return nil, models.ForbiddenError("cannot list another user's reservations")
	}

	reservations, err := s.queries.ListReservationsByUser(ctx, queries.ListReservationsByUserParams{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	responses := make([]models.ReservationResponse, 0, len(reservations))
	for _, reservation := range reservations {
		responses = append(responses, *convertToReservationResponse(reservation))
	}
	return responses, nil
}

// GetBookQueue lists a book's active waitlist in priority order (staff view)
func (s *ReservationService) GetBookQueue(ctx context.Context, actor models.Actor, bookID int32) ([]models.ReservationResponse, error) {
	if !actor.IsStaff() {
		return nil, models.ForbiddenError("only staff may view a book's reservation queue")
	}

	reservations, err := s.queries.ListActiveReservationsByBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list book reservations: %w", err)
	}

	responses := make([]models.ReservationResponse, 0, len(reservations))
	for _, reservation := range reservations {
		responses = append(responses, *convertToReservationResponse(reservation))
	}
	return responses, nil
}

// release runs the bookkeeping shared by every terminal transition:
// drop the reporting counter and close the priority gap
func (s *ReservationService) release(ctx context.Context, bookID, priority int32) {
	if err := s.ledger.UnmarkReserved(ctx, bookID); err != nil {
		s.logger.Error("Failed to drop reservation counter", "book_id", bookID, "error", err)
	}
	if err := s.queries.ShiftPrioritiesAfterRemoval(ctx, queries.ShiftPrioritiesAfterRemovalParams{
		BookID:   bookID,
		Priority: priority,
	}); err != nil {
		s.logger.Error("Failed to renumber reservation queue", "book_id", bookID, "error", err)
	}
}

func (s *ReservationService) getReservation(ctx context.Context, id int32) (queries.Reservation, error) {
	reservation, err := s.queries.GetReservationByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return queries.Reservation{}, models.NotFoundError("reservation not found")
		}
		return queries.Reservation{}, fmt.Errorf("failed to get reservation: %w", err)
	}
	return reservation, nil
}

// convertToReservationResponse converts a queries.Reservation to models.ReservationResponse
func convertToReservationResponse(r queries.Reservation) *models.ReservationResponse {
	response := &models.ReservationResponse{
		ID:              r.ID,
		UserID:          r.UserID,
		BookID:          r.BookID,
		Status:          models.ReservationStatus(r.Status),
		Priority:        r.Priority,
		ReservationDate: r.ReservationDate.Time,
		ExpiryDate:      r.ExpiryDate.Time,
		CreatedAt:       r.CreatedAt.Time,
		UpdatedAt:       r.UpdatedAt.Time,
	}

	if r.FulfilledAt.Valid {
		response.FulfilledAt = &r.FulfilledAt.Time
	}
	if r.FulfilledBy.Valid {
		response.FulfilledBy = &r.FulfilledBy.Int32
	}

	return response
}
