package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/kipronoh/circulation/internal/config"
	"github.com/kipronoh/circulation/internal/database/queries"
	"github.com/kipronoh/circulation/internal/models"
)

// uniqueViolation is the Postgres error code raised when a partial
// unique index rejects a duplicate active loan or reservation
const uniqueViolation = "23505"

// LoanQuerier defines the interface for loan database operations
type LoanQuerier interface {
	CreateLoan(ctx context.Context, arg queries.CreateLoanParams) (queries.Loan, error)
	GetLoanByID(ctx context.Context, id int32) (queries.Loan, error)
	GetActiveLoanByUserAndBook(ctx context.Context, arg queries.GetActiveLoanByUserAndBookParams) (queries.Loan, error)
	CountActiveLoansByUser(ctx context.Context, userID int32) (int64, error)
	ListLoansByUser(ctx context.Context, arg queries.ListLoansByUserParams) ([]queries.Loan, error)
	ListOverdueLoans(ctx context.Context) ([]queries.Loan, error)
	ListLoansDueSoon(ctx context.Context, withinDays int32) ([]queries.Loan, error)
	ReturnLoan(ctx context.Context, arg queries.ReturnLoanParams) (queries.Loan, error)
	RenewLoan(ctx context.Context, arg queries.RenewLoanParams) (queries.Loan, error)
	CreateLoanRenewal(ctx context.Context, arg queries.CreateLoanRenewalParams) (queries.LoanRenewal, error)
	ListRenewalsByLoan(ctx context.Context, loanID int32) ([]queries.LoanRenewal, error)
	MarkLoansOverdue(ctx context.Context) (int64, error)
	PayLoanFine(ctx context.Context, id int32) error
}

// ReservationFulfiller hands a freed copy to the next waiting patron
type ReservationFulfiller interface {
	FulfillNext(ctx context.Context, bookID int32) error
}

// Notifier records a fire-and-forget message for a user
type Notifier interface {
	Notify(ctx context.Context, userID int32, kind models.NotificationKind, title, message string)
}

// LoanService owns the borrow record state machine: borrowed, overdue,
// returned. Fines are a pure function of (due date, evaluation time),
// never an accumulated total.
type LoanService struct {
	queries   LoanQuerier
	ledger    Ledger
	notifier  Notifier
	fulfiller ReservationFulfiller
	policy    config.CirculationConfig
	logger    *slog.Logger
}

// NewLoanService creates a new loan service. The reservation fulfiller
// is attached separately to break the construction cycle between the
// loan and reservation services.
func NewLoanService(querier LoanQuerier, ledger Ledger, notifier Notifier, policy config.CirculationConfig, logger *slog.Logger) *LoanService {
	return &LoanService{
		queries:  querier,
		ledger:   ledger,
		notifier: notifier,
		policy:   policy,
		logger:   logger,
	}
}

// SetReservationFulfiller attaches the reservation queue so returns can
// trigger fulfillment of the next waiter
func (s *LoanService) SetReservationFulfiller(fulfiller ReservationFulfiller) {
	s.fulfiller = fulfiller
}

// BorrowBook checks out a book to a user. The inventory claim happens
// before the loan row is created; a failed create rolls the claim back
// so the two steps behave as one transaction.
func (s *LoanService) BorrowBook(ctx context.Context, actor models.Actor, userID, bookID int32, notes string) (*models.LoanResponse, error) {
	if userID != actor.UserID && !actor.IsStaff() {
		return nil, models.ForbiddenError("cannot borrow on behalf of another user")
	}

	book, err := s.ledger.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if !book.IsAvailable() {
		return nil, models.UnavailableError("book is not available for borrowing")
	}

	// An overdue loan still holds a copy, so it blocks a second borrow
	// of the same title just like a current one.
	_, err = s.queries.GetActiveLoanByUserAndBook(ctx, queries.GetActiveLoanByUserAndBookParams{
		UserID: userID,
		BookID: bookID,
	})
	if err == nil {
		return nil, models.ConflictError("user already has this book on loan")
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing loans: %w", err)
	}

	activeCount, err := s.queries.CountActiveLoansByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active loans: %w", err)
	}
	if activeCount >= int64(s.policy.MaxConcurrentLoans) {
		return nil, models.LimitExceededError("user has reached the maximum number of concurrent loans (%d)", s.policy.MaxConcurrentLoans)
	}

	claimed, err := s.ledger.TryDecrement(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Lost the race for the last copy
		return nil, models.UnavailableError("book is not available for borrowing")
	}

	loan, err := s.createLoan(ctx, userID, bookID, notes)
	if err != nil {
		// The copy was claimed but the record failed; give it back
		if rbErr := s.ledger.Increment(ctx, bookID); rbErr != nil {
			s.logger.Error("Failed to roll back inventory claim",
				"book_id", bookID, "error", rbErr)
		}
		return nil, err
	}

	s.logger.Info("Book borrowed",
		"loan_id", loan.ID, "user_id", userID, "book_id", bookID, "due_date", loan.DueDate.Time)

	return s.convertToLoanResponse(loan), nil
}

// CreateLoanForReservation materializes a loan for a fulfilled
// reservation. The copy was already claimed by the fulfillment path, so
// the usual availability check is skipped; the caller compensates the
// ledger if this fails.
func (s *LoanService) CreateLoanForReservation(ctx context.Context, userID, bookID int32) (*models.LoanResponse, error) {
	loan, err := s.createLoan(ctx, userID, bookID, "created from reservation")
	if err != nil {
		return nil, err
	}
	return s.convertToLoanResponse(loan), nil
}

func (s *LoanService) createLoan(ctx context.Context, userID, bookID int32, notes string) (queries.Loan, error) {
	dueDate := time.Now().UTC().AddDate(0, 0, s.policy.BorrowDurationDays)

	loan, err := s.queries.CreateLoan(ctx, queries.CreateLoanParams{
		UserID:  userID,
		BookID:  bookID,
		DueDate: pgtype.Timestamp{Time: dueDate, Valid: true},
		Notes:   pgtype.Text{String: notes, Valid: notes != ""},
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return queries.Loan{}, models.ConflictError("user already has this book on loan")
		}
		return queries.Loan{}, fmt.Errorf("failed to create loan: %w", err)
	}
	return loan, nil
}

// ReturnBook finalizes a loan, releases its copy, and hands the freed
// copy to the reservation queue. Fulfillment is a side effect: its
// failure never fails the return.
func (s *LoanService) ReturnBook(ctx context.Context, actor models.Actor, loanID int32, notes string) (*models.LoanResponse, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if !actor.CanActOn(loan.UserID) {
		return nil, models.ForbiddenError("cannot return another user's loan")
	}

	if loan.Status == string(models.LoanStatusReturned) {
		return nil, models.ConflictError("book already returned")
	}

	// The return time, not some later read, is the overdue cutoff
	now := time.Now().UTC()
	fine := s.CalculateFine(loan.DueDate.Time, now)

	returned, err := s.queries.ReturnLoan(ctx, queries.ReturnLoanParams{
		ID:         loanID,
		ReturnedBy: pgtype.Int4{Int32: actor.UserID, Valid: true},
		FineAmount: decimalToNumeric(fine),
		Notes:      pgtype.Text{String: notes, Valid: notes != ""},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Raced with another return
			return nil, models.ConflictError("book already returned")
		}
		return nil, fmt.Errorf("failed to return loan: %w", err)
	}

	if err := s.ledger.Increment(ctx, loan.BookID); err != nil {
		return nil, err
	}

	s.logger.Info("Book returned",
		"loan_id", loanID, "book_id", loan.BookID, "fine", fine.StringFixed(2))

	if s.fulfiller != nil {
		if err := s.fulfiller.FulfillNext(ctx, loan.BookID); err != nil {
			s.logger.Error("Reservation fulfillment after return failed",
				"book_id", loan.BookID, "error", err)
		}
	}

	if fine.IsPositive() && s.notifier != nil {
		s.notifier.Notify(ctx, loan.UserID, models.NotificationFineAccrued,
			"Overdue fine",
			fmt.Sprintf("A fine of %s was recorded for a late return.", fine.StringFixed(2)))
	}

	return s.convertToLoanResponse(returned), nil
}

// RenewLoan extends a loan's due date. An overdue loan may not be
// renewed; the overdue check uses current time, never stored status.
func (s *LoanService) RenewLoan(ctx context.Context, actor models.Actor, loanID int32) (*models.LoanResponse, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if !actor.CanActOn(loan.UserID) {
		return nil, models.ForbiddenError("cannot renew another user's loan")
	}

	if loan.Status == string(models.LoanStatusReturned) {
		return nil, models.ConflictError("cannot renew a returned loan")
	}

	renewalCount := int32(0)
	if loan.RenewalCount.Valid {
		renewalCount = loan.RenewalCount.Int32
	}
	if renewalCount >= int32(s.policy.MaxRenewals) {
		return nil, models.LimitExceededError("loan has reached the maximum number of renewals (%d)", s.policy.MaxRenewals)
	}

	if time.Now().UTC().After(loan.DueDate.Time) {
		return nil, models.ConflictError("cannot renew an overdue loan")
	}

	newDueDate := loan.DueDate.Time.AddDate(0, 0, s.policy.RenewalDurationDays)

	renewed, err := s.queries.RenewLoan(ctx, queries.RenewLoanParams{
		ID:      loanID,
		DueDate: pgtype.Timestamp{Time: newDueDate, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to renew loan: %w", err)
	}

	if _, err := s.queries.CreateLoanRenewal(ctx, queries.CreateLoanRenewalParams{
		LoanID:     loanID,
		NewDueDate: pgtype.Timestamp{Time: newDueDate, Valid: true},
		RenewedBy:  actor.UserID,
	}); err != nil {
		return nil, fmt.Errorf("failed to record renewal: %w", err)
	}

	s.logger.Info("Loan renewed",
		"loan_id", loanID, "new_due_date", newDueDate, "renewal_count", renewed.RenewalCount.Int32)

	return s.convertToLoanResponse(renewed), nil
}

// PayFine marks a loan's fine as settled. Staff only; fines are tracked
// as numbers, not collected.
func (s *LoanService) PayFine(ctx context.Context, actor models.Actor, loanID int32) error {
	if !actor.IsStaff() {
		return models.ForbiddenError("only staff may settle fines")
	}

	if _, err := s.getLoan(ctx, loanID); err != nil {
		return err
	}

	if err := s.queries.PayLoanFine(ctx, loanID); err != nil {
		return fmt.Errorf("failed to pay fine: %w", err)
	}
	return nil
}

// GetUserLoans lists a user's loans, newest first
func (s *LoanService) GetUserLoans(ctx context.Context, actor models.Actor, userID int32, limit, offset int32) ([]models.LoanResponse, error) {
	if !actor.CanActOn(userID) {
		return nil, models.ForbiddenError("cannot list another user's loans")
	}

	loans, err := s.queries.ListLoansByUser(ctx, queries.ListLoansByUserParams{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}

	responses := make([]models.LoanResponse, 0, len(loans))
	for _, loan := range loans {
		responses = append(responses, *s.convertToLoanResponse(loan))
	}
	return responses, nil
}

// GetOverdueLoans lists all loans past their due date (staff view)
func (s *LoanService) GetOverdueLoans(ctx context.Context, actor models.Actor) ([]models.LoanResponse, error) {
	if !actor.IsStaff() {
		return nil, models.ForbiddenError("only staff may list overdue loans")
	}

	loans, err := s.queries.ListOverdueLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue loans: %w", err)
	}

	responses := make([]models.LoanResponse, 0, len(loans))
	for _, loan := range loans {
		responses = append(responses, *s.convertToLoanResponse(loan))
	}
	return responses, nil
}

// GetRenewalHistory lists the append-only renewal log of a loan
func (s *LoanService) GetRenewalHistory(ctx context.Context, actor models.Actor, loanID int32) ([]models.RenewalEntry, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !actor.CanActOn(loan.UserID) {
		return nil, models.ForbiddenError("cannot view another user's loan")
	}

	renewals, err := s.queries.ListRenewalsByLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list renewals: %w", err)
	}

	entries := make([]models.RenewalEntry, 0, len(renewals))
	for _, r := range renewals {
		entries = append(entries, models.RenewalEntry{
			ID:         r.ID,
			LoanID:     r.LoanID,
			RenewedAt:  r.RenewedAt.Time,
			NewDueDate: r.NewDueDate.Time,
			RenewedBy:  r.RenewedBy,
		})
	}
	return entries, nil
}

// MarkOverdueLoans refreshes stored status for listings; invoked by the
// scheduled sweep
func (s *LoanService) MarkOverdueLoans(ctx context.Context) (int64, error) {
	marked, err := s.queries.MarkLoansOverdue(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue loans: %w", err)
	}
	if marked > 0 {
		s.logger.Info("Marked loans overdue", "count", marked)
	}
	return marked, nil
}

// NotifyDueSoon records reminders for loans due within two days
func (s *LoanService) NotifyDueSoon(ctx context.Context) error {
	if s.notifier == nil {
		return nil
	}

	loans, err := s.queries.ListLoansDueSoon(ctx, 2)
	if err != nil {
		return fmt.Errorf("failed to list loans due soon: %w", err)
	}

	for _, loan := range loans {
		s.notifier.Notify(ctx, loan.UserID, models.NotificationDueSoon,
			"Book due soon",
			fmt.Sprintf("A borrowed book is due on %s.", loan.DueDate.Time.Format("2006-01-02")))
	}
	return nil
}

// CalculateFine computes the fine for a loan overdue at the cutoff time.
// It is a pure function of (dueDate, cutoff): days overdue are rounded
// up, multiplied by the per-day rate, and capped at the maximum.
func (s *LoanService) CalculateFine(dueDate, cutoff time.Time) decimal.Decimal {
	if !cutoff.After(dueDate) {
		return decimal.Zero
	}

	daysOverdue := int64(math.Ceil(cutoff.Sub(dueDate).Hours() / 24))
	if daysOverdue <= 0 {
		return decimal.Zero
	}

	fine := s.policy.FinePerDayDecimal().Mul(decimal.NewFromInt(daysOverdue))
	maxFine := s.policy.MaxFineDecimal()
	if fine.GreaterThan(maxFine) {
		return maxFine
	}
	return fine
}

func (s *LoanService) getLoan(ctx context.Context, loanID int32) (queries.Loan, error) {
	loan, err := s.queries.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return queries.Loan{}, models.NotFoundError("loan not found")
		}
		return queries.Loan{}, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// convertToLoanResponse converts a queries.Loan to models.LoanResponse,
// deriving the effective status from current time
func (s *LoanService) convertToLoanResponse(loan queries.Loan) *models.LoanResponse {
	now := time.Now().UTC()

	response := &models.LoanResponse{
		ID:         loan.ID,
		UserID:     loan.UserID,
		BookID:     loan.BookID,
		Status:     models.LoanStatus(loan.Status),
		BorrowDate: loan.BorrowDate.Time,
		DueDate:    loan.DueDate.Time,
		FineAmount: numericToDecimal(loan.FineAmount),
		Notes:      loan.Notes.String,
		CreatedAt:  loan.CreatedAt.Time,
		UpdatedAt:  loan.UpdatedAt.Time,
	}

	if loan.FinePaid.Valid {
		response.FinePaid = loan.FinePaid.Bool
	}
	if loan.RenewalCount.Valid {
		response.RenewalCount = loan.RenewalCount.Int32
	}
	if loan.ReturnDate.Valid {
		response.ReturnDate = &loan.ReturnDate.Time
	}
	if loan.ReturnedBy.Valid {
		response.ReturnedBy = &loan.ReturnedBy.Int32
	}

	// Stored status may lag between sweeps; the response never does
	if response.Status != models.LoanStatusReturned && now.After(response.DueDate) {
		response.Status = models.LoanStatusOverdue
		response.DaysOverdue = int(math.Ceil(now.Sub(response.DueDate).Hours() / 24))
		if response.FineAmount.IsZero() {
			response.FineAmount = s.CalculateFine(response.DueDate, now)
		}
	}

	return response
}

// decimalToNumeric converts a decimal amount to pgtype.Numeric with two
// decimal places; zero maps to NULL so the column default is kept
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	if !d.IsPositive() {
		return pgtype.Numeric{}
	}
	scaled := d.Shift(2)
	return pgtype.Numeric{
		Int:   scaled.BigInt(),
		Exp:   -2,
		Valid: true,
	}
}

// numericToDecimal converts a pgtype.Numeric to decimal, honoring the
// stored scale
func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
