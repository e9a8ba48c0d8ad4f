package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kipronoh/circulation/internal/config"
	"github.com/kipronoh/circulation/internal/database/queries"
	"github.com/kipronoh/circulation/internal/models"
)

// MockLoanQuerier is a mock implementation of LoanQuerier
type MockLoanQuerier struct {
	mock.Mock
}

func (m *MockLoanQuerier) CreateLoan(ctx context.Context, arg queries.CreateLoanParams) (queries.Loan, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Loan), args.Error(1)
}

func (m *MockLoanQuerier) GetLoanByID(ctx context.Context, id int32) (queries.Loan, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(queries.Loan), args.Error(1)
}

func (m *MockLoanQuerier) GetActiveLoanByUserAndBook(ctx context.Context, arg queries.GetActiveLoanByUserAndBookParams) (queries.Loan, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Loan), args.Error(1)
}

func (m *MockLoanQuerier) CountActiveLoansByUser(ctx context.Context, userID int32) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLoanQuerier) ListLoansByUser(ctx context.Context, arg queries.ListLoansByUserParams) ([]queries.Loan, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]queries.Loan), args.Error(1)
}

func (m *MockLoanQuerier) ListOverdueLoans(ctx context.Context) ([]queries.Loan, error) {
	args := m.Called(ctx)
	return args.Get(0).([]queries.Loan), args.Error(1)
}

func (m *MockLoanQuerier) ListLoansDueSoon(ctx context.Context, withinDays int32) ([]queries.Loan, error) {
	args := m.Called(ctx, withinDays)
	return args.Get(0).([]queries.Loan), args.Error(1)
}

func (m *MockLoanQuerier) ReturnLoan(ctx context.Context, arg queries.ReturnLoanParams) (queries.Loan, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Loan), args.Error(1)
}

func (m *MockLoanQuerier) RenewLoan(ctx context.Context, arg queries.RenewLoanParams) (queries.Loan, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Loan), args.Error(1)
}

func (m *MockLoanQuerier) CreateLoanRenewal(ctx context.Context, arg queries.CreateLoanRenewalParams) (queries.LoanRenewal, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.LoanRenewal), args.Error(1)
}

func (m *MockLoanQuerier) ListRenewalsByLoan(ctx context.Context, loanID int32) ([]queries.LoanRenewal, error) {
	args := m.Called(ctx, loanID)
	return args.Get(0).([]queries.LoanRenewal), args.Error(1)
}

func (m *MockLoanQuerier) MarkLoansOverdue(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLoanQuerier) PayLoanFine(ctx context.Context, id int32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockLedger is a mock implementation of Ledger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) GetBook(ctx context.Context, bookID int32) (*models.Book, error) {
	args := m.Called(ctx, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Book), args.Error(1)
}

func (m *MockLedger) TryDecrement(ctx context.Context, bookID int32) (bool, error) {
	args := m.Called(ctx, bookID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) Increment(ctx context.Context, bookID int32) error {
	args := m.Called(ctx, bookID)
	return args.Error(0)
}

func (m *MockLedger) MarkReserved(ctx context.Context, bookID int32) error {
	args := m.Called(ctx, bookID)
	return args.Error(0)
}

func (m *MockLedger) UnmarkReserved(ctx context.Context, bookID int32) error {
	args := m.Called(ctx, bookID)
	return args.Error(0)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userID int32, kind models.NotificationKind, title, message string) {
	m.Called(ctx, userID, kind, title, message)
}

// MockFulfiller is a mock implementation of ReservationFulfiller
type MockFulfiller struct {
	mock.Mock
}

func (m *MockFulfiller) FulfillNext(ctx context.Context, bookID int32) error {
	args := m.Called(ctx, bookID)
	return args.Error(0)
}

func testPolicy() config.CirculationConfig {
	return config.CirculationConfig{
		BorrowDurationDays:  14,
		RenewalDurationDays: 7,
		MaxRenewals:         2,
		FinePerDay:          0.50,
		MaxFineAmount:       50.00,
		PickupWindowDays:    3,
		MaxConcurrentLoans:  5,
	}
}

func testLogger() *slog.Logger {
	return slog.Default()
}

func testActor(userID int32) models.Actor {
	return models.Actor{UserID: userID, Role: models.RoleMember}
}

func staffActor(userID int32) models.Actor {
	return models.Actor{UserID: userID, Role: models.RoleLibrarian}
}

func availableBook(id int32, available int32) *models.Book {
	return &models.Book{
		ID:              id,
		BookID:          "BK-001",
		Title:           "Test Book",
		Author:          "Test Author",
		TotalCopies:     5,
		AvailableCopies: available,
		IsActive:        true,
	}
}

func activeLoan(id, userID, bookID int32, dueDate time.Time) queries.Loan {
	return queries.Loan{
		ID:         id,
		UserID:     userID,
		BookID:     bookID,
		Status:     "borrowed",
		BorrowDate: pgtype.Timestamp{Time: time.Now().UTC(), Valid: true},
		DueDate:    pgtype.Timestamp{Time: dueDate, Valid: true},
	}
}

func newTestLoanService(querier *MockLoanQuerier, ledger *MockLedger, notifier *MockNotifier) *LoanService {
	return NewLoanService(querier, ledger, notifier, testPolicy(), testLogger())
}

func TestLoanService_BorrowBook_Success(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	mockLedger := &MockLedger{}
	service := newTestLoanService(mockQuerier, mockLedger, nil)

	ctx := context.Background()
	actor := testActor(1)
	dueDate := time.Now().UTC().AddDate(0, 0, 14)

	mockLedger.On("GetBook", ctx, int32(2)).Return(availableBook(2, 3), nil)
	mockQuerier.On("GetActiveLoanByUserAndBook", ctx, queries.GetActiveLoanByUserAndBookParams{
		UserID: 1, BookID: 2,
	}).Return(queries.Loan{}, pgx.ErrNoRows)
	mockQuerier.On("CountActiveLoansByUser", ctx, int32(1)).Return(int64(2), nil)
	mockLedger.On("TryDecrement", ctx, int32(2)).Return(true, nil)
	mockQuerier.On("CreateLoan", ctx, mock.AnythingOfType("queries.CreateLoanParams")).
		Return(activeLoan(10, 1, 2, dueDate), nil)

	loan, err := service.BorrowBook(ctx, actor, 1, 2, "")

	require.NoError(t, err)
	assert.Equal(t, int32(10), loan.ID)
	assert.Equal(t, models.LoanStatusBorrowed, loan.Status)
	mockQuerier.AssertExpectations(t)
	mockLedger.AssertExpectations(t)
}

func TestLoanService_BorrowBook_ForbiddenForOtherUser(t *testing.T) {
	service := newTestLoanService(&MockLoanQuerier{}, &MockLedger{}, nil)

	_, err := service.BorrowBook(context.Background(), testActor(1), 2, 3, "")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindForbidden, models.KindOf(err))
}

func TestLoanService_BorrowBook_StaffOnBehalf(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	mockLedger := &MockLedger{}
	service := newTestLoanService(mockQuerier, mockLedger, nil)

	ctx := context.Background()
	dueDate := time.Now().UTC().AddDate(0, 0, 14)

	mockLedger.On("GetBook", ctx, int32(2)).Return(availableBook(2, 1), nil)
	mockQuerier.On("GetActiveLoanByUserAndBook", ctx, mock.Anything).Return(queries.Loan{}, pgx.ErrNoRows)
	mockQuerier.On("CountActiveLoansByUser", ctx, int32(7)).Return(int64(0), nil)
	mockLedger.On("TryDecrement", ctx, int32(2)).Return(true, nil)
	mockQuerier.On("CreateLoan", ctx, mock.AnythingOfType("queries.CreateLoanParams")).
		Return(activeLoan(11, 7, 2, dueDate), nil)

	loan, err := service.BorrowBook(ctx, staffActor(99), 7, 2, "")

	require.NoError(t, err)
	assert.Equal(t, int32(7), loan.UserID)
}

func TestLoanService_BorrowBook_Unavailable(t *testing.T) {
	mockLedger := &MockLedger{}
	service := newTestLoanService(&MockLoanQuerier{}, mockLedger, nil)

	ctx := context.Background()
	mockLedger.On("GetBook", ctx, int32(2)).Return(availableBook(2, 0), nil)

	_, err := service.BorrowBook(ctx, testActor(1), 1, 2, "")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindUnavailable, models.KindOf(err))
}

func TestLoanService_BorrowBook_DuplicateActiveLoan(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	mockLedger := &MockLedger{}
	service := newTestLoanService(mockQuerier, mockLedger, nil)

	ctx := context.Background()
	mockLedger.On("GetBook", ctx, int32(2)).Return(availableBook(2, 3), nil)
	mockQuerier.On("GetActiveLoanByUserAndBook", ctx, mock.Anything).
		Return(activeLoan(5, 1, 2, time.Now().UTC().AddDate(0, 0, 7)), nil)

	_, err := service.BorrowBook(ctx, testActor(1), 1, 2, "")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindConflict, models.KindOf(err))
}

func TestLoanService_BorrowBook_OverdueLoanBlocksSecondCopy(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	mockLedger := &MockLedger{}
	service := newTestLoanService(mockQuerier, mockLedger, nil)

	ctx := context.Background()
	overdue := activeLoan(5, 1, 2, time.Now().UTC().AddDate(0, 0, -3))
	overdue.Status = "overdue"

	mockLedger.On("GetBook", ctx, int32(2)).Return(availableBook(2, 3), nil)
	mockQuerier.On("GetActiveLoanByUserAndBook", ctx, mock.Anything).Return(overdue, nil)

	_, err := service.BorrowBook(ctx, testActor(1), 1, 2, "")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindConflict, models.KindOf(err))
}

func TestLoanService_BorrowBook_LoanLimitReached(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	mockLedger := &MockLedger{}
	service := newTestLoanService(mockQuerier, mockLedger, nil)

	ctx := context.Background()
	mockLedger.On("GetBook", ctx, int32(2)).Return(availableBook(2, 3), nil)
	mockQuerier.On("GetActiveLoanByUserAndBook", ctx, mock.Anything).Return(queries.Loan{}, pgx.ErrNoRows)
	mockQuerier.On("CountActiveLoansByUser", ctx, int32(1)).Return(int64(5), nil)

	_, err := service.BorrowBook(ctx, testActor(1), 1, 2, "")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindLimitExceeded, models.KindOf(err))
	assert.Contains(t, err.Error(), "5")
}

func TestLoanService_BorrowBook_LostRaceForLastCopy(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	mockLedger := &MockLedger{}
	service := newTestLoanService(mockQuerier, mockLedger, nil)

	ctx := context.Background()
	mockLedger.On("GetBook", ctx, int32(2)).Return(availableBook(2, 1), nil)
	mockQuerier.On("GetActiveLoanByUserAndBook", ctx, mock.Anything).Return(queries.Loan{}, pgx.ErrNoRows)
	mockQuerier.On("CountActiveLoansByUser", ctx, int32(1)).Return(int64(0), nil)
	mockLedger.On("TryDecrement", ctx, int32(2)).Return(false, nil)

	_, err := service.BorrowBook(ctx, testActor(1), 1, 2, "")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindUnavailable, models.KindOf(err))
	mockQuerier.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything)
}

func TestLoanService_BorrowBook_RollsBackClaimOnCreateFailure(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	mockLedger := &MockLedger{}
	service := newTestLoanService(mockQuerier, mockLedger, nil)

	ctx := context.Background()
	mockLedger.On("GetBook", ctx, int32(2)).Return(availableBook(2, 1), nil)
	mockQuerier.On("GetActiveLoanByUserAndBook", ctx, mock.Anything).Return(queries.Loan{}, pgx.ErrNoRows)
	mockQuerier.On("CountActiveLoansByUser", ctx, int32(1)).Return(int64(0), nil)
	mockLedger.On("TryDecrement", ctx, int32(2)).Return(true, nil)
	mockQuerier.On("CreateLoan", ctx, mock.Anything).Return(queries.Loan{}, errors.New("insert failed"))
	mockLedger.On("Increment", ctx, int32(2)).Return(nil)

	_, err := service.BorrowBook(ctx, testActor(1), 1, 2, "")

	require.Error(t, err)
	mockLedger.AssertCalled(t, "Increment", ctx, int32(2))
}

func TestLoanService_ReturnBook_OnTime(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	mockLedger := &MockLedger{}
	mockFulfiller := &MockFulfiller{}
	service := newTestLoanService(mockQuerier, mockLedger, nil)
	service.SetReservationFulfiller(mockFulfiller)

	ctx := context.Background()
	dueDate := time.Now().UTC().AddDate(0, 0, 7)
	loan := activeLoan(10, 1, 2, dueDate)

	returned := loan
	returned.Status = "returned"
	returned.ReturnDate = pgtype.Timestamp{Time: time.Now().UTC(), Valid: true}

	mockQuerier.On("GetLoanByID", ctx, int32(10)).Return(loan, nil)
	mockQuerier.On("ReturnLoan", ctx, mock.MatchedBy(func(arg queries.ReturnLoanParams) bool {
		// No fine on an on-time return
		return arg.ID == 10 && !arg.FineAmount.Valid
	})).Return(returned, nil)
	mockLedger.On("Increment", ctx, int32(2)).Return(nil)
	mockFulfiller.On("FulfillNext", ctx, int32(2)).Return(nil)

	result, err := service.ReturnBook(ctx, testActor(1), 10, "")

	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusReturned, result.Status)
	assert.True(t, result.FineAmount.IsZero())
	mockFulfiller.AssertCalled(t, "FulfillNext", ctx, int32(2))
}

func TestLoanService_ReturnBook_OverdueRecordsFine(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	mockLedger := &MockLedger{}
	mockNotifier := &MockNotifier{}
	service := newTestLoanService(mockQuerier, mockLedger, mockNotifier)

	ctx := context.Background()
	dueDate := time.Now().UTC().AddDate(0, 0, -4)
	loan := activeLoan(10, 1, 2, dueDate)
	loan.Status = "overdue"

	returned := loan
	returned.Status = "returned"
	returned.FineAmount = pgtype.Numeric{Int: decimal.NewFromInt(200).BigInt(), Exp: -2, Valid: true}

	mockQuerier.On("GetLoanByID", ctx, int32(10)).Return(loan, nil)
	mockQuerier.On("ReturnLoan", ctx, mock.MatchedBy(func(arg queries.ReturnLoanParams) bool {
		return arg.FineAmount.Valid
	})).Return(returned, nil)
	mockLedger.On("Increment", ctx, int32(2)).Return(nil)
	mockNotifier.On("Notify", ctx, int32(1), models.NotificationFineAccrued, mock.Anything, mock.Anything).Return()

	result, err := service.ReturnBook(ctx, testActor(1), 10, "")

	require.NoError(t, err)
	assert.True(t, result.FineAmount.Equal(decimal.NewFromFloat(2.00)))
	mockNotifier.AssertExpectations(t)
}

func TestLoanService_ReturnBook_AlreadyReturned(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	service := newTestLoanService(mockQuerier, &MockLedger{}, nil)

	ctx := context.Background()
	loan := activeLoan(10, 1, 2, time.Now().UTC())
	loan.Status = "returned"

	mockQuerier.On("GetLoanByID", ctx, int32(10)).Return(loan, nil)

	_, err := service.ReturnBook(ctx, testActor(1), 10, "")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindConflict, models.KindOf(err))
}

func TestLoanService_ReturnBook_RacedReturnIsConflict(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	mockLedger := &MockLedger{}
	service := newTestLoanService(mockQuerier, mockLedger, nil)

	ctx := context.Background()
	loan := activeLoan(10, 1, 2, time.Now().UTC().AddDate(0, 0, 7))

	mockQuerier.On("GetLoanByID", ctx, int32(10)).Return(loan, nil)
	mockQuerier.On("ReturnLoan", ctx, mock.Anything).Return(queries.Loan{}, pgx.ErrNoRows)

	_, err := service.ReturnBook(ctx, testActor(1), 10, "")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindConflict, models.KindOf(err))
	// The raced loser must not release a copy it never held
	mockLedger.AssertNotCalled(t, "Increment", mock.Anything, mock.Anything)
}

func TestLoanService_ReturnBook_ForbiddenForOtherUser(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	service := newTestLoanService(mockQuerier, &MockLedger{}, nil)

	ctx := context.Background()
	loan := activeLoan(10, 7, 2, time.Now().UTC().AddDate(0, 0, 7))

	mockQuerier.On("GetLoanByID", ctx, int32(10)).Return(loan, nil)

	_, err := service.ReturnBook(ctx, testActor(1), 10, "")

	require.Error(t, err)
	assert.Equal(t, models.ErrKindForbidden, models.KindOf(err))
}

func TestLoanService_ReturnBook_FulfillmentFailureDoesNotFailReturn(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	mockLedger := &MockLedger{}
	mockFulfiller := &MockFulfiller{}
	service := newTestLoanService(mockQuerier, mockLedger, nil)
	service.SetReservationFulfiller(mockFulfiller)

	ctx := context.Background()
	loan := activeLoan(10, 1, 2, time.Now().UTC().AddDate(0, 0, 7))
	returned := loan
	returned.Status = "returned"

	mockQuerier.On("GetLoanByID", ctx, int32(10)).Return(loan, nil)
	mockQuerier.On("ReturnLoan", ctx, mock.Anything).Return(returned, nil)
	mockLedger.On("Increment", ctx, int32(2)).Return(nil)
	mockFulfiller.On("FulfillNext", ctx, int32(2)).Return(errors.New("queue unavailable"))

	result, err := service.ReturnBook(ctx, testActor(1), 10, "")

	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusReturned, result.Status)
}

func TestLoanService_RenewLoan_Success(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	service := newTestLoanService(mockQuerier, &MockLedger{}, nil)

	ctx := context.Background()
	dueDate := time.Now().UTC().AddDate(0, 0, 5)
	loan := activeLoan(10, 1, 2, dueDate)

	newDueDate := dueDate.AddDate(0, 0, 7)
	renewed := loan
	renewed.DueDate = pgtype.Timestamp{Time: newDueDate, Valid: true}
	renewed.RenewalCount = pgtype.Int4{Int32: 1, Valid: true}

	mockQuerier.On("GetLoanByID", ctx, int32(10)).Return(loan, nil)
	mockQuerier.On("RenewLoan", ctx, mock.MatchedBy(func(arg queries.RenewLoanParams) bool {
		// Renewal extends from the old due date, not from now
		return arg.DueDate.Time.Equal(newDueDate)
	})).Return(renewed, nil)
	mockQuerier.On("CreateLoanRenewal", ctx, mock.AnythingOfType("queries.CreateLoanRenewalParams")).
		Return(queries.LoanRenewal{ID: 1, LoanID: 10}, nil)

	result, err := service.RenewLoan(ctx, testActor(1), 10)

	require.NoError(t, err)
	assert.Equal(t, newDueDate, result.DueDate)
	assert.Equal(t, int32(1), result.RenewalCount)
	mockQuerier.AssertExpectations(t)
}

func TestLoanService_RenewLoan_MaxRenewalsReached(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	service := newTestLoanService(mockQuerier, &MockLedger{}, nil)

	ctx := context.Background()
	loan := activeLoan(10, 1, 2, time.Now().UTC().AddDate(0, 0, 5))
	loan.RenewalCount = pgtype.Int4{Int32: 2, Valid: true}

	mockQuerier.On("GetLoanByID", ctx, int32(10)).Return(loan, nil)

	_, err := service.RenewLoan(ctx, testActor(1), 10)

	require.Error(t, err)
	assert.Equal(t, models.ErrKindLimitExceeded, models.KindOf(err))
}

func TestLoanService_RenewLoan_OverdueNotRenewable(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	service := newTestLoanService(mockQuerier, &MockLedger{}, nil)

	ctx := context.Background()
	// Stored status still says borrowed; the due date decides
	loan := activeLoan(10, 1, 2, time.Now().UTC().AddDate(0, 0, -1))

	mockQuerier.On("GetLoanByID", ctx, int32(10)).Return(loan, nil)

	_, err := service.RenewLoan(ctx, testActor(1), 10)

	require.Error(t, err)
	assert.Equal(t, models.ErrKindConflict, models.KindOf(err))
}

func TestLoanService_RenewLoan_ReturnedNotRenewable(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	service := newTestLoanService(mockQuerier, &MockLedger{}, nil)

	ctx := context.Background()
	loan := activeLoan(10, 1, 2, time.Now().UTC().AddDate(0, 0, 5))
	loan.Status = "returned"

	mockQuerier.On("GetLoanByID", ctx, int32(10)).Return(loan, nil)

	_, err := service.RenewLoan(ctx, testActor(1), 10)

	require.Error(t, err)
	assert.Equal(t, models.ErrKindConflict, models.KindOf(err))
}

func TestLoanService_PayFine_StaffOnly(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	service := newTestLoanService(mockQuerier, &MockLedger{}, nil)

	err := service.PayFine(context.Background(), testActor(1), 10)

	require.Error(t, err)
	assert.Equal(t, models.ErrKindForbidden, models.KindOf(err))
}

func TestLoanService_PayFine_Success(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	service := newTestLoanService(mockQuerier, &MockLedger{}, nil)

	ctx := context.Background()
	loan := activeLoan(10, 1, 2, time.Now().UTC())

	mockQuerier.On("GetLoanByID", ctx, int32(10)).Return(loan, nil)
	mockQuerier.On("PayLoanFine", ctx, int32(10)).Return(nil)

	err := service.PayFine(ctx, staffActor(99), 10)

	require.NoError(t, err)
	mockQuerier.AssertExpectations(t)
}

func TestLoanService_GetUserLoans_ForbiddenForOtherUser(t *testing.T) {
	service := newTestLoanService(&MockLoanQuerier{}, &MockLedger{}, nil)

	_, err := service.GetUserLoans(context.Background(), testActor(1), 7, 20, 0)

	require.Error(t, err)
	assert.Equal(t, models.ErrKindForbidden, models.KindOf(err))
}

func TestLoanService_GetOverdueLoans_StaffOnly(t *testing.T) {
	service := newTestLoanService(&MockLoanQuerier{}, &MockLedger{}, nil)

	_, err := service.GetOverdueLoans(context.Background(), testActor(1))

	require.Error(t, err)
	assert.Equal(t, models.ErrKindForbidden, models.KindOf(err))
}

func TestLoanService_CalculateFine(t *testing.T) {
	service := newTestLoanService(&MockLoanQuerier{}, &MockLedger{}, nil)
	dueDate := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		cutoff   time.Time
		expected string
	}{
		{"not overdue", dueDate.Add(-time.Hour), "0"},
		{"exactly due", dueDate, "0"},
		{"one hour late rounds up to a day", dueDate.Add(time.Hour), "0.5"},
		{"exactly one day", dueDate.AddDate(0, 0, 1), "0.5"},
		{"four days", dueDate.AddDate(0, 0, 4), "2"},
		{"capped at max fine", dueDate.AddDate(0, 0, 365), "50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fine := service.CalculateFine(dueDate, tt.cutoff)
			assert.True(t, fine.Equal(decimal.RequireFromString(tt.expected)),
				"expected %s, got %s", tt.expected, fine)
		})
	}
}

func TestLoanService_CalculateFine_Idempotent(t *testing.T) {
	service := newTestLoanService(&MockLoanQuerier{}, &MockLedger{}, nil)
	dueDate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cutoff := dueDate.AddDate(0, 0, 6)

	first := service.CalculateFine(dueDate, cutoff)
	second := service.CalculateFine(dueDate, cutoff)

	assert.True(t, first.Equal(second))
	assert.True(t, first.Equal(decimal.RequireFromString("3")))
}

func TestLoanService_MarkOverdueLoans(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	service := newTestLoanService(mockQuerier, &MockLedger{}, nil)

	ctx := context.Background()
	mockQuerier.On("MarkLoansOverdue", ctx).Return(int64(3), nil)

	marked, err := service.MarkOverdueLoans(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(3), marked)
}

func TestLoanService_NotifyDueSoon(t *testing.T) {
	mockQuerier := &MockLoanQuerier{}
	mockNotifier := &MockNotifier{}
	service := newTestLoanService(mockQuerier, &MockLedger{}, mockNotifier)

	ctx := context.Background()
	dueDate := time.Now().UTC().AddDate(0, 0, 1)
	loans := []queries.Loan{
		activeLoan(10, 1, 2, dueDate),
		activeLoan(11, 3, 4, dueDate),
	}

	mockQuerier.On("ListLoansDueSoon", ctx, int32(2)).Return(loans, nil)
	mockNotifier.On("Notify", ctx, int32(1), models.NotificationDueSoon, mock.Anything, mock.Anything).Return()
	mockNotifier.On("Notify", ctx, int32(3), models.NotificationDueSoon, mock.Anything, mock.Anything).Return()

	err := service.NotifyDueSoon(ctx)

	require.NoError(t, err)
	mockNotifier.AssertNumberOfCalls(t, "Notify", 2)
}

func TestLoanService_ConvertToLoanResponse_DerivesOverdue(t *testing.T) {
	service := newTestLoanService(&MockLoanQuerier{}, &MockLedger{}, nil)

	// Stored status lags; the response must not
	loan := activeLoan(10, 1, 2, time.Now().UTC().Add(-47*time.Hour))

	response := service.convertToLoanResponse(loan)

	assert.Equal(t, models.LoanStatusOverdue, response.Status)
	assert.Equal(t, 2, response.DaysOverdue)
	assert.True(t, response.FineAmount.Equal(decimal.RequireFromString("1")))
}
