package services

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kipronoh/circulation/internal/database/queries"
	"github.com/kipronoh/circulation/internal/models"
)

// MockInventoryQuerier is a mock implementation of InventoryQuerier
type MockInventoryQuerier struct {
	mock.Mock
}

func (m *MockInventoryQuerier) GetBookByID(ctx context.Context, id int32) (queries.Book, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(queries.Book), args.Error(1)
}

func (m *MockInventoryQuerier) DecrementAvailableCopies(ctx context.Context, id int32) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInventoryQuerier) IncrementAvailableCopies(ctx context.Context, id int32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockInventoryQuerier) IncrementTotalReservations(ctx context.Context, id int32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockInventoryQuerier) DecrementTotalReservations(ctx context.Context, id int32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestInventoryService_GetBook(t *testing.T) {
	mockQuerier := &MockInventoryQuerier{}
	service := NewInventoryService(mockQuerier, testLogger())

	ctx := context.Background()
	mockQuerier.On("GetBookByID", ctx, int32(2)).Return(queries.Book{
		ID:              2,
		BookID:          "BK-002",
		Title:           "Concurrency in Practice",
		Author:          "Some Author",
		TotalCopies:     pgtype.Int4{Int32: 3, Valid: true},
		AvailableCopies: pgtype.Int4{Int32: 1, Valid: true},
		IsActive:        pgtype.Bool{Bool: true, Valid: true},
	}, nil)

	book, err := service.GetBook(ctx, 2)

	require.NoError(t, err)
	assert.Equal(t, int32(1), book.AvailableCopies)
	assert.Equal(t, models.BookStatusAvailable, book.Status)
	assert.True(t, book.IsAvailable())
}

func TestInventoryService_GetBook_NotFound(t *testing.T) {
	mockQuerier := &MockInventoryQuerier{}
	service := NewInventoryService(mockQuerier, testLogger())

	ctx := context.Background()
	mockQuerier.On("GetBookByID", ctx, int32(99)).Return(queries.Book{}, pgx.ErrNoRows)

	_, err := service.GetBook(ctx, 99)

	require.Error(t, err)
	assert.Equal(t, models.ErrKindNotFound, models.KindOf(err))
}

func TestInventoryService_GetBook_DerivedStatus(t *testing.T) {
	mockQuerier := &MockInventoryQuerier{}
	service := NewInventoryService(mockQuerier, testLogger())

	ctx := context.Background()
	mockQuerier.On("GetBookByID", ctx, int32(3)).Return(queries.Book{
		ID:              3,
		TotalCopies:     pgtype.Int4{Int32: 2, Valid: true},
		AvailableCopies: pgtype.Int4{Int32: 0, Valid: true},
		IsActive:        pgtype.Bool{Bool: true, Valid: true},
	}, nil)

	book, err := service.GetBook(ctx, 3)

	require.NoError(t, err)
	assert.Equal(t, models.BookStatusBorrowed, book.Status)
	assert.False(t, book.IsAvailable())
}

func TestInventoryService_TryDecrement(t *testing.T) {
	mockQuerier := &MockInventoryQuerier{}
	service := NewInventoryService(mockQuerier, testLogger())

	ctx := context.Background()
	mockQuerier.On("DecrementAvailableCopies", ctx, int32(2)).Return(int64(1), nil).Once()
	mockQuerier.On("DecrementAvailableCopies", ctx, int32(2)).Return(int64(0), nil).Once()

	claimed, err := service.TryDecrement(ctx, 2)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = service.TryDecrement(ctx, 2)
	require.NoError(t, err)
	assert.False(t, claimed)
}

// countingQuerier emulates the database's conditional decrement with a
// mutex so concurrent claims can be exercised in-process
type countingQuerier struct {
	mu        sync.Mutex
	available int64
}

func (q *countingQuerier) GetBookByID(ctx context.Context, id int32) (queries.Book, error) {
	return queries.Book{ID: id}, nil
}

func (q *countingQuerier) DecrementAvailableCopies(ctx context.Context, id int32) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.available > 0 {
		q.available--
		return 1, nil
	}
	return 0, nil
}

func (q *countingQuerier) IncrementAvailableCopies(ctx context.Context, id int32) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.available++
	return nil
}

func (q *countingQuerier) IncrementTotalReservations(ctx context.Context, id int32) error {
	return nil
}

func (q *countingQuerier) DecrementTotalReservations(ctx context.Context, id int32) error {
	return nil
}

func TestInventoryService_TryDecrement_OneWinnerForLastCopy(t *testing.T) {
	querier := &countingQuerier{available: 1}
	service := NewInventoryService(querier, testLogger())

	ctx := context.Background()
	const contenders = 50

	var wg sync.WaitGroup
	results := make(chan bool, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := service.TryDecrement(ctx, 2)
			assert.NoError(t, err)
			results <- claimed
		}()
	}

	wg.Wait()
	close(results)

	winners := 0
	for claimed := range results {
		if claimed {
			winners++
		}
	}

	assert.Equal(t, 1, winners)
	assert.Equal(t, int64(0), querier.available)
}
