package services

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kipronoh/circulation/internal/database/queries"
	"github.com/kipronoh/circulation/internal/models"
)

// MockUserQuerier is a mock implementation of UserQuerier
type MockUserQuerier struct {
	mock.Mock
}

func (m *MockUserQuerier) GetUserByID(ctx context.Context, id int32) (queries.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(queries.User), args.Error(1)
}

func (m *MockUserQuerier) GetUserByUsername(ctx context.Context, username string) (queries.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(queries.User), args.Error(1)
}

const testSecret = "test-secret-key-for-auth-tests"

func testUser(t *testing.T, password string) queries.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	return queries.User{
		ID:           1,
		Username:     "patron",
		Email:        "patron@example.com",
		PasswordHash: string(hash),
		Role:         "member",
		IsActive:     pgtype.Bool{Bool: true, Valid: true},
		CreatedAt:    pgtype.Timestamp{Time: time.Now().UTC(), Valid: true},
	}
}

func TestNewAuthService_RequiresSecret(t *testing.T) {
	_, err := NewAuthService(&MockUserQuerier{}, "", time.Hour, testLogger())
	require.Error(t, err)
}

func TestAuthService_Login_Success(t *testing.T) {
	mockQuerier := &MockUserQuerier{}
	service, err := NewAuthService(mockQuerier, testSecret, time.Hour, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	user := testUser(t, "correct horse")
	mockQuerier.On("GetUserByUsername", ctx, "patron").Return(user, nil)

	response, err := service.Login(ctx, "patron", "correct horse")

	require.NoError(t, err)
	assert.NotEmpty(t, response.AccessToken)
	assert.Equal(t, "Bearer", response.TokenType)
	assert.Equal(t, 3600, response.ExpiresIn)
	assert.Equal(t, models.RoleMember, response.User.Role)
	assert.Empty(t, response.User.PasswordHash)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	mockQuerier := &MockUserQuerier{}
	service, err := NewAuthService(mockQuerier, testSecret, time.Hour, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	mockQuerier.On("GetUserByUsername", ctx, "patron").Return(testUser(t, "correct horse"), nil)

	_, err = service.Login(ctx, "patron", "wrong password")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	mockQuerier := &MockUserQuerier{}
	service, err := NewAuthService(mockQuerier, testSecret, time.Hour, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	mockQuerier.On("GetUserByUsername", ctx, "ghost").Return(queries.User{}, pgx.ErrNoRows)

	_, err = service.Login(ctx, "ghost", "anything")

	// Unknown user and bad password are indistinguishable to the caller
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_InactiveUser(t *testing.T) {
	mockQuerier := &MockUserQuerier{}
	service, err := NewAuthService(mockQuerier, testSecret, time.Hour, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	user := testUser(t, "correct horse")
	user.IsActive = pgtype.Bool{Bool: false, Valid: true}
	mockQuerier.On("GetUserByUsername", ctx, "patron").Return(user, nil)

	_, err = service.Login(ctx, "patron", "correct horse")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_ValidateToken_RoundTrip(t *testing.T) {
	mockQuerier := &MockUserQuerier{}
	service, err := NewAuthService(mockQuerier, testSecret, time.Hour, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	user := testUser(t, "correct horse")
	user.Role = "librarian"
	mockQuerier.On("GetUserByUsername", ctx, "patron").Return(user, nil)

	response, err := service.Login(ctx, "patron", "correct horse")
	require.NoError(t, err)

	claims, err := service.ValidateToken(response.AccessToken)

	require.NoError(t, err)
	assert.Equal(t, int32(1), claims.UserID)
	assert.Equal(t, "patron", claims.Username)
	assert.Equal(t, models.RoleLibrarian, claims.Role)
}

func TestAuthService_ValidateToken_WrongSecret(t *testing.T) {
	mockQuerier := &MockUserQuerier{}
	issuer, err := NewAuthService(mockQuerier, testSecret, time.Hour, testLogger())
	require.NoError(t, err)
	verifier, err := NewAuthService(&MockUserQuerier{}, "a different secret", time.Hour, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	mockQuerier.On("GetUserByUsername", ctx, "patron").Return(testUser(t, "correct horse"), nil)

	response, err := issuer.Login(ctx, "patron", "correct horse")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(response.AccessToken)
	assert.Error(t, err)
}

func TestAuthService_ValidateToken_Garbage(t *testing.T) {
	service, err := NewAuthService(&MockUserQuerier{}, testSecret, time.Hour, testLogger())
	require.NoError(t, err)

	_, err = service.ValidateToken("not.a.token")
	assert.Error(t, err)
}
