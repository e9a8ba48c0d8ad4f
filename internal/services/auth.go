package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/kipronoh/circulation/internal/database/queries"
	"github.com/kipronoh/circulation/internal/models"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// UserQuerier defines the interface for user database operations
type UserQuerier interface {
	GetUserByID(ctx context.Context, id int32) (queries.User, error)
	GetUserByUsername(ctx context.Context, username string) (queries.User, error)
}

// AuthService issues and validates the JWTs that carry the
// authenticated principal every circulation operation trusts
type AuthService struct {
	queries UserQuerier
	secret  []byte
	expiry  time.Duration
	logger  *slog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(querier UserQuerier, secret string, expiry time.Duration, logger *slog.Logger) (*AuthService, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &AuthService{
		queries: querier,
		secret:  []byte(secret),
		expiry:  expiry,
		logger:  logger,
	}, nil
}

// Login verifies credentials and issues an access token
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	user, err := s.queries.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsActive.Bool {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("User logged in", "user_id", user.ID, "username", user.Username)

	return &models.LoginResponse{
		User: &models.User{
			ID:        user.ID,
			Username:  user.Username,
			Email:     user.Email,
			Role:      models.UserRole(user.Role),
			IsActive:  user.IsActive.Bool,
			CreatedAt: user.CreatedAt.Time,
		},
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.expiry.Seconds()),
	}, nil
}

// ValidateToken parses and verifies an access token
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) generateToken(user queries.User) (string, error) {
	now := time.Now()
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     models.UserRole(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			Subject:   fmt.Sprintf("%d", user.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
