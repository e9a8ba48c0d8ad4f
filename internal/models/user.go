package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleLibrarian UserRole = "librarian"
	RoleMember    UserRole = "member"
)

// User represents an account known to the circulation system
type User struct {
	ID           int32     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor is the authenticated principal attached to every circulation operation
type Actor struct {
	UserID int32    `json:"user_id"`
	Role   UserRole `json:"role"`
}

// IsStaff reports whether the actor may act on records they do not own
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleLibrarian
}

// CanActOn reports whether the actor may operate on a record owned by ownerID
func (a Actor) CanActOn(ownerID int32) bool {
	return a.UserID == ownerID || a.IsStaff()
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	User        *User  `json:"user"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type JWTClaims struct {
	UserID   int32    `json:"user_id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
	jwt.RegisteredClaims
}
