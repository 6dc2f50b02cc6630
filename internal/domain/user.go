package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user with their embedded membership record.
type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	Password          string     `json:"-"` // bcrypt hash, never serialized
	Role              string     `json:"role"`
	Identity          string     `json:"identity"`        // external identity (mini-program openid)
	Alias             string     `json:"alias,omitempty"` // legacy secondary identity
	InviteCode        string     `json:"inviteCode"`      // this user's own shareable code, case-sensitive
	HasUsedInviteCode bool       `json:"hasUsedInviteCode"`
	InvitedBy         *string    `json:"invitedBy,omitempty"`
	Membership        Membership `json:"membership"`
	Version           int64      `json:"-"` // optimistic-concurrency token for membership writes
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// LoginRequest is the validated input for logging in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// LoginResponse is the API response after successful login.
type LoginResponse struct {
	Token string    `json:"token"`
	User  LoginUser `json:"user"`
}

// LoginUser is the user info returned after login.
type LoginUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// JWTClaims represents the JWT payload.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// RegisterRequest is the validated input for creating an account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Identity string `json:"identity" validate:"omitempty,max=128"`
}

// UserResponse is the safe API response for a user (no password).
type UserResponse struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	InviteCode string     `json:"inviteCode"`
	Membership Membership `json:"membership"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// NewUserID generates a new UUID for a user.
func NewUserID() string {
	return uuid.New().String()
}

// NewInviteCode generates a user's shareable invite code. Codes are
// case-sensitive and drawn from an alphabet without lookalike characters.
func NewInviteCode() string {
	id := uuid.New()
	code := make([]byte, 0, 12)
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
	for _, b := range id[:12] {
		code = append(code, alphabet[int(b)%len(alphabet)])
	}
	return string(code)
}
