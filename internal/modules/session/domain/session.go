package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoSession      = errors.New("no active session")
	ErrSessionExpired = errors.New("session token expired")
	ErrInvalidToken   = errors.New("malformed session token")
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the profile returned by the backend at sign-in.
type User struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Session is what survives between runs: the bearer token and who it belongs to.
type Session struct {
	Token   string    `json:"access_token"`
	User    User      `json:"user"`
	SavedAt time.Time `json:"saved_at"`
}

// Store persists one session per profile.
type Store interface {
	Save(ctx context.Context, s Session) error
	// Load returns ErrNoSession when nothing is stored.
	Load(ctx context.Context) (Session, error)
	Clear(ctx context.Context) error
}
