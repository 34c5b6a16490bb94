package session

import (
	"context"
	"time"
)

// Session represents an authenticated user session. It carries identity
// facts copied from the provider at sign-in time, not auth decisions.
type Session struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`    // identity provider's user id
	Email           string    `json:"email"`      // email asserted at sign-in
	Name            string    `json:"name"`       // display name, may be empty
	AuthenticatedAt time.Time `json:"authenticated_at"`
	ExpiresAt       time.Time `json:"expires_at"` // absolute expiry time
}

// Store defines how sessions are stored and retrieved.
// Get returns (nil, nil) when no session exists for the given id.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
}
