package profile

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that no profile row exists for the requested user id.
// Stores must return it (possibly wrapped) instead of a generic error so
// callers can distinguish "absent" from "store unavailable".
var ErrNotFound = errors.New("profile: not found")

// Profile is the application's own record per user. It is created lazily
// on first authenticated resolution and tracks onboarding completion.
type Profile struct {
	ID                  string  // identity provider's user id
	Email               string
	DisplayName         *string // nil until the user sets one
	OnboardingCompleted bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// New returns a fresh not-yet-onboarded profile for the given identity.
func New(userID, email, name string) *Profile {
	p := &Profile{
		ID:    userID,
		Email: email,
	}
	if name != "" {
		p.DisplayName = &name
	}
	return p
}

// Store persists profiles. Exactly one row may ever exist per user id;
// Create must treat an already-existing row as success and return it.
type Store interface {
	// Find returns the profile for the given user id, or ErrNotFound.
	Find(ctx context.Context, userID string) (*Profile, error)

	// Create inserts the profile if absent. When a row already exists
	// (including under a concurrent insert race) the existing row is
	// returned unchanged.
	Create(ctx context.Context, p *Profile) (*Profile, error)

	// SetOnboardingCompleted flips the onboarding flag. Used by the
	// onboarding flow, never by the resolver.
	SetOnboardingCompleted(ctx context.Context, userID string, completed bool) error
}
