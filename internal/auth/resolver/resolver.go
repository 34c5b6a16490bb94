// Package resolver owns the post-sign-in routing decision. It is the ONLY
// place allowed to decide where an authenticated (or unauthenticated) user
// is sent; every entry adapter redirects to what Resolve returns and must
// not branch on auth state itself.
package resolver

import (
	"context"
	"errors"
	"net/url"
	"time"

	"dreamscale-auth/internal/await"
	"dreamscale-auth/internal/profile"
	"dreamscale-auth/internal/session"

	"github.com/rs/zerolog"
)

// EntryPath is the resolver's own endpoint. Sign-in adapters redirect
// here after establishing (or failing to establish) a session.
const EntryPath = "/auth/resolve"

// State identifies where in the resolution flow a decision was reached.
type State string

const (
	StateCheckingSession State = "checking_session"
	StateNoSession       State = "no_session"
	StateLoadingProfile  State = "loading_profile"
	StateCreatingProfile State = "creating_profile"
	StateRoutingDecision State = "routing_decision"
	StateError           State = "error"
)

// Destination is the closed set of redirect targets. No other
// destination is reachable from a resolution.
type Destination string

const (
	DestinationLogin      Destination = "/login"
	DestinationOnboarding Destination = "/onboarding"
	DestinationApp        Destination = "/dashboard"
)

// Each external call gets its own fixed bound; nothing is retried within
// one invocation. A fresh page load is the retry mechanism.
const (
	sessionCheckTimeout  = 10 * time.Second
	profileOpTimeout     = 10 * time.Second
	sessionCheckAttempts = 3
	sessionCheckInterval = 200 * time.Millisecond
)

// Decision is the terminal outcome of one resolution.
type Decision struct {
	State          State
	Destination    Destination
	ErrorCode      string           // carried to the login page when non-empty
	Profile        *profile.Profile // nil unless a routing decision was reached
	ProfileCreated bool             // true when this invocation inserted the row
}

// RedirectURL renders the single outward effect of a resolution.
func (d Decision) RedirectURL() string {
	if d.ErrorCode == "" {
		return string(d.Destination)
	}
	return LoginURL(d.ErrorCode, "")
}

// LoginURL builds a login redirect carrying an error indicator.
// Entry adapters use it for their own failure redirects so the
// destination set stays owned by this package.
func LoginURL(errCode, errDescription string) string {
	if errCode == "" {
		return string(DestinationLogin)
	}
	q := url.Values{}
	q.Set("error", errCode)
	if errDescription != "" {
		q.Set("error_description", errDescription)
	}
	return string(DestinationLogin) + "?" + q.Encode()
}

// SessionSource yields the active session for an opaque session id.
// A (nil, nil) result means no session exists. Satisfied by session.Store.
type SessionSource interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
}

// Resolver decides, after any sign-in event, whether a user is sent to
// onboarding or to the main application, and guarantees a profile row
// exists for every identity it has seen.
type Resolver struct {
	sessions SessionSource
	profiles profile.Store
	log      zerolog.Logger

	sessionTimeout  time.Duration
	profileTimeout  time.Duration
	sessionAttempts uint64
	sessionInterval time.Duration
}

func New(sessions SessionSource, profiles profile.Store, log zerolog.Logger) *Resolver {
	return &Resolver{
		sessions:        sessions,
		profiles:        profiles,
		log:             log.With().Str("component", "resolver").Logger(),
		sessionTimeout:  sessionCheckTimeout,
		profileTimeout:  profileOpTimeout,
		sessionAttempts: sessionCheckAttempts,
		sessionInterval: sessionCheckInterval,
	}
}

// Resolve runs the resolution flow for one invocation: session check,
// then profile load (creating the row lazily if absent), then the
// routing decision. Steps run strictly in that order. Its side effects
// are at most one profile insert and the returned redirect; degraded
// store conditions are compensated so a valid session always reaches a
// routing decision.
func (r *Resolver) Resolve(ctx context.Context, sessionID string) (d Decision) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Interface("panic", p).Msg("resolution failed unexpectedly")
			d = Decision{
				State:       StateError,
				Destination: DestinationLogin,
				ErrorCode:   "resolver_error",
			}
		}
	}()

	sess := r.checkSession(ctx, sessionID)
	if sess == nil {
		return Decision{State: StateNoSession, Destination: DestinationLogin}
	}

	p, created := r.loadProfile(ctx, sess)

	d = Decision{State: StateRoutingDecision, Profile: p, ProfileCreated: created}
	if p.OnboardingCompleted {
		d.Destination = DestinationApp
	} else {
		d.Destination = DestinationOnboarding
	}
	return d
}

// checkSession looks for an active session within the fixed bound.
// The short poll covers the magic-link case, where the session becomes
// visible in the store moments after the client lands on the resolver.
func (r *Resolver) checkSession(ctx context.Context, sessionID string) *session.Session {
	if sessionID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.sessionTimeout)
	defer cancel()

	var sess *session.Session
	err := await.Condition(ctx, r.sessionAttempts, r.sessionInterval,
		func(ctx context.Context) (bool, error) {
			s, err := r.sessions.Get(ctx, sessionID)
			if err != nil {
				return false, err
			}
			if s == nil {
				return false, nil
			}
			sess = s
			return true, nil
		})
	if err != nil {
		if !errors.Is(err, await.ErrConditionNotMet) {
			r.log.Warn().Err(err).Msg("session check failed")
		}
		return nil
	}

	if time.Now().After(sess.ExpiresAt) {
		return nil
	}
	return sess
}

// loadProfile returns the profile to route on, never failing the flow:
// a missing row is created, and a degraded store read falls back to a
// not-onboarded default so the user is never stuck on a transient outage.
func (r *Resolver) loadProfile(ctx context.Context, sess *session.Session) (p *profile.Profile, created bool) {
	findCtx, cancel := context.WithTimeout(ctx, r.profileTimeout)
	defer cancel()

	p, err := r.profiles.Find(findCtx, sess.UserID)
	if err == nil {
		return p, false
	}

	if errors.Is(err, profile.ErrNotFound) {
		return r.createProfile(ctx, sess), true
	}

	r.log.Warn().Err(err).Str("user_id", sess.UserID).
		Msg("profile lookup degraded, assuming not onboarded")
	return profile.New(sess.UserID, sess.Email, sess.Name), false
}

// createProfile inserts the lazy row. Insert failure is non-fatal: the
// in-memory default stands in and the next invocation tries again.
func (r *Resolver) createProfile(ctx context.Context, sess *session.Session) *profile.Profile {
	ctx, cancel := context.WithTimeout(ctx, r.profileTimeout)
	defer cancel()

	fresh := profile.New(sess.UserID, sess.Email, sess.Name)
	created, err := r.profiles.Create(ctx, fresh)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", sess.UserID).
			Msg("profile create degraded, using in-memory default")
		return fresh
	}

	r.log.Info().Str("user_id", sess.UserID).Msg("profile created")
	return created
}
