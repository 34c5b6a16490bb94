package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dreamscale-auth/internal/auth"
	"dreamscale-auth/internal/auth/provider"
	"dreamscale-auth/internal/auth/resolver"
	"dreamscale-auth/internal/middleware"
	"dreamscale-auth/internal/profile"
	"dreamscale-auth/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name     string
	identity *auth.Identity
	err      error
	calls    int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state, codeChallenge string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code, _ string) (*auth.Identity, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.identity, nil
}

type memSessions struct {
	sessions map[string]*session.Session
	gets     int
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[string]*session.Session{}}
}

func (s *memSessions) Create(_ context.Context, sess session.Session) error {
	s.sessions[sess.SessionID] = &sess
	return nil
}

func (s *memSessions) Get(_ context.Context, sessionID string) (*session.Session, error) {
	s.gets++
	return s.sessions[sessionID], nil
}

func (s *memSessions) Delete(_ context.Context, sessionID string) error {
	delete(s.sessions, sessionID)
	return nil
}

type memProfiles struct {
	rows    map[string]*profile.Profile
	creates int
}

func newMemProfiles() *memProfiles {
	return &memProfiles{rows: map[string]*profile.Profile{}}
}

func (s *memProfiles) Find(_ context.Context, userID string) (*profile.Profile, error) {
	if p, ok := s.rows[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, profile.ErrNotFound
}

func (s *memProfiles) Create(_ context.Context, p *profile.Profile) (*profile.Profile, error) {
	s.creates++
	if existing, ok := s.rows[p.ID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *p
	s.rows[p.ID] = &cp
	return p, nil
}

func (s *memProfiles) SetOnboardingCompleted(_ context.Context, userID string, completed bool) error {
	p, ok := s.rows[userID]
	if !ok {
		return profile.ErrNotFound
	}
	p.OnboardingCompleted = completed
	return nil
}

type testEnv struct {
	router   *gin.Engine
	provider *fakeProvider
	sessions *memSessions
	profiles *memProfiles
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fp := &fakeProvider{
		name: "google",
		identity: &auth.Identity{
			Provider:       "google",
			ProviderUserID: "u1",
			Email:          "u1@example.com",
			EmailVerified:  true,
			Name:           "User One",
		},
	}

	sessions := newMemSessions()
	profiles := newMemProfiles()
	res := resolver.New(sessions, profiles, zerolog.Nop())

	h := NewHandler(
		provider.NewRegistry(fp),
		sessions,
		profiles,
		res,
		zerolog.Nop(),
	)

	router := gin.New()
	h.RegisterRoutes(router)

	authMW := middleware.NewAuthMiddleware(sessions)
	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMW))
	api.GET("/me", h.Me)
	api.POST("/onboarding/complete", h.CompleteOnboarding)

	return &testEnv{router: router, provider: fp, sessions: sessions, profiles: profiles}
}

func withOAuthCookies(req *http.Request, state string) {
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: state})
	req.AddCookie(&http.Cookie{Name: pkceCookieName, Value: "verifier"})
}

func TestCallbackOAuthErrorRedirectsToLogin(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet,
		"/auth/callback?error=access_denied&error_description=user+declined", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t,
		"/login?error=access_denied&error_description=user+declined",
		w.Header().Get("Location"))

	// Session fetch is never attempted and nothing is exchanged.
	assert.Zero(t, env.sessions.gets)
	assert.Zero(t, env.provider.calls)
}

func TestCallbackWithoutCodePassesThroughToResolver(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, resolver.EntryPath, w.Header().Get("Location"))
	assert.Zero(t, env.provider.calls)
	assert.Empty(t, env.sessions.sessions)
}

func TestCallbackCodeExchangeSuccess(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet,
		"/auth/callback/google?code=abc123&state=s1", nil)
	withOAuthCookies(req, "s1")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, resolver.EntryPath, w.Header().Get("Location"))
	assert.Equal(t, 1, env.provider.calls)

	// Session row exists and the cookie points at it.
	require.Len(t, env.sessions.sessions, 1)
	var sess *session.Session
	for _, s := range env.sessions.sessions {
		sess = s
	}
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, "u1@example.com", sess.Email)

	cookies := w.Result().Cookies()
	var sessionCookie *http.Cookie
	for _, c := range cookies {
		if c.Name == session.CookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	assert.Equal(t, sess.SessionID, sessionCookie.Value)

	// Lazy profile creation ran.
	require.Contains(t, env.profiles.rows, "u1")
	assert.False(t, env.profiles.rows["u1"].OnboardingCompleted)
}

func TestCallbackDefaultProviderUsedWhenUnnamed(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet,
		"/auth/callback?code=abc123&state=s1", nil)
	withOAuthCookies(req, "s1")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, resolver.EntryPath, w.Header().Get("Location"))
	assert.Equal(t, 1, env.provider.calls)
}

func TestCallbackCodeExchangeFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.err = errors.New("invalid_grant")

	req := httptest.NewRequest(http.MethodGet,
		"/auth/callback/google?code=bad&state=s1", nil)
	withOAuthCookies(req, "s1")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	loc := w.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "/login?"), loc)
	assert.Contains(t, loc, "error=code_exchange_failed")
	assert.Empty(t, env.sessions.sessions, "no session on failed exchange")
}

func TestCallbackInvalidStateRejected(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet,
		"/auth/callback/google?code=abc123&state=tampered", nil)
	withOAuthCookies(req, "original")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "error=invalid_state")
	assert.Zero(t, env.provider.calls)
}

func seedSession(env *testEnv, userID string) *http.Cookie {
	sess := session.Session{
		SessionID:       "sid-" + userID,
		UserID:          userID,
		Email:           userID + "@example.com",
		AuthenticatedAt: time.Now(),
		ExpiresAt:       time.Now().Add(time.Hour),
	}
	env.sessions.sessions[sess.SessionID] = &sess
	return &http.Cookie{Name: session.CookieName, Value: sess.SessionID}
}

func TestResolveEndpointRoutesNewUserToOnboarding(t *testing.T) {
	env := newTestEnv(t)
	cookie := seedSession(env, "u1")

	req := httptest.NewRequest(http.MethodGet, resolver.EntryPath, nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, string(resolver.DestinationOnboarding), w.Header().Get("Location"))
	assert.Contains(t, env.profiles.rows, "u1")
}

func TestResolveEndpointRoutesOnboardedUserToApp(t *testing.T) {
	env := newTestEnv(t)
	cookie := seedSession(env, "u2")
	env.profiles.rows["u2"] = &profile.Profile{ID: "u2", OnboardingCompleted: true}

	req := httptest.NewRequest(http.MethodGet, resolver.EntryPath, nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, string(resolver.DestinationApp), w.Header().Get("Location"))
	assert.Zero(t, env.profiles.creates)
}

func TestLogoutDeletesSessionAndClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	cookie := seedSession(env, "u1")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, env.sessions.sessions)

	var cleared *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestCompleteOnboardingFlipsFlagAndChangesRouting(t *testing.T) {
	env := newTestEnv(t)
	cookie := seedSession(env, "u1")
	env.profiles.rows["u1"] = &profile.Profile{ID: "u1", Email: "u1@example.com"}

	req := httptest.NewRequest(http.MethodPost, "/api/onboarding/complete", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.profiles.rows["u1"].OnboardingCompleted)

	// The next resolution routes to the app.
	req = httptest.NewRequest(http.MethodGet, resolver.EntryPath, nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, string(resolver.DestinationApp), w.Header().Get("Location"))
}

func TestCompleteOnboardingRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/onboarding/complete", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeReturnsProfile(t *testing.T) {
	env := newTestEnv(t)
	cookie := seedSession(env, "u2")
	env.profiles.rows["u2"] = &profile.Profile{
		ID: "u2", Email: "u2@example.com", OnboardingCompleted: true,
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"u2"`)
	assert.Contains(t, w.Body.String(), `"onboarding_completed":true`)
}

func TestLoginRedirectsToProviderAuthURL(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/login/google", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "https://idp.example.com/authorize")
}

func TestLoginUnknownProvider(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/login/unknown", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
