package handler

import (
	"net/http"
	"time"

	"dreamscale-auth/internal/auth"
	"dreamscale-auth/internal/auth/provider"
	"dreamscale-auth/internal/auth/resolver"
	"dreamscale-auth/internal/profile"
	"dreamscale-auth/internal/session"

	"github.com/gin-gonic/gin"
)

const sessionTTL = 24 * time.Hour

// callback receives the identity provider's redirect. It establishes a
// session when an authorization code is present, then hands off to the
// resolver entry point. It never decides onboarding-vs-app itself.
func (h *Handler) callback(c *gin.Context) {
	errParam := c.Query("error")
	errDesc := c.Query("error_description")

	// CASE 1: provider returned an OAuth error. Surface it on the login
	// page; the session store is never consulted.
	if errParam != "" {
		h.log.Warn().
			Str("error", errParam).
			Str("desc", errDesc).
			Msg("oauth callback returned error")

		c.Redirect(http.StatusFound, resolver.LoginURL(errParam, errDesc))
		return
	}

	code := c.Query("code")

	// CASE 2: no code and no error, the magic-link / hash-fragment case.
	// The client-side flow establishes the session; pass through to the
	// resolver unchanged.
	if code == "" {
		c.Redirect(http.StatusFound, resolver.EntryPath)
		return
	}

	// CASE 3: authorization code exchange. One call, no retry.
	identity, ok := h.exchangeCode(c, code)
	if !ok {
		return
	}

	if err := h.establishSession(c, identity); err != nil {
		h.log.Error().Err(err).Msg("failed to establish session")
		c.Redirect(http.StatusFound, resolver.LoginURL("session_failed", ""))
		return
	}

	// Lazy profile creation here saves the resolver a round-trip on the
	// common first-login path. Degraded inserts are tolerated; the
	// resolver repeats this step if the row is still absent.
	h.ensureProfile(c, identity)

	c.Redirect(http.StatusFound, resolver.EntryPath)
}

func (h *Handler) exchangeCode(c *gin.Context, code string) (*auth.Identity, bool) {
	providerName := c.Param("provider")

	var p provider.OAuthProvider
	var err error
	if providerName == "" {
		p, err = h.providers.Default()
	} else {
		p, err = h.providers.Get(providerName)
	}
	if err != nil {
		c.Redirect(http.StatusFound, resolver.LoginURL("unknown_provider", providerName))
		return nil, false
	}

	if !validateState(c) {
		c.Redirect(http.StatusFound, resolver.LoginURL("invalid_state", ""))
		return nil, false
	}

	identity, err := p.ExchangeCode(
		c.Request.Context(),
		code,
		getPKCEVerifier(c),
	)
	if err != nil {
		h.log.Warn().Err(err).Str("provider", p.Name()).Msg("code exchange failed")
		c.Redirect(http.StatusFound, resolver.LoginURL("code_exchange_failed", err.Error()))
		return nil, false
	}

	return identity, true
}

func (h *Handler) establishSession(c *gin.Context, identity *auth.Identity) error {
	sessionID, err := session.GenerateID()
	if err != nil {
		return err
	}

	now := time.Now()
	expiresAt := now.Add(sessionTTL)

	sess := session.Session{
		SessionID:       sessionID,
		UserID:          identity.ProviderUserID,
		Email:           identity.Email,
		Name:            identity.Name,
		AuthenticatedAt: now,
		ExpiresAt:       expiresAt,
	}

	if err := h.sessionStore.Create(c.Request.Context(), sess); err != nil {
		return err
	}

	session.SetCookie(c.Writer, sessionID, expiresAt, session.CookieOptions{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	h.log.Info().
		Str("user_id", identity.ProviderUserID).
		Str("provider", identity.Provider).
		Str("ip", c.ClientIP()).
		Msg("session established")

	return nil
}

func (h *Handler) ensureProfile(c *gin.Context, identity *auth.Identity) {
	fresh := profile.New(identity.ProviderUserID, identity.Email, identity.Name)
	if _, err := h.profiles.Create(c.Request.Context(), fresh); err != nil {
		h.log.Warn().Err(err).
			Str("user_id", identity.ProviderUserID).
			Msg("lazy profile create degraded")
	}
}
