package handler

import (
	"net/http"

	"dreamscale-auth/internal/auth/provider"
	"dreamscale-auth/internal/auth/resolver"
	"dreamscale-auth/internal/middleware"
	"dreamscale-auth/internal/profile"
	"dreamscale-auth/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	providers    *provider.Registry
	sessionStore session.Store
	profiles     profile.Store
	resolver     *resolver.Resolver
	log          zerolog.Logger
}

func NewHandler(
	registry *provider.Registry,
	sessionStore session.Store,
	profiles profile.Store,
	res *resolver.Resolver,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		providers:    registry,
		sessionStore: sessionStore,
		profiles:     profiles,
		resolver:     res,
		log:          log.With().Str("component", "auth_handler").Logger(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/auth/login/:provider", h.login)
	r.GET("/auth/callback", h.callback)
	r.GET("/auth/callback/:provider", h.callback)
	r.GET(resolver.EntryPath, h.resolve)
	r.POST("/auth/logout", h.Logout)
}

func (h *Handler) login(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}

	state := generateState(c)
	_, codeChallenge := generatePKCE(c)

	authURL := p.AuthCodeURL(state, codeChallenge)
	c.Redirect(http.StatusFound, authURL)
}

// resolve is the resolver page: it reads the session cookie, runs the
// resolution state machine, and issues the one redirect it decided on.
func (h *Handler) resolve(c *gin.Context) {
	sessionID := ""
	if cookie, err := c.Request.Cookie(session.CookieName); err == nil {
		sessionID = cookie.Value
	}

	decision := h.resolver.Resolve(c.Request.Context(), sessionID)

	h.log.Info().
		Str("state", string(decision.State)).
		Str("destination", string(decision.Destination)).
		Bool("profile_created", decision.ProfileCreated).
		Msg("resolution complete")

	c.Redirect(http.StatusFound, decision.RedirectURL())
}

func (h *Handler) Logout(c *gin.Context) {
	cookie, err := c.Request.Cookie(session.CookieName)
	if err == nil && cookie.Value != "" {
		// best-effort: a dangling store entry expires on its own
		_ = h.sessionStore.Delete(c.Request.Context(), cookie.Value)
		h.log.Info().Str("ip", c.ClientIP()).Msg("session deleted")
	}

	session.ClearCookie(c.Writer, session.CookieOptions{
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	c.Status(http.StatusNoContent)
}

// Me returns the caller's profile. Session-protected.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	p, err := h.profiles.Find(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":              p.ID,
		"email":                p.Email,
		"display_name":         p.DisplayName,
		"onboarding_completed": p.OnboardingCompleted,
	})
}
