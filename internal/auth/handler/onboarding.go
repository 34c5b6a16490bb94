package handler

import (
	"errors"
	"net/http"

	"dreamscale-auth/internal/middleware"
	"dreamscale-auth/internal/profile"

	"github.com/gin-gonic/gin"
)

// CompleteOnboarding is the onboarding flow's write path: it flips the
// profile's completion flag so the next resolution routes to the app.
// Session-protected; the resolver itself never calls this.
func (h *Handler) CompleteOnboarding(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	err := h.profiles.SetOnboardingCompleted(c.Request.Context(), userID, true)
	if errors.Is(err, profile.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("onboarding completion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}

	h.log.Info().Str("user_id", userID).Msg("onboarding completed")
	c.JSON(http.StatusOK, gin.H{"status": "onboarding_completed"})
}
