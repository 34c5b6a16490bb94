package app

import (
	"context"

	"dreamscale-auth/internal/auth/handler"
	"dreamscale-auth/internal/auth/provider"
	"dreamscale-auth/internal/auth/provider/google"
	oidcprovider "dreamscale-auth/internal/auth/provider/oidc"
	"dreamscale-auth/internal/auth/resolver"
	"dreamscale-auth/internal/config"
	"dreamscale-auth/internal/middleware"
	"dreamscale-auth/internal/profile"
	"dreamscale-auth/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func setupHTTP(ctx context.Context, cfg config.Config, log zerolog.Logger) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	sessionStore := session.NewRedisStore(infra.Redis.Client)
	profileStore := profile.NewPostgresStore(infra.DB)
	authResolver := resolver.New(sessionStore, profileStore, log)

	providers, err := setupProviders(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	authHandler := handler.NewHandler(
		providers,
		sessionStore,
		profileStore,
		authResolver,
		log,
	)

	authMiddleware := middleware.NewAuthMiddleware(sessionStore)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLog(log))

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))

	api.GET("/me", authHandler.Me)
	api.POST("/onboarding/complete", authHandler.CompleteOnboarding)

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		return infra.DB.Close()
	}, nil
}

func setupProviders(ctx context.Context, cfg config.Config, log zerolog.Logger) (*provider.Registry, error) {
	var list []provider.OAuthProvider

	if cfg.GoogleClientID != "" {
		googleProvider, err := google.New(
			ctx,
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleRedirectURL,
			log,
		)
		if err != nil {
			return nil, err
		}
		list = append(list, googleProvider)
	}

	if cfg.OIDCIssuer != "" {
		oidcProv, err := oidcprovider.New(
			ctx,
			cfg.OIDCName,
			cfg.OIDCIssuer,
			cfg.OIDCClientID,
			cfg.OIDCSecret,
			cfg.OIDCRedirectURL,
			log,
		)
		if err != nil {
			return nil, err
		}
		list = append(list, oidcProv)
	}

	return provider.NewRegistry(list...), nil
}
