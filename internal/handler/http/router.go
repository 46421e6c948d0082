package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/auth-service/pkg/health"
	"github.com/utafrali/auth-service/pkg/middleware"
)

// RouterConfig holds the router settings taken from the service config.
type RouterConfig struct {
	ServiceName string
	// BasePath prefixes the auth routes. Empty mounts them at the root.
	BasePath string
	CORS     middleware.CORSConfig
	Cookie   CookieConfig
}

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(
	authService AuthService,
	healthHandler *health.Handler,
	gatherer prometheus.Gatherer,
	httpMetrics *middleware.HTTPMetrics,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	if httpMetrics != nil {
		r.Use(httpMetrics.Middleware)
	}

	// Operational endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	authHandler := NewAuthHandler(authService, cfg.Cookie, logger)
	requireAuth := middleware.Auth(authService.AuthenticateAccessToken)

	routes := func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(ContentTypeJSON)

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Get("/verify", authHandler.Verify)
		r.Post("/refresh", authHandler.Refresh)

		r.With(requireAuth).Get("/logout", authHandler.Logout)
		r.With(requireAuth).Get("/profile", authHandler.Profile)
	}

	if cfg.BasePath == "" {
		r.Group(routes)
	} else {
		r.Route(cfg.BasePath, routes)
	}

	return r
}
