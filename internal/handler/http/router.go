package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nortover/accountsvc/internal/auth"
	"github.com/nortover/accountsvc/internal/domain"
	"github.com/nortover/accountsvc/pkg/health"
	"github.com/nortover/accountsvc/pkg/middleware"
)

// NewRouter creates a chi router with all account service routes registered.
func NewRouter(
	svc Service,
	jwtManager *auth.JWTManager,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
	requireHTTPS bool,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing("accountsvc"))
	r.Use(middleware.PrometheusMetrics("accountsvc"))
	r.Use(middleware.RequestLogger(logger))

	// Health check and metrics endpoints
	r.Get("/healthz", healthHandler.LivenessHandler())
	r.Get("/readyz", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Token validator that bridges to our internal JWTManager.
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := jwtManager.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			AccountID: claims.Subject,
			Email:     claims.Email,
			Role:      claims.Role,
		}, nil
	}

	authHandler := NewAuthHandler(svc, logger)
	r.Route("/api/v1/auth", func(r chi.Router) {
		if requireHTTPS {
			r.Use(middleware.RequireHTTPS)
		}
		r.Use(ContentTypeJSON)

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/external-login", authHandler.ExternalLogin)
		r.Post("/refresh", authHandler.Refresh)

		// Endpoints that need an authenticated caller.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))
			r.Use(middleware.RequestLogger(logger))

			r.Post("/logout", authHandler.Logout)
			r.Post("/change-password", authHandler.ChangePassword)
		})
	})

	accountHandler := NewAccountHandler(svc, logger)
	r.Route("/api/v1/accounts", func(r chi.Router) {
		if requireHTTPS {
			r.Use(middleware.RequireHTTPS)
		}
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))
		r.Use(middleware.RequestLogger(logger))

		r.With(middleware.RequireRole(domain.RoleAdmin)).Get("/", accountHandler.List)

		r.Get("/{id}", accountHandler.Get)
		r.Put("/{id}", accountHandler.Update)
		r.Delete("/{id}", accountHandler.Delete)

		r.Get("/{id}/security-events", accountHandler.SecurityEvents)
		r.Get("/{id}/access-logs", accountHandler.AccessLogs)
		r.Post("/{id}/access-logs", accountHandler.RecordAccess)
	})

	return r
}
