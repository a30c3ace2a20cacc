// Package api provides the HTTP API for Reelhaven.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/reelhaven/reelhaven/internal/api/handler"
	"github.com/reelhaven/reelhaven/internal/api/middleware"
	"github.com/reelhaven/reelhaven/internal/api/models"
	"github.com/reelhaven/reelhaven/internal/auth"
	"github.com/reelhaven/reelhaven/internal/deletion"
	"github.com/reelhaven/reelhaven/internal/settings"
	"github.com/reelhaven/reelhaven/internal/worker"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version         string
	BuildTime       string
	Logger          zerolog.Logger
	ServiceName     string
	Metrics         *middleware.Metrics
	JWTService      *auth.JWTService
	DeletionService *deletion.Service
	SettingsService *settings.Service
	Sweeper         *worker.Sweeper

	// ReadyCheck gates the readiness endpoint, typically a database ping.
	ReadyCheck func(ctx context.Context) error
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "reelhaven-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type
	r.Use(middleware.RequireJSON)          // Reject non-JSON bodies

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Sweeper, cfg.ReadyCheck)
	deletionHandler := handler.NewDeletionHandler(cfg.DeletionService)
	settingsHandler := handler.NewSettingsHandler(cfg.SettingsService)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.JWTService)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Deletion request endpoints (authenticated)
		r.Route("/deletion-requests", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))

			r.Get("/", deletionHandler.List)
			r.With(middleware.RateLimitByUser(middleware.WriteRateLimit)).
				Post("/", deletionHandler.Create)

			r.Route("/{requestId}", func(r chi.Router) {
				r.Get("/", deletionHandler.Get)
				r.Post("/cancel", deletionHandler.Cancel)

				r.Route("/votes", func(r chi.Router) {
					r.Use(middleware.RateLimitByUser(middleware.WriteRateLimit))
					r.Post("/", deletionHandler.Vote)
					r.Get("/me", deletionHandler.GetMyVote)
					r.Delete("/me", deletionHandler.RemoveMyVote)
				})
			})
		})

		// Admin endpoints (authenticated) - for internal operations
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.AdminRateLimit))
			r.Use(requireAdmin)

			r.Post("/deletion-requests/{requestId}/execute", deletionHandler.Execute)
			r.Post("/deletion-requests/{requestId}/recount", deletionHandler.Recount)

			r.Route("/sweep", func(r chi.Router) {
				r.Get("/", opsHandler.SweepStatus)
				r.Post("/", opsHandler.TriggerSweep)
				r.Delete("/", opsHandler.CancelSweep)
			})

			r.Route("/settings/deletion", func(r chi.Router) {
				r.Get("/", settingsHandler.GetDeletionSettings)
				r.Put("/", settingsHandler.UpdateDeletionSettings)
			})
		})
	})

	return r
}

// requireAdmin rejects requests whose token lacks the admin claim.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !middleware.IsAdmin(r.Context()) {
			traceID := middleware.GetRequestID(r.Context())
			problem := models.NewForbidden(traceID, "admin access required")
			problem.Instance = r.URL.Path
			problem.Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
