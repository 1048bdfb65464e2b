// Package api provides the HTTP API for the soil advisor.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/soiladvisor/soiladvisor/internal/api/handler"
	"github.com/soiladvisor/soiladvisor/internal/api/middleware"
	"github.com/soiladvisor/soiladvisor/internal/api/response"
	"github.com/soiladvisor/soiladvisor/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	Metrics         *middleware.Metrics
	ProviderMetrics *middleware.ProviderMetrics

	// Advisor runs the soil workflow (required).
	Advisor handler.Advisor

	// Registry reports provider health on the ops endpoints (optional).
	Registry *resilience.Registry

	// SoilProvider and Generator name the configured backends.
	SoilProvider string
	Generator    string

	// TokenValidator protects the soil endpoints when set.
	TokenValidator middleware.TokenValidator

	// RequireTLS rejects plain-HTTP requests forwarded by the load balancer.
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "soiladvisor-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement behind the load balancer
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route matches "+r.URL.Path)
	})

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Generator: cfg.Generator,
	})
	soilConfig := handler.SoilHandlerConfig{
		Advisor:   cfg.Advisor,
		Provider:  cfg.SoilProvider,
		Generator: cfg.Generator,
		Logger:    cfg.Logger,
	}
	if cfg.ProviderMetrics != nil {
		soilConfig.Metrics = cfg.ProviderMetrics
	}
	soilHandler := handler.NewSoilHandler(soilConfig)

	// Authentication is only enforced when a signing key is configured.
	authMiddleware := func(next http.Handler) http.Handler { return next }
	if cfg.TokenValidator != nil {
		authMiddleware = middleware.Auth(cfg.TokenValidator)
	}

	// Create rate limit middleware for different endpoint categories
	soilRateLimit := middleware.RateLimitBySubject(middleware.ExpensiveRateLimit)                // 30 req/min
	recommendationRateLimit := middleware.RateLimitBySubject(middleware.RecommendationRateLimit) // 10 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)                  // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
			r.With(authMiddleware).Get("/status/{provider}", opsHandler.ProviderStatus)
		})

		// Soil classification - one provider lookup per request
		r.Route("/soil", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(soilRateLimit)
			r.Get("/classification", soilHandler.GetClassification)
		})

		// Recommendations - provider lookup plus a model call
		r.Route("/recommendations", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(recommendationRateLimit)
			r.Use(middleware.RequireJSON)
			r.Post("/", soilHandler.CreateRecommendation)
		})
	})

	return r
}
