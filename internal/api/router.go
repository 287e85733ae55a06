// Package api provides the HTTP API for SafeTrail.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/safetrail/safetrail/internal/alert"
	"github.com/safetrail/safetrail/internal/api/handler"
	"github.com/safetrail/safetrail/internal/api/middleware"
	"github.com/safetrail/safetrail/internal/auth"
	"github.com/safetrail/safetrail/internal/geofence"
	"github.com/safetrail/safetrail/internal/monitor"
	"github.com/safetrail/safetrail/internal/profile"
	"github.com/safetrail/safetrail/internal/route"
	"github.com/safetrail/safetrail/internal/sos"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version          string
	BuildTime        string
	Logger           zerolog.Logger
	ServiceName      string
	Metrics          *middleware.Metrics
	TokenValidator   *auth.Validator
	Monitor          *monitor.Service
	Profiles         *profile.Store
	Alerts           *alert.Service
	Zones            *geofence.Service
	Routes           *route.Registry
	SOS              *sos.Controller
	SOSCountdownSecs float64
	ReadinessChecks  map[string]handler.ReadinessCheck
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "safetrail-api"
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

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.ReadinessChecks)
	trackingHandler := handler.NewTrackingHandler(cfg.Monitor, cfg.Profiles)
	sosHandler := handler.NewSOSHandler(cfg.SOS, cfg.SOSCountdownSecs)
	alertHandler := handler.NewAlertHandler(cfg.Alerts)
	zoneHandler := handler.NewZoneHandler(cfg.Zones)
	routeHandler := handler.NewRouteHandler(cfg.Routes)

	// Console routes require an operator token
	authMiddleware := middleware.Auth(cfg.TokenValidator)

	// Rate limit middleware per endpoint category
	ingestRateLimit := middleware.RateLimitByIP(middleware.IngestRateLimit) // 600 req/min
	sosRateLimit := middleware.RateLimitByIP(middleware.SOSRateLimit)       // 30 req/min
	consoleRateLimit := middleware.RateLimitByOperator(middleware.StandardRateLimit)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Device telemetry (tourist wearable / app)
		r.Route("/tourists/{touristId}", func(r chi.Router) {
			r.With(ingestRateLimit).Post("/locations", trackingHandler.ReportLocation)
			r.With(ingestRateLimit).Post("/pings", trackingHandler.ReportPing)

			// Panic button - countdown then dispatch
			r.Route("/sos", func(r chi.Router) {
				r.Use(sosRateLimit)
				r.Post("/", sosHandler.Trigger)
				r.Get("/", sosHandler.GetState)
			})
			r.With(sosRateLimit).Post("/sos:cancel", sosHandler.Cancel)

			// Console views of the tourist
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware)
				r.Use(consoleRateLimit)
				r.Get("/profile", trackingHandler.GetProfile)
				r.Put("/routes", trackingHandler.SetPreferredRoutes)
				r.Delete("/", trackingHandler.Archive)
			})
		})

		// Alert lifecycle (console operators)
		r.Route("/alerts", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(consoleRateLimit)
			r.Get("/", alertHandler.ListAlerts)
			r.Get("/{alertId}", alertHandler.GetAlert)
			r.Post("/{alertId}:acknowledge", alertHandler.Acknowledge)
			r.Post("/{alertId}:investigate", alertHandler.Investigate)
			r.Post("/{alertId}:resolve", alertHandler.Resolve)
		})

		// Zone management - reads for operators, writes for admins
		r.Route("/zones", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(consoleRateLimit)
			r.Get("/", zoneHandler.ListZones)
			r.Get("/{zoneId}", zoneHandler.GetZone)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/", zoneHandler.CreateZone)
				r.Put("/{zoneId}", zoneHandler.UpdateZone)
				r.Delete("/{zoneId}", zoneHandler.DeleteZone)
			})
		})

		// Route corridor management - reads for operators, writes for admins
		r.Route("/routes", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(consoleRateLimit)
			r.Get("/", routeHandler.ListRoutes)
			r.Get("/{routeId}", routeHandler.GetRoute)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/", routeHandler.CreateRoute)
				r.Put("/{routeId}", routeHandler.UpdateRoute)
				r.Delete("/{routeId}", routeHandler.DeleteRoute)
			})
		})
	})

	return r
}
