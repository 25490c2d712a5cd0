package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wishmail/wishmail/internal/observability"
	"github.com/wishmail/wishmail/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)
	s.router.Get("/health/startup", s.health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	s.registerAdminRoutes()
}

// registerAdminRoutes mounts /admin behind the bearer token, or nothing when
// no token is configured.
func (s *Server) registerAdminRoutes() {
	logger := observability.Logger()

	if s.adminToken == "" {
		logger.Debug("Admin endpoints disabled (no admin token set)")
		return
	}

	// Signal endpoint does its own bearer check and rate limiting.
	signalHandler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.adminToken,
		RateLimit: 10, // requests per minute
		RateBurst: 5,
		Manager:   nil, // default global manager
	})
	s.router.Route("/admin", func(r chi.Router) {
		r.Post("/signal", signalHandler.ServeHTTP)

		if s.limiter == nil {
			return
		}
		rl := handlers.NewRateLimitHandler(s.limiter, s.testSender)
		r.Group(func(r chi.Router) {
			r.Use(requireBearer(s.adminToken))
			r.Get("/rate-limit", rl.Stats)
			r.Post("/rate-limit/reset", rl.Reset)
			r.Delete("/rate-limit/cooldowns/{recipient}", rl.ClearCooldown)
			r.Post("/test-email", rl.SendTestEmail)
		})
	})

	logger.Info("Admin endpoints enabled",
		zap.String("prefix", "/admin"),
		zap.String("auth", "bearer token"),
		zap.Bool("rate_limit_routes", s.limiter != nil))
	logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
}
