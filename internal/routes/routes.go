package routes

import (
	"github.com/BradenHooton/loginguard/internal/handlers"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth      *handlers.AuthHandler
	RateLimit *handlers.RateLimitHandler
	Health    *handlers.HealthHandler
}

// RegisterRoutes registers all application routes. The flood limit and the
// login guard are mounted on the router beforehand.
func RegisterRoutes(router chi.Router, h Handlers) {
	router.Get("/health", h.Health.Health)

	// Login page surface; locked keys are answered by the guard before this runs
	router.Get("/login", h.RateLimit.Check)

	router.Route("/api", func(r chi.Router) {
		r.Get("/rate-limit/check", h.RateLimit.Check)
		r.Post("/rate-limit/check", h.RateLimit.Check)

		r.Post("/auth/login", h.Auth.Login)
	})
}
