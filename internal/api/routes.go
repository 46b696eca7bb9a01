package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aslmarket/aslmatch/internal/auth"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/metrics"
)

// RouteDeps are the collaborators of SetupRoutes.
type RouteDeps struct {
	Handlers       *Handlers
	Auth           *auth.Manager
	Health         *HealthChecker
	Limiter        *RateLimiter
	AllowedOrigins []string
}

// SetupRoutes configures all API routes.
func SetupRoutes(d RouteDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(requestLogFormatter{}))
	r.Use(middleware.Recoverer)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.HeaderActorID, auth.HeaderActorRole},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Probes and scraping (no auth required)
	if d.Health != nil {
		r.Get("/health", d.Health.HandleHealth)
		r.Get("/health/live", d.Health.HandleLiveness)
		r.Get("/health/ready", d.Health.HandleReadiness)
	}
	r.Handle("/metrics", metrics.Handler())

	h := d.Handlers
	r.Group(func(r chi.Router) {
		r.Use(d.Auth.RequireAuth)
		r.Use(d.Limiter.Limit)

		r.Route("/matching", func(r chi.Router) {
			r.Route("/requests", func(r chi.Router) {
				r.With(requireRole(domain.RoleSupplier)).Post("/", h.CreateRequest)
				r.Get("/", h.ListRequests)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetRequest)
					r.Patch("/", h.PatchRequest)
					r.With(requireRole(domain.RoleSupplier)).Get("/suggested-visitors", h.SuggestedVisitors)
					r.With(requireRole(domain.RoleVisitor)).Post("/responses", h.Respond)

					r.Get("/messages", h.ListMessages)
					r.Post("/messages", h.PostMessage)
					r.Post("/messages/read", h.MarkMessagesRead)
					r.Post("/attachments", h.CreateAttachment)

					r.Get("/ratings", h.RequestRatings)
					r.Post("/ratings", h.CreateRating)
				})
			})
			r.Get("/conversations", h.ListConversations)
			r.Get("/ratings/users/{userID}", h.UserRatings)
		})

		r.Route("/contact", func(r chi.Router) {
			r.Get("/limits", h.ContactLimits)
			r.Get("/history", h.ContactHistory)
			r.Get("/{type}/{targetID}/can-view", h.CanViewContact)
			r.Post("/{type}/{targetID}/view", h.ViewContact)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Get("/unread-count", h.UnreadNotifications)
			r.Post("/read-all", h.MarkAllNotificationsRead)
			r.Post("/{id}/read", h.MarkNotificationRead)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"route not found","code":"not_found"}`))
	})

	return r
}
