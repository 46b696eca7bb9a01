package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aslmarket/aslmatch/internal/auth"
	"github.com/aslmarket/aslmatch/internal/config"
)

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates the API server.
func NewServer(cfg *config.Config, svc Services, authManager *auth.Manager, health *HealthChecker) *Server {
	router := SetupRoutes(RouteDeps{
		Handlers:       NewHandlers(svc),
		Auth:           authManager,
		Health:         health,
		Limiter:        NewRateLimiter(cfg.RateLimit),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	return &Server{config: cfg.Server, handler: router}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.handler,
		ReadTimeout:       s.config.ReadTimeout(),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      s.config.WriteTimeout(),
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
