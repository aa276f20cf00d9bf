// Package web exposes the patient repository over a JSON HTTP API.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/patients/internal/config"
	"github.com/JonMunkholm/patients/internal/core"
	"github.com/JonMunkholm/patients/internal/web/middleware"
)

// Server is the HTTP server for the patient API.
type Server struct {
	repo    *core.Repository
	gate    *core.LoadGate
	cfg     *config.Config
	router  *chi.Mux
	limiter *middleware.RateLimiter
	server  *http.Server
}

// NewServer creates a Server. gate may be nil when the repository has none;
// it is only used to report load status.
func NewServer(repo *core.Repository, gate *core.LoadGate, cfg *config.Config) *Server {
	s := &Server{
		repo:   repo,
		gate:   gate,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.limiter = middleware.NewRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
	s.router.Use(withSource)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		auth := middleware.APIKeyAuth(s.cfg.Security.APIKeys, s.cfg.Security.RequireAPIKey)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.requestTimeout()))

			r.Get("/patients", s.handleSearch)
			r.Get("/patients/{id}", s.handleFind)
			r.Get("/export/{format}", s.handleExport)

			r.With(auth).Post("/patients", s.handleAdd)
			r.With(auth).Patch("/patients/{id}", s.handleUpdate)
			r.With(auth).Delete("/patients/{id}", s.handleDelete)
		})

		// Loads run under their own, longer deadline.
		r.With(auth, chimw.Timeout(s.cfg.Load.Timeout)).Post("/load", s.handleLoad)
	})
}

func (s *Server) requestTimeout() time.Duration {
	if s.cfg.Server.RequestTimeout > 0 {
		return s.cfg.Server.RequestTimeout
	}
	return 60 * time.Second
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and blocks until the server
// stops. The rate limiter's eviction loop runs until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if s.limiter != nil {
		go s.limiter.Run(ctx)
	}

	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// securityHeaders sets headers suitable for a JSON-only API.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
