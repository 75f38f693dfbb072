// Package httpapi exposes the REST surface: scan lifecycle, scan
// history and reports, vulnerability browsing, and dashboard stats.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/ecomsec/scanhub/internal/engine"
	"github.com/ecomsec/scanhub/internal/store"
)

// Server holds the handlers' dependencies.
type Server struct {
	store     store.Store
	orch      *engine.Orchestrator
	logger    *slog.Logger
	jwtSecret []byte
	metrics   http.Handler
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMetricsHandler mounts a /metrics endpoint.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.metrics = h }
}

// WithServerLogger sets the request logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer creates the API server. jwtSecret verifies bearer tokens
// issued by the external auth service.
func NewServer(st store.Store, orch *engine.Orchestrator, jwtSecret []byte, opts ...ServerOption) *Server {
	s := &Server{
		store:     st,
		orch:      orch,
		logger:    slog.New(slog.DiscardHandler),
		jwtSecret: jwtSecret,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/scans", func(r chi.Router) {
			r.With(s.requireScanManager).Post("/start", s.handleStartScan)
			r.Get("/history", s.handleScanHistory)
			r.Get("/{scanID}", s.handleScanDetails)
			r.With(s.requireScanManager).Post("/{scanID}/cancel", s.handleCancelScan)
			r.Get("/{scanID}/report", s.handleScanReport)
		})

		r.Route("/vulnerabilities", func(r chi.Router) {
			r.Get("/", s.handleListVulnerabilities)
			r.With(s.requireScanManager).Post("/{findingID}/resolve", s.handleResolveFinding)
		})

		r.Get("/dashboard/stats", s.handleDashboardStats)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
