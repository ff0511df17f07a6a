package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"permafeed/service/activity"
	"permafeed/service/config"
	"permafeed/service/db"
	"permafeed/service/metrics"
	"permafeed/service/pricing"
)

// Server represents the HTTP server for the activity service.
type Server struct {
	addr         string
	cfg          *config.Config
	store        *db.Store
	activity     *activity.Service
	rates        *pricing.Service
	ssePublisher *SSEPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The ssePublisher is optional - if nil, SSE endpoints won't be available.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, store *db.Store, activitySvc *activity.Service, rates *pricing.Service, ssePublisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:         addr,
		cfg:          cfg,
		store:        store,
		activity:     activitySvc,
		rates:        rates,
		ssePublisher: ssePublisher,
		metrics:      m,
		logger:       logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mw := func(name string, h http.Handler) http.Handler {
		return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
	}

	// Activity routes
	mux.Handle("GET /api/v1/wallets/{address}/activity",
		mw("/api/v1/wallets/activity", handleGetActivity(s.activity, s.rates, s.logger)))
	mux.Handle("GET /api/v1/wallets/{address}/activity/{id}",
		mw("/api/v1/wallets/activity/record", handleGetRecord(s.activity, s.rates, s.logger)))

	// Session routes
	mux.Handle("GET /api/v1/session",
		mw("/api/v1/session", handleGetSession(s.store, s.activity, s.rates, s.cfg, s.logger)))
	mux.Handle("PUT /api/v1/session/address",
		mw("/api/v1/session/address", handleSetAddress(s.store, s.activity, s.cfg, s.logger)))
	mux.Handle("PUT /api/v1/session/currency",
		mw("/api/v1/session/currency", handleSetCurrency(s.store, s.activity, s.rates, s.logger)))
	mux.Handle("DELETE /api/v1/session",
		mw("/api/v1/session", handleClearSession(s.store, s.logger)))

	// SSE streaming endpoints (if SSE publisher is configured)
	if s.ssePublisher != nil {
		mux.Handle("GET /api/v1/stream/activity/{address}", handleStreamActivity(s.ssePublisher, s.metrics, s.logger))
		mux.Handle("GET /api/v1/stream/activity", handleStreamActivity(s.ssePublisher, s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoints disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	// Wrap mux with CORS middleware
	handler := corsMiddleware(mux)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE connections are long-lived
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-Key")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
