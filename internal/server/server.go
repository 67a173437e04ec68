// Package server provides the local HTTP API of the police terminal: panel
// control, the rendered overlay, preferences and a notice event stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/config"
	"github.com/jonathan/police-terminal/internal/refresh"
	"github.com/jonathan/police-terminal/internal/render"
	"github.com/jonathan/police-terminal/internal/server/middleware"
	"github.com/jonathan/police-terminal/internal/server/ratelimit"
	"github.com/jonathan/police-terminal/internal/sources"
	"github.com/jonathan/police-terminal/internal/store"
	"github.com/jonathan/police-terminal/internal/types"
)

// Controller is the part of refresh.Controller the API drives.
type Controller interface {
	Open(panel types.Panel) bool
	Refresh(panel types.Panel, scope sources.Scope) bool
	HandleMessage(text string) []types.Panel
	Goto(ctx context.Context, markerID string) (string, error)
	State(panel types.Panel) types.WaitState
	States() map[types.Panel]types.WaitState
}

// Deps are the collaborators the server exposes.
type Deps struct {
	Controller  Controller
	Collector   refresh.Collector // diagnostics only; may be nil
	Snapshots   refresh.Store
	Preferences *store.Preferences
	Overlay     *render.Overlay
	Broker      *Broker

	JWT       *JWTService
	Passcodes *config.PasscodeConfig
	Officer   config.OfficerConfig

	Gatherer    prometheus.Gatherer // nil uses the default registry
	Limiter     *ratelimit.Limiter  // nil disables rate limiting
	CORSOrigins []string            // empty allows any origin
	Logger      *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	deps       Deps
	logger     *zap.Logger
	handler    http.Handler
	httpServer *http.Server
}

// New creates a new server listening on addr.
func New(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{deps: deps, logger: logger}
	auth := middleware.AuthMiddleware(deps.JWT.AsTokenValidator())
	protect := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /login", s.handleLogin)

	mux.Handle("POST /logout", protect(s.handleLogout))

	// Panels
	mux.Handle("POST /panels/{panel}/open", protect(s.handleOpenPanel))
	mux.Handle("POST /panels/{panel}/refresh", protect(s.handleRefreshPanel))
	mux.Handle("GET /panels/{panel}", protect(s.handleGetPanel))
	mux.Handle("GET /snapshots/{domain}", protect(s.handleGetSnapshot))
	mux.Handle("GET /diagnostics/{domain}", protect(s.handleDiagnostics))

	// Chat host feed
	mux.Handle("POST /messages", protect(s.handleMessage))

	// Map markers
	mux.Handle("GET /markers", protect(s.handleListMarkers))
	mux.Handle("GET /markers/{id}", protect(s.handleGetMarker))
	mux.Handle("POST /markers/{id}/goto", protect(s.handleGotoMarker))

	mux.Handle("GET /overlay", protect(s.handleOverlay))
	mux.Handle("GET /preferences", protect(s.handleGetPreferences))
	mux.Handle("PUT /preferences", protect(s.handleUpdatePreferences))
	mux.Handle("GET /events", protect(s.handleEvents))

	s.handler = s.withLogging(s.withCORS(s.withRateLimit(mux)))
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: /events streams for as long as the client stays.
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	if s.deps.Broker != nil {
		// Event streams never end on their own.
		s.deps.Broker.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if s.deps.Limiter != nil {
		s.deps.Limiter.Stop()
	}
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case len(s.deps.CORSOrigins) == 0:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.deps.CORSOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients that exceed their token bucket.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.deps.Limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.deps.Limiter.Allow(clientID(r), r.URL.Path, r.Method)
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		}
		if !allowed {
			retry := int(info.RetryAfter.Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			s.logger.Warn("rate limit exceeded",
				zap.String("client", clientID(r)), zap.String("path", r.URL.Path), zap.Int("limit", info.Limit))
			s.errorResponse(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// clientID is the request's IP address.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"panels": s.deps.Controller.States(),
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// errorFrom writes err with the status HTTPStatus picks for it.
func (s *Server) errorFrom(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.errorResponse(w, status, err.Error())
}
