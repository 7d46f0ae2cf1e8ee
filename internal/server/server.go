// Package server is the HTTP admin surface: job and registry
// management, governance transfer, manual upkeep triggering, and the
// WebSocket event stream.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashliquidity/flashliquidity-arbiter/internal/domain"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/server/handler"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/server/middleware"
	"github.com/flashliquidity/flashliquidity-arbiter/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	AuthToken   string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health     *handler.HealthHandler
	Status     *handler.StatusHandler
	Jobs       *handler.JobsHandler
	Registry   *handler.RegistryHandler
	Governance *handler.GovernanceHandler
	Rebalances *handler.RebalancesHandler
	Upkeep     *handler.UpkeepHandler
}

// Server is the admin HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. limiter may be
// nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Runtime status.
	mux.HandleFunc("GET /api/status", handlers.Status.Status)

	// Job registry.
	mux.HandleFunc("GET /api/jobs", handlers.Jobs.List)
	mux.HandleFunc("POST /api/jobs", handlers.Jobs.Push)
	mux.HandleFunc("GET /api/jobs/{index}", handlers.Jobs.Get)
	mux.HandleFunc("DELETE /api/jobs/{index}", handlers.Jobs.Remove)
	mux.HandleFunc("PUT /api/jobs/{index}/active", handlers.Jobs.SetActive)
	mux.HandleFunc("POST /api/jobs/{index}/pools", handlers.Jobs.PushPool)
	mux.HandleFunc("DELETE /api/jobs/{index}/pools/{poolIndex}", handlers.Jobs.RemovePool)

	// Registry scalars.
	mux.HandleFunc("PUT /api/registry/feeds", handlers.Registry.SetFeeds)
	mux.HandleFunc("PUT /api/registry/staleness", handlers.Registry.SetStaleness)
	mux.HandleFunc("PUT /api/registry/decimals", handlers.Registry.SetDecimals)

	// Governance.
	mux.HandleFunc("GET /api/governance", handlers.Governance.State)
	mux.HandleFunc("POST /api/governance/pending", handlers.Governance.SetPending)
	mux.HandleFunc("POST /api/governance/transfer", handlers.Governance.Transfer)

	// Rebalance audit trail.
	mux.HandleFunc("GET /api/rebalances", handlers.Rebalances.ListRecent)

	// Engine phases.
	mux.HandleFunc("POST /api/upkeep/check", handlers.Upkeep.Check)
	mux.HandleFunc("POST /api/upkeep/perform", handlers.Upkeep.Perform)

	// WebSocket event stream.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.AuthToken)(h)
	if limiter != nil {
		h = middleware.RateLimit(limiter, 60, time.Minute)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
