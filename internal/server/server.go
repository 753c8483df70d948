// Package server exposes the storefront backend over HTTP and websocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/hotpot/internal/domain"
	"github.com/alanyoungcy/hotpot/internal/server/handler"
	"github.com/alanyoungcy/hotpot/internal/server/middleware"
	"github.com/alanyoungcy/hotpot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	RateLimit   int    // requests per RateWindow and client; 0 disables
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Audit is optional.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	PrizePool *handler.PrizePoolHandler
	Listings  *handler.ListingHandler
	Audit     *handler.AuditHandler
}

// Server is the headless HTTP + WebSocket API server of the storefront.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limit, auth, logging, CORS) and attaches the
// WebSocket hub. limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "http_server"))
	mux := http.NewServeMux()
	Routes(mux, handlers, wsHub)

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Routes registers every endpoint on mux.
func Routes(mux *http.ServeMux, handlers Handlers, wsHub *ws.Hub) {
	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Prize pool banner.
	mux.HandleFunc("GET /api/prize-pool", handlers.PrizePool.GetPrizePool)

	// Listing records.
	mux.HandleFunc("GET /api/listings", handlers.Listings.ListListings)
	mux.HandleFunc("GET /api/listings/expirations", handlers.Listings.Expirations)
	mux.HandleFunc("GET /api/listings/tx/{hash}", handlers.Listings.GetListing)

	// Listing wizard sessions.
	mux.HandleFunc("POST /api/listings/sessions", handlers.Listings.OpenSession)
	mux.HandleFunc("GET /api/listings/sessions/{id}", handlers.Listings.GetSession)
	mux.HandleFunc("DELETE /api/listings/sessions/{id}", handlers.Listings.DeleteSession)
	mux.HandleFunc("PUT /api/listings/sessions/{id}/price", handlers.Listings.SetPrice)
	mux.HandleFunc("PUT /api/listings/sessions/{id}/expiration", handlers.Listings.SetExpiration)
	mux.HandleFunc("POST /api/listings/sessions/{id}/{action}", handlers.Listings.Action)

	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.ListAudit)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
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
