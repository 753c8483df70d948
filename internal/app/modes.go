package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/hotpot/internal/server"
	"github.com/alanyoungcy/hotpot/internal/server/handler"
	"github.com/alanyoungcy/hotpot/internal/server/ws"
	"github.com/alanyoungcy/hotpot/internal/session"
)

// shutdownTimeout bounds the graceful HTTP and session shutdown.
const shutdownTimeout = 5 * time.Second

// FullMode serves the API with a signing wallet so listing wizards can
// submit approval and makeItem transactions.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	if deps.Wallet == nil {
		return fmt.Errorf("full mode: wallet is required")
	}
	return a.serve(ctx, deps)
}

// ServerMode serves the API without requiring a wallet. The prize pool and
// listing records work normally; submissions fail with a retryable error
// until a key is configured.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	return a.serve(ctx, deps)
}

// MigrateMode applies the embedded PostgreSQL migrations and returns.
func (a *App) MigrateMode(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting migrate mode")
	cfg := *a.cfg
	cfg.Postgres.RunMigrations = true
	client, err := OpenPostgres(ctx, &cfg)
	if err != nil {
		return fmt.Errorf("migrate mode: %w", err)
	}
	client.Close()
	a.logger.InfoContext(ctx, "migrations applied")
	return nil
}

// serve hosts the listing sessions and, when enabled, the HTTP server. It
// blocks until ctx is cancelled or a component fails.
func (a *App) serve(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	sessions := a.newSessionManager(deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, sessions)
	} else {
		a.logger.WarnContext(ctx, "HTTP server disabled; nothing can open listing sessions")
	}

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return sessions.Shutdown(shutCtx)
	})

	return g.Wait()
}

// newSessionManager wires the listing session manager to every collaborator
// the dependencies provide.
func (a *App) newSessionManager(deps *Dependencies) *session.Manager {
	return session.NewManager(session.Config{
		TTL:           a.cfg.Session.TTL.Duration,
		LockTTL:       a.cfg.Session.LockTTL.Duration,
		SubmitTimeout: a.cfg.Session.SubmitTimeout.Duration,
	}, deps.ListingDeps,
		session.WithToaster(deps.Notifier),
		session.WithSignalBus(deps.SignalBus),
		session.WithLockManager(deps.LockManager),
		session.WithListingStore(deps.ListingStore),
		session.WithAuditStore(deps.AuditStore),
		session.WithReceiptArchiver(deps.Archiver),
		session.WithLogger(a.logger),
	)
}

// startHTTPServer adds the HTTP server and websocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, sessions *session.Manager) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:           a.cfg.Mode,
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: a.cfg.Server.CORSOrigins,
		Snapshot: func(id string) (any, bool) {
			s, err := sessions.Get(id)
			if err != nil {
				return nil, false
			}
			return session.StateEvent{SessionID: s.ID, State: s.Wizard.State().View()}, true
		},
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	account := ""
	if deps.Wallet != nil {
		account = deps.Wallet.Address().Hex()
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.PingFunc{
			"postgres": deps.Postgres.Ping,
			"redis":    deps.Redis.Ping,
			"s3":       deps.S3.Health,
		}, a.logger),
		Status: handler.NewStatusHandler(
			a.cfg.Mode,
			a.cfg.Chain.ChainID,
			a.cfg.Chain.Marketplace().Hex(),
			account,
			sessions,
		),
		PrizePool: handler.NewPrizePoolHandler(deps.PrizePool, a.logger),
		Listings:  handler.NewListingHandler(sessions, deps.ListingStore, a.logger),
		Audit:     handler.NewAuditHandler(deps.AuditStore, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		port := a.cfg.Server.Port
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})
}
