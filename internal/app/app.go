// Package app owns the backend lifecycle: it wires the chain client, stores,
// caches, receipt archive and notifier, then runs the configured mode until
// the context ends.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/hotpot/internal/config"
)

// App runs one operating mode and releases what it wired on Close.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	started time.Time

	mu      sync.Mutex
	closers []func()
}

// New creates an App. Nothing is connected until Run.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run blocks until ctx is cancelled or the mode fails. Migrate mode only
// touches PostgreSQL and returns once the schema is current.
func (a *App) Run(ctx context.Context) error {
	a.started = time.Now()
	mode := strings.ToLower(a.cfg.Mode)
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	if mode == config.ModeMigrate {
		return a.MigrateMode(ctx)
	}

	var run func(context.Context, *Dependencies) error
	switch mode {
	case config.ModeFull:
		run = a.FullMode
	case config.ModeServer:
		run = a.ServerMode
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.onClose(cleanup)
	return run(ctx, deps)
}

func (a *App) onClose(fn func()) {
	a.mu.Lock()
	a.closers = append(a.closers, fn)
	a.mu.Unlock()
}

// Close releases resources in reverse order. Later calls do nothing.
func (a *App) Close() {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()
	if closers == nil {
		return
	}

	attrs := []any{}
	if !a.started.IsZero() {
		attrs = append(attrs, slog.Duration("uptime", time.Since(a.started).Round(time.Second)))
	}
	a.logger.Info("shutting down application", attrs...)
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
