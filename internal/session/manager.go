// Package session hosts listing wizards for remote clients. Each session
// owns one wizard, lives in a TTL cache and runs submissions in the
// background so API requests return immediately.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/alanyoungcy/hotpot/internal/domain"
	"github.com/alanyoungcy/hotpot/internal/listing"
)

// Defaults applied when Config fields are zero.
const (
	defaultTTL           = 30 * time.Minute
	defaultLockTTL       = 15 * time.Minute
	defaultSubmitTimeout = 10 * time.Minute
	publishTimeout       = 5 * time.Second
)

// Config controls session lifetime and submission limits.
type Config struct {
	// TTL is how long an idle session is kept.
	TTL time.Duration
	// LockTTL bounds how long a token stays locked by one submission.
	LockTTL time.Duration
	// SubmitTimeout bounds a whole background submission.
	SubmitTimeout time.Duration
}

// DepsFunc builds the contract collaborators for an item.
type DepsFunc func(item listing.Item) listing.Deps

// ReceiptArchiver stores a copy of a confirmed listing.
type ReceiptArchiver interface {
	ArchiveReceipt(ctx context.Context, rec domain.ListingRecord) (string, error)
}

// Session is one wizard hosted for a client.
type Session struct {
	ID        string
	Item      listing.Item
	Wizard    *listing.Wizard
	CreatedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithToaster sets the toast sink handed to every wizard.
func WithToaster(t listing.Toaster) Option { return func(m *Manager) { m.toaster = t } }

// WithSignalBus publishes wizard state and revalidation events.
func WithSignalBus(b domain.SignalBus) Option { return func(m *Manager) { m.bus = b } }

// WithLockManager serialises submissions per token across instances. The
// default lock only covers this process.
func WithLockManager(l domain.LockManager) Option { return func(m *Manager) { m.locks = l } }

// WithListingStore persists confirmed listings.
func WithListingStore(s domain.ListingStore) Option { return func(m *Manager) { m.listings = s } }

// WithAuditStore records session events.
func WithAuditStore(s domain.AuditStore) Option { return func(m *Manager) { m.audit = s } }

// WithReceiptArchiver archives confirmed listings.
func WithReceiptArchiver(a ReceiptArchiver) Option { return func(m *Manager) { m.archiver = a } }

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithClock overrides time.Now for wizards and records.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// Manager owns the live sessions.
type Manager struct {
	cfg      Config
	deps     DepsFunc
	sessions *cache.Cache

	toaster  listing.Toaster
	bus      domain.SignalBus
	locks    domain.LockManager
	listings domain.ListingStore
	audit    domain.AuditStore
	archiver ReceiptArchiver
	logger   *slog.Logger
	now      func() time.Time

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a Manager. deps is called once per opened session.
func NewManager(cfg Config, deps DepsFunc, opts ...Option) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = defaultSubmitTimeout
	}

	baseCtx, stop := context.WithCancel(context.Background())
	m := &Manager{
		cfg:     cfg,
		deps:    deps,
		logger:  slog.Default(),
		now:     time.Now,
		baseCtx: baseCtx,
		stop:    stop,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.locks == nil {
		m.locks = newLocalLocks()
	}
	m.logger = m.logger.With(slog.String("component", "listing_sessions"))

	m.sessions = cache.New(cfg.TTL, cfg.TTL/2)
	m.sessions.OnEvicted(func(id string, v any) {
		if s, ok := v.(*Session); ok {
			s.cancel()
			m.logger.Debug("session evicted", slog.String("session_id", id))
		}
	})
	return m
}

// Open starts a wizard for item and returns its session.
func (m *Manager) Open(ctx context.Context, item listing.Item) (*Session, error) {
	if item.Collection == (common.Address{}) {
		return nil, fmt.Errorf("session: collection address is required")
	}
	if item.TokenID == nil || item.TokenID.Sign() < 0 {
		return nil, fmt.Errorf("session: token id must be a non-negative integer")
	}

	sctx, cancel := context.WithCancel(m.baseCtx)
	s := &Session{
		ID:        uuid.NewString(),
		Item:      listing.Item{Collection: item.Collection, TokenID: new(big.Int).Set(item.TokenID)},
		CreatedAt: m.now(),
		ctx:       sctx,
		cancel:    cancel,
	}

	var deps listing.Deps
	if m.deps != nil {
		deps = m.deps(s.Item)
	}
	s.Wizard = listing.NewWizard(s.Item, deps,
		listing.WithToaster(m.toaster),
		listing.WithOnStateChange(func(st listing.State) { m.onStateChange(s, st) }),
		listing.WithOnListingError(func(err error) { m.onListingError(s, err) }),
		listing.WithOnListed(func(ctx context.Context, r listing.Receipt) { m.onListed(ctx, s, r) }),
		listing.WithOnClose(func() { m.onClose(s) }),
		listing.WithClock(m.now),
		listing.WithLogger(m.logger.With(slog.String("session_id", s.ID))),
	)

	m.sessions.SetDefault(s.ID, s)
	m.logAudit(ctx, domain.AuditSessionOpened, s, nil)
	m.logger.InfoContext(ctx, "session opened",
		slog.String("session_id", s.ID),
		slog.String("collection", s.Item.Collection.Hex()),
		slog.String("token_id", s.Item.TokenID.String()),
	)
	return s, nil
}

// Get returns a live session and extends its lifetime.
func (m *Manager) Get(id string) (*Session, error) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	s := v.(*Session)
	m.sessions.SetDefault(id, s)
	return s, nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}

// Submit validates the request synchronously and then runs the submission
// in the background on the session context. The token lock is held for the
// whole submission.
func (m *Manager) Submit(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := s.Wizard.CheckSubmit(); err != nil {
		return err
	}

	unlock, err := m.locks.Acquire(ctx, lockKey(s.Item), m.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer unlock()

		runCtx, cancel := context.WithTimeout(s.ctx, m.cfg.SubmitTimeout)
		defer cancel()

		if err := s.Wizard.Submit(runCtx); err != nil && !listing.IsRetryable(err) {
			m.logger.WarnContext(runCtx, "submission rejected",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
	return nil
}

// Do dispatches a synchronous wizard action. Submit and Retry go through
// Submit.
func (m *Manager) Do(ctx context.Context, id string, action listing.Action) error {
	if action == listing.ActionSubmit || action == listing.ActionRetry {
		return m.Submit(ctx, id)
	}
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return s.Wizard.Do(ctx, action)
}

// Delete removes a session, cancelling any submission it is running.
func (m *Manager) Delete(id string) error {
	if _, ok := m.sessions.Get(id); !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	m.sessions.Delete(id)
	return nil
}

// Shutdown cancels every session and waits for background submissions to
// return or ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stop()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session: shutdown: %w", ctx.Err())
	}
}

func lockKey(item listing.Item) string {
	return "listing:" + item.Collection.Hex() + ":" + item.TokenID.String()
}

// IsConflict reports whether err means the request conflicts with work in
// progress.
func IsConflict(err error) bool {
	return errors.Is(err, domain.ErrSubmissionInFlight) || errors.Is(err, domain.ErrLockHeld)
}
