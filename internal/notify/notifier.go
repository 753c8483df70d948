// Package notify delivers user-facing toasts. Toasts are dispatched to all
// registered senders (signal bus, Discord, Telegram, signed webhooks) and
// can be filtered by kind so operators receive only the alerts they care
// about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// deliveryTimeout bounds a fire-and-forget dispatch.
const deliveryTimeout = 30 * time.Second

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a toast.
	Send(ctx context.Context, t domain.Toast) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches toasts to one or more Senders. Only kinds in the
// allowed set are forwarded; an empty set allows every kind.
type Notifier struct {
	senders []Sender
	kinds   map[domain.ToastKind]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders.
func NewNotifier(senders []Sender, kinds []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.ToastKind]bool, len(kinds))
	for _, k := range kinds {
		if k = strings.TrimSpace(k); k != "" {
			allowed[domain.ToastKind(k)] = true
		}
	}
	return &Notifier{
		senders: senders,
		kinds:   allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Toast delivers t in the background and returns immediately. Delivery
// outlives ctx cancellation but not deliveryTimeout; failures are logged.
func (n *Notifier) Toast(ctx context.Context, t domain.Toast) {
	if !n.allowed(ctx, t) {
		return
	}
	go func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
		defer cancel()
		_ = n.dispatch(dctx, t)
	}()
}

// Notify delivers t synchronously and reports sender failures.
func (n *Notifier) Notify(ctx context.Context, t domain.Toast) error {
	if !n.allowed(ctx, t) {
		return nil
	}
	return n.dispatch(ctx, t)
}

func (n *Notifier) allowed(ctx context.Context, t domain.Toast) bool {
	if len(n.kinds) > 0 && !n.kinds[t.Kind] {
		n.logger.DebugContext(ctx, "toast filtered out", slog.String("kind", string(t.Kind)))
		return false
	}
	return true
}

// dispatch sends to every sender. A single sender failure does not prevent
// delivery to the rest; failures are returned combined.
func (n *Notifier) dispatch(ctx context.Context, t domain.Toast) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, t); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "toast sent",
				slog.String("sender", s.Name()),
				slog.String("title", t.Title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
