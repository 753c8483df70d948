package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// BusSender publishes toasts on the signal bus.
type BusSender struct {
	bus domain.SignalBus
}

// NewBusSender creates a BusSender.
func NewBusSender(bus domain.SignalBus) *BusSender {
	return &BusSender{bus: bus}
}

// Send publishes the toast as JSON.
func (b *BusSender) Send(ctx context.Context, t domain.Toast) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("bus: marshal toast: %w", err)
	}
	if err := b.bus.Publish(ctx, domain.ChannelToast, payload); err != nil {
		return fmt.Errorf("bus: publish toast: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (b *BusSender) Name() string {
	return "bus"
}
