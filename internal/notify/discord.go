package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// Embed colours per toast kind.
var discordColors = map[domain.ToastKind]int{
	domain.ToastSuccess: 0x2ecc71,
	domain.ToastError:   0xe74c3c,
	domain.ToastInfo:    0x3498db,
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

// DiscordSender delivers toasts as embeds via a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *retryablehttp.Client
	now        func() time.Time
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     newRetryClient(10 * time.Second),
		now:        time.Now,
	}
}

// Send posts the toast as a single embed coloured by kind.
func (d *DiscordSender) Send(ctx context.Context, t domain.Toast) error {
	body, err := json.Marshal(discordPayload{
		Username: "Hotpot",
		Embeds: []discordEmbed{{
			Title:       t.Title,
			Description: t.Message,
			Color:       discordColors[t.Kind],
			Timestamp:   d.now().UTC().Format(time.RFC3339),
		}},
	})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}
	if err := postJSON(ctx, d.client, d.webhookURL, body, nil); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
