package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/alanyoungcy/hotpot/internal/crypto"
	"github.com/alanyoungcy/hotpot/internal/domain"
)

// WebhookSender posts the raw toast JSON to an arbitrary endpoint. When a
// secret is configured the body is HMAC-signed.
type WebhookSender struct {
	url    string
	signer *crypto.WebhookSigner
	client *retryablehttp.Client
}

// NewWebhookSender creates a WebhookSender. An empty secret disables signing.
func NewWebhookSender(url, secret string) *WebhookSender {
	s := &WebhookSender{url: url, client: newRetryClient(10 * time.Second)}
	if secret != "" {
		s.signer = &crypto.WebhookSigner{Secret: secret}
	}
	return s
}

// Send posts the toast.
func (w *WebhookSender) Send(ctx context.Context, t domain.Toast) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("webhook: marshal toast: %w", err)
	}
	var headers map[string]string
	if w.signer != nil {
		headers = w.signer.Headers(body)
	}
	if err := postJSON(ctx, w.client, w.url, body, headers); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (w *WebhookSender) Name() string {
	return "webhook"
}
