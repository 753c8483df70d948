package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

const telegramAPI = "https://api.telegram.org"

// telegramMessage is the sendMessage request body.
type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

var telegramIcons = map[domain.ToastKind]string{
	domain.ToastSuccess: "✅",
	domain.ToastError:   "❌",
	domain.ToastInfo:    "ℹ️",
}

// TelegramSender posts toasts to a chat through the Bot API.
type TelegramSender struct {
	apiURL string
	token  string
	chatID string
	client *retryablehttp.Client
}

// NewTelegramSender creates a TelegramSender for a bot token and chat id.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		apiURL: telegramAPI,
		token:  token,
		chatID: chatID,
		client: newRetryClient(10 * time.Second),
	}
}

// WithAPIURL points the sender at a different Bot API host.
func (t *TelegramSender) WithAPIURL(u string) *TelegramSender {
	t.apiURL = strings.TrimRight(u, "/")
	return t
}

// Send posts the toast as an HTML message. Title and message are escaped,
// so token names and error text cannot break the markup.
func (t *TelegramSender) Send(ctx context.Context, toast domain.Toast) error {
	body, err := json.Marshal(telegramMessage{
		ChatID:                t.chatID,
		Text:                  telegramText(toast),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal message: %w", err)
	}
	endpoint := t.apiURL + "/bot" + t.token + "/sendMessage"
	if err := postJSON(ctx, t.client, endpoint, body, nil); err != nil {
		// The endpoint embeds the bot token; keep it out of the error.
		return fmt.Errorf("telegram: sendMessage: %w", redactToken(err, t.token))
	}
	return nil
}

func telegramText(toast domain.Toast) string {
	var b strings.Builder
	if icon, ok := telegramIcons[toast.Kind]; ok {
		b.WriteString(icon + " ")
	}
	b.WriteString("<b>" + html.EscapeString(toast.Title) + "</b>")
	if toast.Message != "" {
		b.WriteString("\n" + html.EscapeString(toast.Message))
	}
	return b.String()
}

// redactToken replaces the bot token in err's text.
func redactToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "***"))
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
