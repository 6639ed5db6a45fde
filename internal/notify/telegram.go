package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbengine/internal/platform/apiclient"
)

// TelegramAPI is the Bot API root.
const TelegramAPI = "https://api.telegram.org"

// TelegramSender posts to a chat through the Telegram Bot API.
type TelegramSender struct {
	api    *apiclient.Client
	token  string
	chatID string
}

// NewTelegramSender creates a TelegramSender. baseURL is normally
// TelegramAPI; httpClient may be nil.
func NewTelegramSender(baseURL, token, chatID string, httpClient *http.Client) *TelegramSender {
	return &TelegramSender{
		api:    apiclient.New(baseURL, httpClient, 10*time.Second),
		token:  token,
		chatID: chatID,
	}
}

// Send calls sendMessage with the title in bold. Opportunity lines go in a
// code block so the pipes and underscores need no escaping.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("*%s*\n```\n%s\n```", title, message),
		"parse_mode": "Markdown",
	}
	if err := t.api.PostJSON(ctx, "/bot"+t.token+"/sendMessage", payload, nil); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string { return "telegram" }
