package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbengine/internal/platform/apiclient"
)

// DiscordSender posts to a Discord webhook.
type DiscordSender struct {
	api *apiclient.Client
}

// NewDiscordSender creates a DiscordSender. httpClient may be nil.
func NewDiscordSender(webhookURL string, httpClient *http.Client) *DiscordSender {
	return &DiscordSender{api: apiclient.New(webhookURL, httpClient, 10*time.Second)}
}

// Send posts the title in bold and the message in a code block. Discord
// answers 204 with no body.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	payload := map[string]string{
		"content": fmt.Sprintf("**%s**\n```\n%s\n```", title, message),
	}
	if err := d.api.PostJSON(ctx, "", payload, nil); err != nil {
		return fmt.Errorf("discord: send webhook: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string { return "discord" }
