package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// discordContentLimit is the maximum message length Discord accepts.
const discordContentLimit = 2000

// DiscordSender posts to a Discord webhook.
type DiscordSender struct {
	webhookURL string
	username   string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for webhookURL. username overrides
// the webhook's display name when non-empty.
func NewDiscordSender(webhookURL, username string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		username:   username,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordPayload struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

// Send posts title in bold followed by message.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	content := fmt.Sprintf("**%s**\n%s", title, message)
	if len(content) > discordContentLimit {
		content = content[:discordContentLimit-3] + "..."
	}

	body, err := json.Marshal(discordPayload{Content: content, Username: d.username})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Name returns "discord".
func (d *DiscordSender) Name() string { return "discord" }
