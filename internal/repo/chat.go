package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/triagestack/triage-engine/internal/models"
)

// ChatClient posts alerts to a chat webhook.
type ChatClient struct {
	webhookURL string
	channel    string
	httpClient *http.Client
}

// NewChatClient constructs a webhook-based notification sender. channel is
// the default destination when an alert carries none.
func NewChatClient(webhookURL, channel string, timeout time.Duration) *ChatClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ChatClient{
		webhookURL: strings.TrimSpace(webhookURL),
		channel:    channel,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Channel string         `json:"channel"`
	Text    string         `json:"text"`
	Details map[string]any `json:"details,omitempty"`
	Source  string         `json:"source,omitempty"`
	Level   string         `json:"level,omitempty"`
	Tags    []string       `json:"tags,omitempty"`
}

type chatResponse struct {
	OK        bool   `json:"ok"`
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// Send dispatches one alert and returns the downstream message id.
func (c *ChatClient) Send(ctx context.Context, alert models.Alert) (string, error) {
	if c == nil || c.webhookURL == "" {
		return "", fmt.Errorf("chat webhook not configured")
	}

	channel := c.channel
	if v, ok := alert.Details["channel"].(string); ok && v != "" {
		channel = v
	}

	payload := chatMessage{
		Channel: channel,
		Text:    fmt.Sprintf("*%s*\n%s", alert.Title, alert.Message),
		Details: alert.Details,
		Source:  alert.Metadata.Source,
		Level:   string(alert.Type),
		Tags:    alert.Metadata.Tags,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat webhook returned %s", resp.Status)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		// Some webhook backends answer with a bare "ok" body.
		return alert.ID, nil
	}
	if !parsed.OK && parsed.Error != "" {
		return "", fmt.Errorf("chat webhook rejected message: %s", parsed.Error)
	}
	if parsed.MessageID != "" {
		return parsed.MessageID, nil
	}
	return alert.ID, nil
}

// CheckAvailability probes the webhook endpoint.
func (c *ChatClient) CheckAvailability(ctx context.Context) bool {
	if c == nil || c.webhookURL == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.webhookURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
