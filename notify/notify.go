// Package notify is the outbound boundary to the chat platform: posting
// messages and alerts to channels, and provisioning/removing ticket channels.
// The platform gateway itself is an external collaborator reached over a
// webhook URL; everything here goes through narrow interfaces so tests and
// the scheduler never touch the network.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/creator-hub/backend/telemetry"
)

// Sink delivers formatted messages to chat channels.
type Sink interface {
	// Post sends a plain message to a channel.
	Post(ctx context.Context, channelID, message string) error
	// Alert sends a titled warning to the configured alerts channel.
	Alert(ctx context.Context, title, body string) error
}

// ChannelProvider provisions and removes chat channels for tickets.
type ChannelProvider interface {
	CreateChannel(ctx context.Context, name, ownerID string) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
}

// WebhookSink posts JSON payloads to the gateway webhook with a bounded
// timeout so a stalled gateway can never block the single control flow.
type WebhookSink struct {
	url           string
	alertsChannel string
	client        *http.Client
}

// NewWebhookSink builds a sink for the given webhook URL. A zero timeout
// falls back to 10 seconds.
func NewWebhookSink(url, alertsChannel string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:           url,
		alertsChannel: alertsChannel,
		client:        &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	ChannelID string `json:"channel_id"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
}

func (s *WebhookSink) Post(ctx context.Context, channelID, message string) error {
	return s.send(ctx, webhookPayload{ChannelID: channelID, Content: message})
}

func (s *WebhookSink) Alert(ctx context.Context, title, body string) error {
	if s.alertsChannel == "" {
		// No alerts channel configured; drop silently like the original bot.
		slog.Debug("alert dropped: no alerts channel configured", slog.String("title", title))
		return nil
	}
	err := s.send(ctx, webhookPayload{ChannelID: s.alertsChannel, Title: title, Content: body})
	if err != nil {
		if telemetry.AlertsFailed != nil {
			telemetry.AlertsFailed.Inc()
		}
		return err
	}
	if telemetry.AlertsSent != nil {
		telemetry.AlertsSent.Inc()
	}
	return nil
}

func (s *WebhookSink) send(ctx context.Context, payload webhookPayload) error {
	if s.url == "" {
		slog.Debug("notification dropped: NOTIFY_WEBHOOK_URL not set", slog.String("channel", payload.ChannelID))
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification webhook returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// NoopChannels is a ChannelProvider for deployments where the gateway manages
// channels itself; ticket channel ids stay empty.
type NoopChannels struct{}

func (NoopChannels) CreateChannel(context.Context, string, string) (string, error) { return "", nil }
func (NoopChannels) DeleteChannel(context.Context, string) error                   { return nil }
