package notify

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/CosmoTheDev/tasknotify/models"
)

// SlackProvider posts to a Slack-compatible incoming webhook.
//
// Settings: webhook_url (required, https), channel, username.
type SlackProvider struct {
	client *http.Client
}

// NewSlack creates a SlackProvider that sends with client.
func NewSlack(client *http.Client) *SlackProvider { return &SlackProvider{client: client} }

func (s *SlackProvider) Type() string { return "slack" }

func (s *SlackProvider) Validate(cfg models.ProviderConfig) models.ValidationResult {
	if problem := checkURL("webhook_url", cfg.Setting("webhook_url"), "https"); problem != "" {
		return models.Invalid(problem)
	}
	return models.ValidationResult{Valid: true}
}

func (s *SlackProvider) Send(ctx context.Context, cfg models.ProviderConfig, msg models.NotificationMessage) models.NotificationResult {
	return finish(s.Type(), s.send(ctx, cfg, msg))
}

func (s *SlackProvider) send(ctx context.Context, cfg models.ProviderConfig, msg models.NotificationMessage) error {
	if v := s.Validate(cfg); !v.Valid {
		return invalidConfig(s.Type(), v)
	}
	payload := map[string]any{"text": msg.RenderedText}
	if ch := cfg.Setting("channel"); ch != "" {
		payload["channel"] = ch
	}
	if u := cfg.Setting("username"); u != "" {
		payload["username"] = u
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return postJSON(ctx, s.client, "slack webhook", cfg.Setting("webhook_url"), b, nil)
}
