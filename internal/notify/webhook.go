package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/CosmoTheDev/tasknotify/models"
	"github.com/golang-jwt/jwt/v5"
)

// SignatureHeader carries the HMAC-SHA256 of the request body when a secret
// is configured.
const SignatureHeader = "X-Tasknotify-Signature"

// WebhookProvider sends notifications to a generic HTTP endpoint.
//
// Settings: url (required), secret (HMAC body signature), jwt_secret (HS256
// bearer token).
type WebhookProvider struct {
	client *http.Client
}

// NewWebhook creates a WebhookProvider that sends with client.
func NewWebhook(client *http.Client) *WebhookProvider { return &WebhookProvider{client: client} }

func (w *WebhookProvider) Type() string { return "webhook" }

func (w *WebhookProvider) Validate(cfg models.ProviderConfig) models.ValidationResult {
	if problem := checkURL("url", cfg.Setting("url"), "http", "https"); problem != "" {
		return models.Invalid(problem)
	}
	return models.ValidationResult{Valid: true}
}

func (w *WebhookProvider) Send(ctx context.Context, cfg models.ProviderConfig, msg models.NotificationMessage) models.NotificationResult {
	return finish(w.Type(), w.send(ctx, cfg, msg))
}

func (w *WebhookProvider) send(ctx context.Context, cfg models.ProviderConfig, msg models.NotificationMessage) error {
	if v := w.Validate(cfg); !v.Valid {
		return invalidConfig(w.Type(), v)
	}
	now := time.Now().UTC()
	b, err := json.Marshal(map[string]any{
		"event":    msg.EventName,
		"provider": msg.ProviderType,
		"text":     msg.RenderedText,
		"ts":       now.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	header := http.Header{}
	if secret := cfg.Setting("secret"); secret != "" {
		header.Set(SignatureHeader, "sha256="+Sign([]byte(secret), b))
	}
	if key := cfg.Setting("jwt_secret"); key != "" {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"iss": "tasknotify",
			"evt": msg.EventName,
			"iat": now.Unix(),
		})
		signed, err := tok.SignedString([]byte(key))
		if err != nil {
			return sendErr(FailureAuth, "webhook: sign token: %w", err)
		}
		header.Set("Authorization", "Bearer "+signed)
	}
	return postJSON(ctx, w.client, "webhook", cfg.Setting("url"), b, header)
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
