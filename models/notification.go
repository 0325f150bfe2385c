package models

import (
	"strings"
	"time"
)

// ProviderConfig configures one delivery channel.
type ProviderConfig struct {
	// Type is the registry key of the provider ("slack", "email", ...).
	Type     string            `mapstructure:"type"     json:"type"     yaml:"type"`
	Enabled  bool              `mapstructure:"enabled"  json:"enabled"  yaml:"enabled"`
	Settings map[string]string `mapstructure:"settings" json:"settings" yaml:"settings"`
}

// Setting returns the trimmed value of a setting key.
func (p ProviderConfig) Setting(key string) string {
	if p.Settings == nil {
		return ""
	}
	return strings.TrimSpace(p.Settings[key])
}

// NotificationTemplate is the message pattern for one event type.
type NotificationTemplate struct {
	EventType string `mapstructure:"event"     json:"event"     yaml:"event"`
	Body      string `mapstructure:"body"      json:"body"      yaml:"body"`
	// ProviderOverrides replaces Body for specific provider types.
	ProviderOverrides map[string]string `mapstructure:"overrides" json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// BodyFor returns the override body for providerType if one exists, else Body.
func (t NotificationTemplate) BodyFor(providerType string) string {
	if b, ok := t.ProviderOverrides[providerType]; ok {
		return b
	}
	return t.Body
}

// RoutingTarget pairs an enabled provider with the template it should render.
type RoutingTarget struct {
	Provider ProviderConfig
	Template NotificationTemplate
}

// NotificationMessage is a rendered message ready for one provider.
type NotificationMessage struct {
	ProviderType string `json:"provider"`
	RenderedText string `json:"text"`
	EventName    string `json:"event"`
}

// NotificationResult is the outcome of one dispatch attempt.
type NotificationResult struct {
	ProviderType string    `json:"provider"`
	Success      bool      `json:"success"`
	ErrorDetail  string    `json:"error,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

// ValidationResult is returned by a provider checking its own configuration.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Invalid returns a failed ValidationResult carrying errs.
func Invalid(errs ...string) ValidationResult {
	return ValidationResult{Valid: false, Errors: errs}
}
