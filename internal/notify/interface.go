// Package notify holds the delivery channels. Each channel is a Provider keyed
// by its type string in a Registry; the router only ever talks to the Registry.
package notify

import (
	"context"

	"github.com/CosmoTheDev/tasknotify/models"
)

// Provider is implemented by each delivery channel.
//
// Validate must not perform I/O. Send must never panic or block past ctx; every
// failure is reported as a NotificationResult with Success=false.
type Provider interface {
	Type() string
	Validate(cfg models.ProviderConfig) models.ValidationResult
	Send(ctx context.Context, cfg models.ProviderConfig, msg models.NotificationMessage) models.NotificationResult
}
