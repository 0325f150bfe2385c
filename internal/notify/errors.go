package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CosmoTheDev/tasknotify/models"
)

// FailureKind classifies why a send failed. The router only sees
// success/failure; the kind is for logs and the error detail.
type FailureKind int

const (
	// FailureTransient covers network errors, timeouts, rate limiting and 5xx.
	FailureTransient FailureKind = iota
	// FailureAuth covers rejected credentials and missing configuration.
	FailureAuth
	// FailureTarget covers an invalid recipient, chat or endpoint.
	FailureTarget
)

func (k FailureKind) String() string {
	switch k {
	case FailureAuth:
		return "auth"
	case FailureTarget:
		return "target"
	default:
		return "transient"
	}
}

// SendError wraps a delivery failure with its kind.
type SendError struct {
	Kind FailureKind
	Err  error
}

func (e *SendError) Error() string { return e.Err.Error() }
func (e *SendError) Unwrap() error { return e.Err }

func sendErr(kind FailureKind, format string, args ...any) error {
	return &SendError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the FailureKind of err. Unclassified errors are transient.
func KindOf(err error) FailureKind {
	var se *SendError
	if errors.As(err, &se) {
		return se.Kind
	}
	return FailureTransient
}

// kindForStatus maps an HTTP response status to a FailureKind.
func kindForStatus(code int) FailureKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return FailureAuth
	case http.StatusBadRequest, http.StatusNotFound, http.StatusGone, http.StatusUnprocessableEntity:
		return FailureTarget
	default:
		return FailureTransient
	}
}

// finish turns the outcome of a send into a NotificationResult and logs failures.
func finish(providerType string, err error) models.NotificationResult {
	res := models.NotificationResult{
		ProviderType: providerType,
		Success:      err == nil,
		SentAt:       time.Now().UTC(),
	}
	if err == nil {
		return res
	}
	kind := KindOf(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = FailureTransient
	}
	res.ErrorDetail = kind.String() + ": " + err.Error()
	slog.Warn("notify: send failed", "provider", providerType, "kind", kind.String(), "error", err)
	return res
}

// invalidConfig is the send-time guard for a config that fails validation.
func invalidConfig(providerType string, v models.ValidationResult) error {
	return sendErr(FailureAuth, "%s: invalid configuration: %v", providerType, v.Errors)
}
