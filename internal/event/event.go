// Package event turns raw tracker webhook payloads into models.Event values and
// knows which entities each event type refers to.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/CosmoTheDev/tasknotify/models"
)

// MalformedEventError is returned when a payload lacks a usable event name or
// timestamp. It is the only error that stops an event before dispatch.
type MalformedEventError struct {
	Field  string
	Reason string
}

func (e *MalformedEventError) Error() string {
	if e.Field == "" {
		return "malformed event: " + e.Reason
	}
	return fmt.Sprintf("malformed event: %s: %s", e.Field, e.Reason)
}

// timeLayouts are tried in order. Zone-less forms are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Canonicalize builds an Event from an already-decoded payload. The tracker's
// snake_case "event_name" is accepted in place of "eventName".
func Canonicalize(raw map[string]any) (models.Event, error) {
	if raw == nil {
		return models.Event{}, &MalformedEventError{Reason: "empty payload"}
	}

	name, err := eventName(raw)
	if err != nil {
		return models.Event{}, err
	}

	ts, ok := raw["time"]
	if !ok || ts == nil {
		return models.Event{}, &MalformedEventError{Field: "time", Reason: "missing"}
	}
	s, ok := ts.(string)
	if !ok {
		return models.Event{}, &MalformedEventError{Field: "time", Reason: fmt.Sprintf("expected string, got %T", ts)}
	}
	at, err := parseTime(s)
	if err != nil {
		return models.Event{}, &MalformedEventError{Field: "time", Reason: err.Error()}
	}

	return models.Event{Name: name, OccurredAt: at, Data: raw["data"]}, nil
}

// Parse decodes a JSON webhook body and canonicalizes it. Numbers in data are
// kept as json.Number so large ids survive.
func Parse(body []byte) (models.Event, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return models.Event{}, &MalformedEventError{Reason: "invalid JSON: " + err.Error()}
	}
	return Canonicalize(raw)
}

func eventName(raw map[string]any) (string, error) {
	v, ok := raw["eventName"]
	if !ok {
		v, ok = raw["event_name"]
	}
	if !ok || v == nil {
		return "", &MalformedEventError{Field: "eventName", Reason: "missing"}
	}
	name, ok := v.(string)
	if !ok {
		return "", &MalformedEventError{Field: "eventName", Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &MalformedEventError{Field: "eventName", Reason: "empty"}
	}
	return name, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
