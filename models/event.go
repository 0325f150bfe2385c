package models

import "time"

// Event is the canonical form of one change notification from the tracker.
// It is created by the event package and never modified afterwards.
type Event struct {
	Name       string    `json:"event_name"`
	OccurredAt time.Time `json:"time"`
	// Data is the event-specific part of the inbound payload, passed through
	// untouched.
	Data any `json:"data,omitempty"`
}
