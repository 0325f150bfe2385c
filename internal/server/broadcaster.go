package server

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// streamEvent is serialised as JSON and pushed over the GET /events SSE stream.
type streamEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// broadcaster fans streamEvent values out to all active GET /events subscribers.
// Slow clients are skipped (non-blocking channel send with per-client buffer).
type broadcaster struct {
	mu   sync.RWMutex
	subs map[chan []byte]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan []byte]struct{})}
}

// subscribe returns a channel that receives ready-to-write SSE data frames.
// The caller must call unsubscribe when the HTTP connection closes.
func (b *broadcaster) subscribe() chan []byte {
	ch := make(chan []byte, 32)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broadcaster) unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

func (b *broadcaster) subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// send fans one SSE frame ("data: <json>\n\n") out to every subscriber.
func (b *broadcaster) send(evt streamEvent) {
	frame, err := sseFrame(evt)
	if err != nil {
		slog.Warn("server: failed to marshal stream event", "type", evt.Type, "error", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- frame:
		default:
			// slow subscriber, frame dropped
		}
	}
}

func sseFrame(evt streamEvent) ([]byte, error) {
	raw, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	frame := append([]byte("data: "), raw...)
	return append(frame, '\n', '\n'), nil
}
