package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/CosmoTheDev/tasknotify/internal/event"
	"github.com/CosmoTheDev/tasknotify/internal/history"
	"github.com/CosmoTheDev/tasknotify/internal/metrics"
	"github.com/CosmoTheDev/tasknotify/internal/templates"
	"github.com/CosmoTheDev/tasknotify/models"
)

// SignatureHeader carries the tracker's HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Vikunja-Signature"

// Handler wires all routes onto a new ServeMux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /events", s.handleEvents)

	mux.HandleFunc("GET /api/history", s.handleListHistory)
	mux.HandleFunc("GET /api/placeholders/{event}", s.handlePlaceholders)
	mux.HandleFunc("POST /api/providers/validate", s.handleValidateProvider)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
		"history": s.store != nil,
		"streams": s.stream.subscribers(),
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}
	if len(body) > maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	if s.secret != "" && !validSignature(s.secret, body, r.Header.Get(SignatureHeader)) {
		slog.Warn("server: rejected webhook with bad signature", "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	ev, err := event.Parse(body)
	if err != nil {
		metrics.ObserveEvent(metrics.ResultMalformed)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The tracker may hang up early; deliveries are bounded by the dispatch timeout instead.
	results := s.pipeline.ProcessEvent(context.WithoutCancel(r.Context()), ev)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"event":   ev.Name,
		"results": results,
	})
}

// handleEvents streams one SSE frame per dispatched event. Clients receive a
// "connected" event immediately, then live updates.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering if behind a proxy

	ch := s.stream.subscribe()
	defer s.stream.unsubscribe(ch)

	connected, _ := sseFrame(streamEvent{Type: "connected", Payload: map[string]any{
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	}})
	// nosemgrep: go.lang.security.audit.xss.no-direct-write-to-responsewriter.no-direct-write-to-responsewriter
	_, _ = w.Write(connected)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-ch:
			// nosemgrep: go.lang.security.audit.xss.no-direct-write-to-responsewriter.no-direct-write-to-responsewriter
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}
	q := r.URL.Query()
	f := history.Filter{
		EventName:    strings.TrimSpace(q.Get("event")),
		ProviderType: strings.TrimSpace(q.Get("provider")),
	}
	if v := q.Get("failed"); v != "" {
		f.OnlyFailed, _ = strconv.ParseBool(v)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = min(n, 1000)
	}

	entries, err := s.store.List(r.Context(), f)
	if err != nil {
		slog.Error("server: listing history", "error", err)
		writeError(w, http.StatusInternalServerError, "listing history failed")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries, "count": len(entries)})
}

func (s *Server) handlePlaceholders(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("event")
	writeJSON(w, http.StatusOK, map[string]any{
		"event":        name,
		"known":        event.Known(name),
		"placeholders": templates.AvailablePlaceholders(name),
	})
}

func (s *Server) handleValidateProvider(w http.ResponseWriter, r *http.Request) {
	var cfg models.ProviderConfig
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid provider config: "+err.Error())
		return
	}
	if strings.TrimSpace(cfg.Type) == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}
	writeJSON(w, http.StatusOK, s.registry.Validate(cfg))
}

// validSignature checks header against the HMAC-SHA256 of body. The hex
// digest may carry a "sha256=" prefix.
func validSignature(secret string, body []byte, header string) bool {
	header = strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	got, err := hex.DecodeString(header)
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
