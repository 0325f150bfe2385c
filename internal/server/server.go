// Package server is the long-running tasknotify daemon: the tracker webhook
// receiver, a small admin JSON API, Prometheus metrics and history retention.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CosmoTheDev/tasknotify/internal/config"
	"github.com/CosmoTheDev/tasknotify/internal/history"
	"github.com/CosmoTheDev/tasknotify/internal/notify"
	"github.com/CosmoTheDev/tasknotify/internal/pipeline"
)

// maxBodyBytes caps inbound webhook payloads.
const maxBodyBytes = 1 << 20

// Server serves the webhook and admin endpoints.
type Server struct {
	addr      string
	secret    string
	retention config.HistoryConfig

	pipeline *pipeline.Pipeline
	registry *notify.Registry
	store    *history.Store
	stream   *broadcaster

	startedAt time.Time
}

// New creates a Server. store may be nil when history is disabled.
func New(cfg *config.Config, p *pipeline.Pipeline, reg *notify.Registry, store *history.Store) *Server {
	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8095"
	}
	s := &Server{
		addr:      addr,
		secret:    cfg.Server.WebhookSecret,
		retention: cfg.History,
		pipeline:  p,
		registry:  reg,
		store:     store,
		stream:    newBroadcaster(),
		startedAt: time.Now(),
	}
	p.Observe(func(d pipeline.Dispatch) {
		s.stream.send(streamEvent{Type: "dispatch", Payload: d})
	})
	return s
}

// Start runs the server until ctx is cancelled. It:
//  1. Starts the history retention job
//  2. Binds the HTTP server (blocks until shutdown)
func (s *Server) Start(ctx context.Context) error {
	pruner, err := startRetention(ctx, s.store, s.retention)
	if err != nil {
		return fmt.Errorf("starting retention job: %w", err)
	}

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if pruner != nil {
			pruner.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server: listening", "addr", s.addr, "signed_webhooks", s.secret != "")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
