// Package router selects the delivery targets for an event and fans the
// rendered message out to them.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/CosmoTheDev/tasknotify/internal/notify"
	"github.com/CosmoTheDev/tasknotify/internal/templates"
	"github.com/CosmoTheDev/tasknotify/models"
	"golang.org/x/sync/semaphore"
)

// Config is the routing configuration. The Router keeps its own copy.
type Config struct {
	Providers        []models.ProviderConfig
	DefaultProviders []string
	// EventProviders replaces DefaultProviders for the listed event types.
	EventProviders map[string][]string
	Templates      map[string]models.NotificationTemplate
}

func (c Config) clone() Config {
	out := Config{
		Providers:        make([]models.ProviderConfig, len(c.Providers)),
		DefaultProviders: append([]string(nil), c.DefaultProviders...),
		EventProviders:   make(map[string][]string, len(c.EventProviders)),
		Templates:        make(map[string]models.NotificationTemplate, len(c.Templates)),
	}
	for i, p := range c.Providers {
		settings := make(map[string]string, len(p.Settings))
		for k, v := range p.Settings {
			settings[k] = v
		}
		p.Settings = settings
		out.Providers[i] = p
	}
	for ev, names := range c.EventProviders {
		out.EventProviders[ev] = append([]string(nil), names...)
	}
	for ev, t := range c.Templates {
		overrides := make(map[string]string, len(t.ProviderOverrides))
		for k, v := range t.ProviderOverrides {
			overrides[k] = v
		}
		t.ProviderOverrides = overrides
		out.Templates[ev] = t
	}
	return out
}

// Router dispatches enriched events to providers.
type Router struct {
	cfg       Config
	providers map[string]models.ProviderConfig
	reg       *notify.Registry
	engine    *templates.Engine
	limiter   *semaphore.Weighted
}

// Option configures a Router.
type Option func(*Router)

// WithLimiter bounds in-flight sends with sem, which may be shared with other
// routers and the enricher.
func WithLimiter(sem *semaphore.Weighted) Option {
	return func(r *Router) { r.limiter = sem }
}

// New builds a Router. The first config entry for a provider type wins.
func New(cfg Config, reg *notify.Registry, engine *templates.Engine, opts ...Option) *Router {
	if engine == nil {
		engine = templates.NewEngine()
	}
	r := &Router{
		cfg:       cfg.clone(),
		providers: make(map[string]models.ProviderConfig, len(cfg.Providers)),
		reg:       reg,
		engine:    engine,
	}
	for _, p := range r.cfg.Providers {
		if _, dup := r.providers[p.Type]; dup {
			slog.Warn("router: duplicate provider config ignored", "provider", p.Type)
			continue
		}
		r.providers[p.Type] = p
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Targets returns the (provider, template) pairs for an event type in
// selection order.
func (r *Router) Targets(eventName string) []models.RoutingTarget {
	tmpl, ok := r.cfg.Templates[eventName]
	if !ok {
		return nil
	}

	names := r.cfg.EventProviders[eventName]
	if len(names) == 0 {
		names = r.cfg.DefaultProviders
	}

	var targets []models.RoutingTarget
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		p, ok := r.providers[name]
		if !ok {
			slog.Debug("router: no config for provider", "provider", name, "event", eventName)
			continue
		}
		if !p.Enabled {
			continue
		}
		targets = append(targets, models.RoutingTarget{Provider: p, Template: tmpl})
	}
	return targets
}

// Route delivers c to every selected target concurrently and returns one
// result per target, in selection order. It never fails: problems with a
// target become a failed result for that target only.
func (r *Router) Route(ctx context.Context, c models.EnrichedContext) []models.NotificationResult {
	targets := r.Targets(c.Event.Name)
	results := make([]models.NotificationResult, len(targets))
	if len(targets) == 0 {
		slog.Debug("router: no targets", "event", c.Event.Name)
		return results
	}

	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.dispatch(ctx, t, c)
		}()
	}
	wg.Wait()
	return results
}

func (r *Router) dispatch(ctx context.Context, t models.RoutingTarget, c models.EnrichedContext) models.NotificationResult {
	ptype := t.Provider.Type
	if err := ctx.Err(); err != nil {
		return cancelled(ptype, err)
	}
	release := func() {}
	if r.limiter != nil {
		if err := r.limiter.Acquire(ctx, 1); err != nil {
			return cancelled(ptype, err)
		}
		release = func() { r.limiter.Release(1) }
	}

	if r.reg == nil {
		release()
		return failed(ptype, "no provider registry configured")
	}
	if v := r.reg.Validate(t.Provider); !v.Valid {
		release()
		return failed(ptype, "invalid configuration: "+strings.Join(v.Errors, "; "))
	}
	p, ok := r.reg.Get(ptype)
	if !ok {
		release()
		return failed(ptype, fmt.Sprintf("unknown provider type %q", ptype))
	}

	// The slot is held until Send returns, even after dispatch gives up on it.
	done := make(chan models.NotificationResult, 1)
	go func() {
		defer release()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("router: provider panicked", "provider", ptype, "event", c.Event.Name, "panic", rec)
				done <- failed(ptype, fmt.Sprintf("provider panic: %v", rec))
			}
		}()
		msg := models.NotificationMessage{
			ProviderType: ptype,
			RenderedText: r.engine.Render(t.Template, ptype, c),
			EventName:    c.Event.Name,
		}
		done <- p.Send(ctx, t.Provider, msg)
	}()

	select {
	case res := <-done:
		return normalize(ptype, res)
	case <-ctx.Done():
		// A result that raced the cancellation still counts.
		select {
		case res := <-done:
			return normalize(ptype, res)
		default:
		}
		return cancelled(ptype, ctx.Err())
	}
}

func normalize(ptype string, res models.NotificationResult) models.NotificationResult {
	if res.ProviderType == "" {
		res.ProviderType = ptype
	}
	if res.SentAt.IsZero() {
		res.SentAt = time.Now().UTC()
	}
	if !res.Success && res.ErrorDetail == "" {
		res.ErrorDetail = "send failed"
	}
	return res
}

func failed(ptype, detail string) models.NotificationResult {
	slog.Warn("router: dispatch failed", "provider", ptype, "detail", detail)
	return models.NotificationResult{ProviderType: ptype, ErrorDetail: detail, SentAt: time.Now().UTC()}
}

func cancelled(ptype string, err error) models.NotificationResult {
	return failed(ptype, "dispatch cancelled: "+err.Error())
}
