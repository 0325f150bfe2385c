// Package pipeline wires canonicalization, enrichment and routing together
// and records what happened to every event.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CosmoTheDev/tasknotify/internal/enrich"
	"github.com/CosmoTheDev/tasknotify/internal/event"
	"github.com/CosmoTheDev/tasknotify/internal/metrics"
	"github.com/CosmoTheDev/tasknotify/internal/router"
	"github.com/CosmoTheDev/tasknotify/models"
	"github.com/google/uuid"
)

// Recorder persists the results of one dispatched event.
type Recorder interface {
	Record(ctx context.Context, batchID string, c models.EnrichedContext, results []models.NotificationResult) error
}

// Dispatch summarises one processed event for observers.
type Dispatch struct {
	BatchID string                      `json:"batch"`
	Event   string                      `json:"event"`
	Missing []string                    `json:"missing,omitempty"`
	Results []models.NotificationResult `json:"results"`
}

// Pipeline processes inbound events. It is safe for concurrent use.
type Pipeline struct {
	enricher *enrich.Enricher
	router   atomic.Pointer[router.Router]
	recorder Recorder
	timeout  time.Duration

	mu        sync.RWMutex
	observers []func(Dispatch)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder stores every batch of results in rec.
func WithRecorder(rec Recorder) Option {
	return func(p *Pipeline) { p.recorder = rec }
}

// WithDispatchTimeout bounds enrichment plus delivery for one event.
func WithDispatchTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

// New returns a Pipeline. A nil enricher skips enrichment entirely.
func New(e *enrich.Enricher, r *router.Router, opts ...Option) *Pipeline {
	p := &Pipeline{enricher: e}
	p.router.Store(r)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetRouter swaps in a new routing configuration. Events already in flight
// finish with the router they started with.
func (p *Pipeline) SetRouter(r *router.Router) {
	p.router.Store(r)
}

// Observe registers fn to be called after every dispatched event. fn runs on
// the dispatching goroutine and must not block.
func (p *Pipeline) Observe(fn func(Dispatch)) {
	p.mu.Lock()
	p.observers = append(p.observers, fn)
	p.mu.Unlock()
}

// Router returns the router currently in use.
func (p *Pipeline) Router() *router.Router {
	return p.router.Load()
}

// Process canonicalizes raw and dispatches it. The only error returned is a
// *event.MalformedEventError; delivery problems are reported in the results.
func (p *Pipeline) Process(ctx context.Context, raw map[string]any) ([]models.NotificationResult, error) {
	ev, err := event.Canonicalize(raw)
	if err != nil {
		metrics.ObserveEvent(metrics.ResultMalformed)
		return nil, err
	}
	return p.ProcessEvent(ctx, ev), nil
}

// ProcessEvent enriches and routes an already canonical event.
func (p *Pipeline) ProcessEvent(ctx context.Context, ev models.Event) []models.NotificationResult {
	metrics.ObserveEvent(metrics.ResultAccepted)
	start := time.Now()
	batchID := uuid.NewString()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	c := models.EnrichedContext{Event: ev}
	if p.enricher != nil {
		c = p.enricher.Enrich(ctx, ev)
	}
	metrics.ObserveMissing(c.Missing)

	var results []models.NotificationResult
	if r := p.router.Load(); r != nil {
		results = r.Route(ctx, c)
	} else {
		results = []models.NotificationResult{}
	}

	failed := 0
	for _, res := range results {
		metrics.ObserveDelivery(res.ProviderType, res.Success)
		if !res.Success {
			failed++
		}
	}
	metrics.ObserveDispatch(time.Since(start))

	slog.Info("pipeline: event dispatched",
		"batch", batchID,
		"event", ev.Name,
		"targets", len(results),
		"failed", failed,
		"degraded", c.Degraded(),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if p.recorder != nil && len(results) > 0 {
		// History is written even when the dispatch deadline has passed.
		if err := p.recorder.Record(context.WithoutCancel(ctx), batchID, c, results); err != nil {
			slog.Warn("pipeline: record history failed", "batch", batchID, "error", err)
		}
	}

	p.mu.RLock()
	observers := p.observers
	p.mu.RUnlock()
	if len(observers) > 0 {
		d := Dispatch{BatchID: batchID, Event: ev.Name, Missing: c.Missing, Results: results}
		for _, fn := range observers {
			fn(d)
		}
	}
	return results
}
