package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/CosmoTheDev/tasknotify/internal/enrich"
	"github.com/CosmoTheDev/tasknotify/internal/event"
	"github.com/CosmoTheDev/tasknotify/internal/notify"
	"github.com/CosmoTheDev/tasknotify/internal/router"
	"github.com/CosmoTheDev/tasknotify/models"
)

type captureProvider struct {
	mu    sync.Mutex
	texts []string
	block bool
}

func (c *captureProvider) Type() string { return "capture" }

func (c *captureProvider) Validate(models.ProviderConfig) models.ValidationResult {
	return models.ValidationResult{Valid: true}
}

func (c *captureProvider) Send(ctx context.Context, _ models.ProviderConfig, msg models.NotificationMessage) models.NotificationResult {
	c.mu.Lock()
	c.texts = append(c.texts, msg.RenderedText)
	c.mu.Unlock()
	if c.block {
		<-ctx.Done()
		return models.NotificationResult{ProviderType: "capture", ErrorDetail: ctx.Err().Error()}
	}
	return models.NotificationResult{ProviderType: "capture", Success: true, SentAt: time.Now()}
}

// stubFetcher knows task 42 unless down is set.
type stubFetcher struct{ down bool }

func (s stubFetcher) GetProject(context.Context, int64) (models.ProjectSummary, bool) {
	return models.ProjectSummary{}, false
}

func (s stubFetcher) GetTask(_ context.Context, id int64) (models.TaskSummary, bool) {
	if s.down || id != 42 {
		return models.TaskSummary{}, false
	}
	return models.TaskSummary{ID: 42, Title: "Write docs"}, true
}

func (s stubFetcher) GetUser(context.Context, int64) (models.UserSummary, bool) {
	return models.UserSummary{}, false
}

func (s stubFetcher) GetTaskAssignees(context.Context, int64) ([]string, bool) {
	if s.down {
		return nil, false
	}
	return []string{}, true
}

func (s stubFetcher) GetTaskLabels(context.Context, int64) ([]string, bool) {
	if s.down {
		return nil, false
	}
	return []string{"urgent"}, true
}

type memRecorder struct {
	batches []string
	ctxs    []models.EnrichedContext
	results [][]models.NotificationResult
	err     error
}

func (m *memRecorder) Record(_ context.Context, batchID string, c models.EnrichedContext, results []models.NotificationResult) error {
	m.batches = append(m.batches, batchID)
	m.ctxs = append(m.ctxs, c)
	m.results = append(m.results, results)
	return m.err
}

func newRouter(p notify.Provider) *router.Router {
	return router.New(router.Config{
		Providers:        []models.ProviderConfig{{Type: p.Type(), Enabled: true}},
		DefaultProviders: []string{p.Type()},
		Templates: map[string]models.NotificationTemplate{
			"task.created": {Body: "{{task.title}} created [{{task.labels}}]"},
		},
	}, notify.NewRegistry(p), nil)
}

func rawEvent() map[string]any {
	return map[string]any{
		"eventName": "task.created",
		"time":      "2024-05-01T10:00:00Z",
		"data":      map[string]any{"task": map[string]any{"id": float64(42)}},
	}
}

func TestProcessEnrichesAndDelivers(t *testing.T) {
	prov := &captureProvider{}
	rec := &memRecorder{}
	p := New(enrich.New(stubFetcher{}), newRouter(prov), WithRecorder(rec))

	results, err := p.Process(context.Background(), rawEvent())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("results = %+v", results)
	}
	if prov.texts[0] != "Write docs created [urgent]" {
		t.Fatalf("rendered %q", prov.texts[0])
	}
	if len(rec.batches) != 1 || rec.batches[0] == "" || rec.ctxs[0].Degraded() {
		t.Fatalf("recorded %+v", rec)
	}
}

func TestProcessDeliversDegradedContext(t *testing.T) {
	prov := &captureProvider{}
	rec := &memRecorder{err: errors.New("disk full")}
	p := New(enrich.New(stubFetcher{down: true}), newRouter(prov), WithRecorder(rec))

	results, err := p.Process(context.Background(), rawEvent())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("results = %+v", results)
	}
	if prov.texts[0] != " created []" {
		t.Fatalf("rendered %q", prov.texts[0])
	}
	if !rec.ctxs[0].Degraded() {
		t.Fatalf("missing lookups not recorded")
	}
}

func TestProcessMalformedEvent(t *testing.T) {
	prov := &captureProvider{}
	p := New(nil, newRouter(prov))

	raw := rawEvent()
	delete(raw, "time")
	_, err := p.Process(context.Background(), raw)
	var me *event.MalformedEventError
	if !errors.As(err, &me) || me.Field != "time" {
		t.Fatalf("err = %v", err)
	}
	if len(prov.texts) != 0 {
		t.Fatalf("malformed event was delivered")
	}
}

func TestSetRouterSwapsConfig(t *testing.T) {
	first := &captureProvider{}
	p := New(nil, router.New(router.Config{}, notify.NewRegistry(first), nil))

	results, _ := p.Process(context.Background(), rawEvent())
	if len(results) != 0 {
		t.Fatalf("empty config produced %d results", len(results))
	}

	p.SetRouter(newRouter(first))
	results, _ = p.Process(context.Background(), rawEvent())
	if len(results) != 1 {
		t.Fatalf("swapped router produced %d results", len(results))
	}
}

func TestDispatchTimeoutCancelsDelivery(t *testing.T) {
	prov := &captureProvider{block: true}
	rec := &memRecorder{}
	p := New(nil, newRouter(prov), WithRecorder(rec), WithDispatchTimeout(30*time.Millisecond))

	results, err := p.Process(context.Background(), rawEvent())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(results) != 1 || results[0].Success {
		t.Fatalf("results = %+v", results)
	}
	if len(rec.results) != 1 {
		t.Fatalf("timed out batch not recorded")
	}
}

func TestObserveReceivesDispatch(t *testing.T) {
	p := New(enrich.New(stubFetcher{down: true}), newRouter(&captureProvider{}))
	var got []Dispatch
	p.Observe(func(d Dispatch) { got = append(got, d) })

	if _, err := p.Process(context.Background(), rawEvent()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(got) != 1 || got[0].Event != "task.created" || got[0].BatchID == "" || len(got[0].Results) != 1 {
		t.Fatalf("observed %+v", got)
	}
	if len(got[0].Missing) == 0 {
		t.Fatalf("missing lookups not reported")
	}
}
