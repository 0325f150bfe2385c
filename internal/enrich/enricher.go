// Package enrich augments events with related tracker entities. Enrichment is
// best-effort: a failed lookup leaves its field empty and never fails the event.
package enrich

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/CosmoTheDev/tasknotify/internal/event"
	"github.com/CosmoTheDev/tasknotify/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Fetcher is the tracker lookup collaborator. Each method returns the value
// and true, or false when the entity could not be obtained for any reason.
// Implementations log their own failures and never return errors.
type Fetcher interface {
	GetProject(ctx context.Context, id int64) (models.ProjectSummary, bool)
	GetTask(ctx context.Context, id int64) (models.TaskSummary, bool)
	GetUser(ctx context.Context, id int64) (models.UserSummary, bool)
	GetTaskAssignees(ctx context.Context, taskID int64) ([]string, bool)
	GetTaskLabels(ctx context.Context, taskID int64) ([]string, bool)
}

// Lookup names used in EnrichedContext.Missing.
const (
	LookupProject   = "project"
	LookupTask      = "task"
	LookupUser      = "user"
	LookupAssignees = "assignees"
	LookupLabels    = "labels"
)

// Enricher builds EnrichedContexts.
type Enricher struct {
	fetch  Fetcher
	shared *semaphore.Weighted
	limit  int
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithSharedLimiter makes every lookup hold one slot of sem while it runs.
func WithSharedLimiter(sem *semaphore.Weighted) Option {
	return func(e *Enricher) { e.shared = sem }
}

// WithConcurrency caps concurrent lookups for a single event (default 4).
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.limit = n
		}
	}
}

// New returns an Enricher that fetches through f.
func New(f Fetcher, opts ...Option) *Enricher {
	e := &Enricher{fetch: f, limit: 4}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// builder collects lookup results from concurrent goroutines.
type builder struct {
	mu  sync.Mutex
	out models.EnrichedContext
}

func (b *builder) set(fn func(c *models.EnrichedContext)) {
	b.mu.Lock()
	fn(&b.out)
	b.mu.Unlock()
}

func (b *builder) missing(lookup string) {
	b.set(func(c *models.EnrichedContext) { c.Missing = append(c.Missing, lookup) })
}

// Enrich fetches the entities ev refers to. It waits for every lookup before
// returning and always returns a context, however many lookups failed.
func (e *Enricher) Enrich(ctx context.Context, ev models.Event) models.EnrichedContext {
	b := &builder{out: models.EnrichedContext{Event: ev}}
	if e.fetch == nil {
		return b.out
	}

	g := new(errgroup.Group)
	g.SetLimit(e.limit)

	family := event.FamilyOf(ev.Name)
	projectID, hasProject := event.ProjectID(ev)

	if family == event.FamilyTask {
		if taskID, ok := event.TaskID(ev); ok {
			// Without a project id in the payload, the project comes from the task.
			followProject := !hasProject
			var task models.TaskSummary
			e.run(ctx, g, b, LookupTask, func(ctx context.Context) bool {
				t, ok := e.fetch.GetTask(ctx, taskID)
				if ok {
					task = t
					b.set(func(c *models.EnrichedContext) { c.Task = &t })
				}
				return ok
			}, func(ctx context.Context) {
				if followProject && task.ProjectID > 0 {
					e.run(ctx, nil, b, LookupProject, func(ctx context.Context) bool {
						return e.fetchProject(ctx, b, task.ProjectID)
					})
				}
			})
			e.run(ctx, g, b, LookupAssignees, func(ctx context.Context) bool {
				names, ok := e.fetch.GetTaskAssignees(ctx, taskID)
				if ok {
					b.set(func(c *models.EnrichedContext) { c.Assignees = names })
				}
				return ok
			})
			e.run(ctx, g, b, LookupLabels, func(ctx context.Context) bool {
				labels, ok := e.fetch.GetTaskLabels(ctx, taskID)
				if ok {
					b.set(func(c *models.EnrichedContext) { c.Labels = labels })
				}
				return ok
			})
		}
	}

	if hasProject && (family == event.FamilyTask || family == event.FamilyProject) {
		e.run(ctx, g, b, LookupProject, func(ctx context.Context) bool {
			return e.fetchProject(ctx, b, projectID)
		})
	}

	if event.ReferencesUser(ev.Name) {
		if userID, ok := event.UserID(ev); ok {
			e.run(ctx, g, b, LookupUser, func(ctx context.Context) bool {
				u, ok := e.fetch.GetUser(ctx, userID)
				if ok {
					b.set(func(c *models.EnrichedContext) { c.User = &u })
				}
				return ok
			})
		}
	}

	_ = g.Wait()
	if len(b.out.Missing) > 0 {
		slog.Info("enrich: partial context", "event", ev.Name, "missing", b.out.Missing)
	}
	sort.Strings(b.out.Missing)
	return b.out
}

func (e *Enricher) fetchProject(ctx context.Context, b *builder, id int64) bool {
	p, ok := e.fetch.GetProject(ctx, id)
	if ok {
		b.set(func(c *models.EnrichedContext) { c.Project = &p })
	}
	return ok
}

// run schedules one lookup on g, or runs it inline when g is nil. A lookup
// that cannot start because ctx ended, or that reports absence, is recorded as
// missing. then runs after the shared slot is released.
func (e *Enricher) run(ctx context.Context, g *errgroup.Group, b *builder, name string, fn func(context.Context) bool, then ...func(context.Context)) {
	task := func() error {
		if ctx.Err() != nil || !e.acquire(ctx) {
			b.missing(name)
			return nil
		}
		ok := fn(ctx)
		e.release()
		if !ok {
			b.missing(name)
			return nil
		}
		for _, next := range then {
			next(ctx)
		}
		return nil
	}
	if g == nil {
		_ = task()
		return
	}
	g.Go(task)
}

func (e *Enricher) acquire(ctx context.Context) bool {
	if e.shared == nil {
		return true
	}
	return e.shared.Acquire(ctx, 1) == nil
}

func (e *Enricher) release() {
	if e.shared != nil {
		e.shared.Release(1)
	}
}
