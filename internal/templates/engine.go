// Package templates renders notification text from {{path}} placeholders
// resolved against an EnrichedContext.
//
// A placeholder the event type defines but whose value is absent renders as
// an empty string. A placeholder the event type does not define is left
// exactly as written so typos show up in previews.
package templates

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/CosmoTheDev/tasknotify/internal/event"
	"github.com/CosmoTheDev/tasknotify/models"
)

var placeholderRE = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// resolver returns the value for a placeholder and whether it is present.
type resolver func(c models.EnrichedContext) (string, bool)

// Engine renders templates. The zero value is not usable; use NewEngine.
type Engine struct {
	resolvers map[string]resolver
}

// NewEngine returns an Engine with the built-in placeholder set.
func NewEngine() *Engine {
	return &Engine{resolvers: builtinResolvers()}
}

// Render renders tmpl for providerType, using the provider's override body
// when the template has one.
func (e *Engine) Render(tmpl models.NotificationTemplate, providerType string, c models.EnrichedContext) string {
	return e.RenderBody(tmpl.BodyFor(providerType), c)
}

// RenderBody resolves every placeholder in body against c.
func (e *Engine) RenderBody(body string, c models.EnrichedContext) string {
	allowed := placeholderSet(c.Event.Name)
	return placeholderRE.ReplaceAllStringFunc(body, func(token string) string {
		path := placeholderRE.FindStringSubmatch(token)[1]
		if !allowed[path] {
			return token
		}
		fn, ok := e.resolvers[path]
		if !ok {
			return token
		}
		v, ok := fn(c)
		if !ok {
			return ""
		}
		return v
	})
}

// Placeholders returns the distinct placeholder paths used in body, in order
// of first appearance.
func Placeholders(body string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range placeholderRE.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// Lint returns the placeholders in tmpl (body and overrides) that are not
// available for its event type.
func Lint(tmpl models.NotificationTemplate) []string {
	allowed := placeholderSet(tmpl.EventType)
	bodies := []string{tmpl.Body}
	keys := make([]string, 0, len(tmpl.ProviderOverrides))
	for k := range tmpl.ProviderOverrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		bodies = append(bodies, tmpl.ProviderOverrides[k])
	}

	var unknown []string
	seen := map[string]bool{}
	for _, b := range bodies {
		for _, p := range Placeholders(b) {
			if !allowed[p] && !seen[p] {
				seen[p] = true
				unknown = append(unknown, p)
			}
		}
	}
	return unknown
}

var (
	commonPlaceholders  = []string{"event.name", "event.time"}
	taskPlaceholders    = []string{"task.id", "task.identifier", "task.title", "task.description", "task.done", "task.due_date", "task.priority", "task.assignees", "task.labels"}
	projectPlaceholders = []string{"project.id", "project.title", "project.description"}
	doerPlaceholders    = []string{"doer.name", "doer.username"}
	userPlaceholders    = []string{"user.id", "user.name", "user.username", "user.email"}
)

// AvailablePlaceholders lists the placeholders defined for eventType, sorted.
// It does no I/O and returns a fresh slice with the same contents on every call.
func AvailablePlaceholders(eventType string) []string {
	out := append([]string(nil), commonPlaceholders...)
	switch event.FamilyOf(eventType) {
	case event.FamilyTask:
		out = append(out, taskPlaceholders...)
		out = append(out, projectPlaceholders...)
		out = append(out, doerPlaceholders...)
		if event.IsComment(eventType) {
			out = append(out, "comment.text")
		}
	case event.FamilyProject:
		out = append(out, projectPlaceholders...)
		out = append(out, doerPlaceholders...)
	case event.FamilyMembership:
		out = append(out, doerPlaceholders...)
	}
	if event.ReferencesUser(eventType) {
		out = append(out, userPlaceholders...)
	}
	sort.Strings(out)
	return out
}

func placeholderSet(eventType string) map[string]bool {
	list := AvailablePlaceholders(eventType)
	set := make(map[string]bool, len(list))
	for _, p := range list {
		set[p] = true
	}
	return set
}

func builtinResolvers() map[string]resolver {
	task := func(f func(t *models.TaskSummary) (string, bool)) resolver {
		return func(c models.EnrichedContext) (string, bool) {
			if c.Task == nil {
				return "", false
			}
			return f(c.Task)
		}
	}
	project := func(f func(p *models.ProjectSummary) string) resolver {
		return func(c models.EnrichedContext) (string, bool) {
			if c.Project == nil {
				return "", false
			}
			return f(c.Project), true
		}
	}
	user := func(f func(u *models.UserSummary) string) resolver {
		return func(c models.EnrichedContext) (string, bool) {
			if c.User == nil {
				return "", false
			}
			return f(c.User), true
		}
	}
	list := func(f func(c models.EnrichedContext) []string) resolver {
		return func(c models.EnrichedContext) (string, bool) {
			v := f(c)
			if len(v) == 0 {
				return "", false
			}
			return strings.Join(v, ", "), true
		}
	}
	raw := func(path ...string) resolver {
		return func(c models.EnrichedContext) (string, bool) {
			return event.StringAt(c.Event.Data, path...)
		}
	}

	return map[string]resolver{
		"event.name": func(c models.EnrichedContext) (string, bool) { return c.Event.Name, c.Event.Name != "" },
		"event.time": func(c models.EnrichedContext) (string, bool) {
			if c.Event.OccurredAt.IsZero() {
				return "", false
			}
			return c.Event.OccurredAt.Format(time.RFC3339), true
		},

		"task.id":          task(func(t *models.TaskSummary) (string, bool) { return strconv.FormatInt(t.ID, 10), true }),
		"task.identifier":  task(func(t *models.TaskSummary) (string, bool) { return t.Identifier, t.Identifier != "" }),
		"task.title":       task(func(t *models.TaskSummary) (string, bool) { return t.Title, true }),
		"task.description": task(func(t *models.TaskSummary) (string, bool) { return t.Description, true }),
		"task.done":        task(func(t *models.TaskSummary) (string, bool) { return strconv.FormatBool(t.Done), true }),
		"task.priority":    task(func(t *models.TaskSummary) (string, bool) { return strconv.Itoa(t.Priority), true }),
		"task.due_date": task(func(t *models.TaskSummary) (string, bool) {
			if t.DueDate == nil || t.DueDate.IsZero() {
				return "", false
			}
			return t.DueDate.Format("2006-01-02"), true
		}),
		"task.assignees": list(func(c models.EnrichedContext) []string { return c.Assignees }),
		"task.labels":    list(func(c models.EnrichedContext) []string { return c.Labels }),

		"project.id":          project(func(p *models.ProjectSummary) string { return strconv.FormatInt(p.ID, 10) }),
		"project.title":       project(func(p *models.ProjectSummary) string { return p.Title }),
		"project.description": project(func(p *models.ProjectSummary) string { return p.Description }),

		"user.id":       user(func(u *models.UserSummary) string { return strconv.FormatInt(u.ID, 10) }),
		"user.name":     user(func(u *models.UserSummary) string { return u.DisplayName() }),
		"user.username": user(func(u *models.UserSummary) string { return u.Username }),
		"user.email":    user(func(u *models.UserSummary) string { return u.Email }),

		"doer.name": func(c models.EnrichedContext) (string, bool) {
			if n, ok := event.StringAt(c.Event.Data, "doer", "name"); ok && n != "" {
				return n, true
			}
			return event.StringAt(c.Event.Data, "doer", "username")
		},
		"doer.username": raw("doer", "username"),
		"comment.text":  raw("comment", "comment"),
	}
}
