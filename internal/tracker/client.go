// Package tracker is the HTTP client for the task tracker's JSON API. It
// implements enrich.Fetcher: every failure is logged and reported as absence.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CosmoTheDev/tasknotify/models"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Config holds the tracker connection settings.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RatePerSec int
	// HTTPClient is used as the transport base; tests inject httptest clients.
	HTTPClient *http.Client
}

// Client fetches projects, tasks and users.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
}

// New returns a Client for cfg. The token, when set, is sent as a bearer
// token on every request.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("tracker: invalid base url %q", cfg.BaseURL)
	}

	baseClient := cfg.HTTPClient
	if baseClient == nil {
		baseClient = &http.Client{}
	}
	var hc *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		hc = oauth2.NewClient(context.WithValue(context.Background(), oauth2.HTTPClient, baseClient), ts)
	} else {
		cp := *baseClient
		hc = &cp
	}
	hc.Timeout = cfg.Timeout
	if hc.Timeout <= 0 {
		hc.Timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return &Client{base: base, http: hc, limiter: limiter}, nil
}

// apiTask mirrors the tracker's task representation.
type apiTask struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Done        bool   `json:"done"`
	DueDate     string `json:"due_date"`
	Priority    int    `json:"priority"`
}

type apiUser struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type apiLabel struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// GetProject fetches GET /api/v1/projects/{id}.
func (c *Client) GetProject(ctx context.Context, id int64) (models.ProjectSummary, bool) {
	var p struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/v1/projects/%d", id), &p); err != nil {
		slog.Warn("tracker: project lookup failed", "project_id", id, "error", err)
		return models.ProjectSummary{}, false
	}
	return models.ProjectSummary{ID: p.ID, Title: p.Title, Description: p.Description}, true
}

// GetTask fetches GET /api/v1/tasks/{id}.
func (c *Client) GetTask(ctx context.Context, id int64) (models.TaskSummary, bool) {
	var t apiTask
	if err := c.get(ctx, fmt.Sprintf("/api/v1/tasks/%d", id), &t); err != nil {
		slog.Warn("tracker: task lookup failed", "task_id", id, "error", err)
		return models.TaskSummary{}, false
	}
	out := models.TaskSummary{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Identifier:  t.Identifier,
		Title:       t.Title,
		Description: t.Description,
		Done:        t.Done,
		Priority:    t.Priority,
	}
	out.DueDate = parseDueDate(t.DueDate)
	return out, true
}

// GetUser fetches GET /api/v1/users/{id}.
func (c *Client) GetUser(ctx context.Context, id int64) (models.UserSummary, bool) {
	var u apiUser
	if err := c.get(ctx, fmt.Sprintf("/api/v1/users/%d", id), &u); err != nil {
		slog.Warn("tracker: user lookup failed", "user_id", id, "error", err)
		return models.UserSummary{}, false
	}
	return models.UserSummary{ID: u.ID, Name: u.Name, Username: u.Username, Email: u.Email}, true
}

// GetTaskAssignees returns the display names of the task's assignees.
func (c *Client) GetTaskAssignees(ctx context.Context, taskID int64) ([]string, bool) {
	var users []apiUser
	if err := c.get(ctx, fmt.Sprintf("/api/v1/tasks/%d/assignees", taskID), &users); err != nil {
		slog.Warn("tracker: assignee lookup failed", "task_id", taskID, "error", err)
		return nil, false
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		s := models.UserSummary{Name: u.Name, Username: u.Username}
		if n := s.DisplayName(); n != "" {
			names = append(names, n)
		}
	}
	return names, true
}

// GetTaskLabels returns the titles of the task's labels.
func (c *Client) GetTaskLabels(ctx context.Context, taskID int64) ([]string, bool) {
	var labels []apiLabel
	if err := c.get(ctx, fmt.Sprintf("/api/v1/tasks/%d/labels", taskID), &labels); err != nil {
		slog.Warn("tracker: label lookup failed", "task_id", taskID, "error", err)
		return nil, false
	}
	titles := make([]string, 0, len(labels))
	for _, l := range labels {
		if l.Title != "" {
			titles = append(titles, l.Title)
		}
	}
	return titles, true
}

// Ping checks that the tracker answers GET /api/v1/info.
func (c *Client) Ping(ctx context.Context) error {
	var info map[string]any
	return c.get(ctx, "/api/v1/info", &info)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// parseDueDate treats the tracker's zero timestamp as "no due date".
func parseDueDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil || t.Year() <= 1 {
		return nil
	}
	t = t.UTC()
	return &t
}
