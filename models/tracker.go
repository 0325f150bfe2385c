package models

import "time"

// ProjectSummary is the subset of a tracker project used in notifications.
type ProjectSummary struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TaskSummary is the subset of a tracker task used in notifications.
type TaskSummary struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Identifier  string     `json:"identifier"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Done        bool       `json:"done"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    int        `json:"priority"`
}

// UserSummary is the subset of a tracker user used in notifications.
type UserSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// DisplayName returns the user's name, falling back to the username.
func (u UserSummary) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// EnrichedContext is an Event plus whatever related entities could be fetched
// for it. Nil pointers and empty slices mean the lookup failed or did not apply.
type EnrichedContext struct {
	Event     Event
	Project   *ProjectSummary
	Task      *TaskSummary
	User      *UserSummary
	Assignees []string
	Labels    []string
	// Missing lists the lookups that were attempted but came back absent.
	Missing []string
}

// Degraded reports whether any attempted lookup came back absent.
func (c EnrichedContext) Degraded() bool { return len(c.Missing) > 0 }
