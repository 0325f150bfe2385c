// Package history keeps an audit log of delivery results.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/CosmoTheDev/tasknotify/internal/database"
	"github.com/CosmoTheDev/tasknotify/models"
)

const table = "delivery_history"

// timeLayout is fixed-width so stored timestamps sort as text on every backend.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Entry is one stored NotificationResult.
type Entry struct {
	ID           int64  `db:"id"            json:"id"`
	BatchID      string `db:"batch_id"      json:"batch_id"`
	EventName    string `db:"event_name"    json:"event"`
	OccurredAt   string `db:"occurred_at"   json:"occurred_at"`
	ProviderType string `db:"provider_type" json:"provider"`
	Success      int    `db:"success"       json:"-"`
	ErrorDetail  string `db:"error_detail"  json:"error,omitempty"`
	Degraded     int    `db:"degraded"      json:"-"`
	Missing      string `db:"missing"       json:"missing,omitempty"`
	SentAt       string `db:"sent_at"       json:"sent_at"`
	CreatedAt    string `db:"created_at"    json:"created_at"`
}

// Succeeded reports whether the delivery succeeded.
func (e Entry) Succeeded() bool { return e.Success != 0 }

// IsDegraded reports whether the message was rendered from a partial context.
func (e Entry) IsDegraded() bool { return e.Degraded != 0 }

// MarshalJSON renders the integer flags as booleans.
func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	return json.Marshal(struct {
		plain
		Success  bool `json:"success"`
		Degraded bool `json:"degraded"`
	}{plain(e), e.Succeeded(), e.IsDegraded()})
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	EventName    string
	ProviderType string
	OnlyFailed   bool
	// Limit caps the number of entries (default 100).
	Limit int
}

// Store reads and writes delivery history.
type Store struct {
	db  database.DB
	now func() time.Time
}

// NewStore returns a Store backed by db. db must already be migrated.
func NewStore(db database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Record stores one row per result, all sharing batchID.
func (s *Store) Record(ctx context.Context, batchID string, c models.EnrichedContext, results []models.NotificationResult) error {
	created := s.now().UTC().Format(timeLayout)
	for _, res := range results {
		e := Entry{
			BatchID:      batchID,
			EventName:    c.Event.Name,
			OccurredAt:   formatTime(c.Event.OccurredAt),
			ProviderType: res.ProviderType,
			Success:      boolInt(res.Success),
			ErrorDetail:  res.ErrorDetail,
			Degraded:     boolInt(c.Degraded()),
			Missing:      strings.Join(c.Missing, ","),
			SentAt:       formatTime(res.SentAt),
			CreatedAt:    created,
		}
		if _, err := s.db.Insert(ctx, table, &e); err != nil {
			return fmt.Errorf("history: record %s/%s: %w", batchID, res.ProviderType, err)
		}
	}
	return nil
}

// List returns the newest entries matching f.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.EventName != "" {
		where = append(where, "event_name = ?")
		args = append(args, f.EventName)
	}
	if f.ProviderType != "" {
		where = append(where, "provider_type = ?")
		args = append(args, f.ProviderType)
	}
	if f.OnlyFailed {
		where = append(where, "success = 0")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT * FROM " + table
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d", limit)

	var out []Entry
	if err := s.db.Select(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return out, nil
}

// Prune deletes entries created before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.db.Exec(ctx, "DELETE FROM "+table+" WHERE created_at < ?", before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return n, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
