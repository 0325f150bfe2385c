package event

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestCanonicalizeValidPayload(t *testing.T) {
	raw := map[string]any{
		"eventName": "task.created",
		"time":      "2026-03-01T10:15:00+02:00",
		"data":      map[string]any{"task": map[string]any{"id": float64(42)}},
	}
	ev, err := Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if ev.Name != "task.created" {
		t.Fatalf("name = %q", ev.Name)
	}
	want := time.Date(2026, 3, 1, 8, 15, 0, 0, time.UTC)
	if !ev.OccurredAt.Equal(want) || ev.OccurredAt.Location() != time.UTC {
		t.Fatalf("time = %v, want %v UTC", ev.OccurredAt, want)
	}
	if !reflect.DeepEqual(ev.Data, raw["data"]) {
		t.Fatalf("data not passed through: %#v", ev.Data)
	}
}

func TestCanonicalizeIsDeterministic(t *testing.T) {
	raw := map[string]any{
		"event_name": "project.updated",
		"time":       "2026-03-01T10:15:00",
		"data":       map[string]any{"project": map[string]any{"id": "7"}},
	}
	a, err := Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	b, err := Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same input gave different events: %#v vs %#v", a, b)
	}
}

func TestCanonicalizeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name  string
		raw   map[string]any
		field string
	}{
		{"nil payload", nil, ""},
		{"missing name", map[string]any{"time": "2026-03-01T10:15:00Z"}, "eventName"},
		{"blank name", map[string]any{"eventName": "  ", "time": "2026-03-01T10:15:00Z"}, "eventName"},
		{"non-string name", map[string]any{"eventName": 12, "time": "2026-03-01T10:15:00Z"}, "eventName"},
		{"missing time", map[string]any{"eventName": "task.created"}, "time"},
		{"bad time", map[string]any{"eventName": "task.created", "time": "yesterday"}, "time"},
		{"numeric time", map[string]any{"eventName": "task.created", "time": 1700000000}, "time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Canonicalize(tc.raw)
			var me *MalformedEventError
			if !errors.As(err, &me) {
				t.Fatalf("expected MalformedEventError, got %v", err)
			}
			if me.Field != tc.field {
				t.Fatalf("field = %q, want %q", me.Field, tc.field)
			}
		})
	}
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte("{not json"))
	var me *MalformedEventError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedEventError, got %v", err)
	}
}

func TestParseKeepsLargeIDs(t *testing.T) {
	ev, err := Parse([]byte(`{"event_name":"task.updated","time":"2026-03-01T10:15:00Z","data":{"task":{"id":9007199254740993,"project_id":3}}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	id, ok := TaskID(ev)
	if !ok || id != 9007199254740993 {
		t.Fatalf("TaskID = %d, %v", id, ok)
	}
	pid, ok := ProjectID(ev)
	if !ok || pid != 3 {
		t.Fatalf("ProjectID = %d, %v", pid, ok)
	}
}

func TestReferenceExtraction(t *testing.T) {
	ev, err := Canonicalize(map[string]any{
		"eventName": "team.member.added",
		"time":      "2026-03-01T10:15:00Z",
		"data": map[string]any{
			"member":  map[string]any{"id": json.Number("5")},
			"project": map[string]any{"id": "11"},
		},
	})
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if id, ok := UserID(ev); !ok || id != 5 {
		t.Fatalf("UserID = %d, %v", id, ok)
	}
	if id, ok := ProjectID(ev); !ok || id != 11 {
		t.Fatalf("ProjectID = %d, %v", id, ok)
	}
	if _, ok := TaskID(ev); ok {
		t.Fatalf("TaskID should be absent")
	}
}

func TestFamilies(t *testing.T) {
	if FamilyOf(TaskCommentCreated) != FamilyTask {
		t.Fatalf("comment events belong to the task family")
	}
	if !ReferencesUser(ProjectSharedUser) || ReferencesUser(ProjectCreated) {
		t.Fatalf("unexpected ReferencesUser result")
	}
	if FamilyOf("something.else") != FamilyUnknown || Known("something.else") {
		t.Fatalf("unlisted event should be unknown")
	}
}
