package event

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/CosmoTheDev/tasknotify/models"
)

// TaskID returns data.task.id.
func TaskID(ev models.Event) (int64, bool) {
	return intAt(ev.Data, "task", "id")
}

// ProjectID returns data.project.id, falling back to data.task.project_id.
func ProjectID(ev models.Event) (int64, bool) {
	if id, ok := intAt(ev.Data, "project", "id"); ok {
		return id, true
	}
	return intAt(ev.Data, "task", "project_id")
}

// UserID returns the user a membership or share event is about:
// data.member.id, then data.user.id.
func UserID(ev models.Event) (int64, bool) {
	if id, ok := intAt(ev.Data, "member", "id"); ok {
		return id, true
	}
	return intAt(ev.Data, "user", "id")
}

// Lookup walks a dotted path through nested maps in the event data.
func Lookup(data any, path ...string) (any, bool) {
	cur := data
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// StringAt returns the string at path, formatting numbers and bools.
func StringAt(data any, path ...string) (string, bool) {
	v, ok := Lookup(data, path...)
	if !ok {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

func intAt(data any, path ...string) (int64, bool) {
	v, ok := Lookup(data, path...)
	if !ok {
		return 0, false
	}
	var id int64
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, false
		}
		id = n
	case float64:
		if x != float64(int64(x)) {
			return 0, false
		}
		id = int64(x)
	case int:
		id = int64(x)
	case int64:
		id = x
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		id = n
	default:
		return 0, false
	}
	if id <= 0 {
		return 0, false
	}
	return id, true
}
