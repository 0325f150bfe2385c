package templates

import (
	"fmt"
	"os"
	"strings"

	"github.com/CosmoTheDev/tasknotify/models"
	"go.yaml.in/yaml/v3"
)

// pack is the on-disk layout of a template file:
//
//	templates:
//	  - event: task.created
//	    body: "{{task.title}} created"
//	    overrides:
//	      slack: "*{{task.title}}* created"
type pack struct {
	Templates []models.NotificationTemplate `yaml:"templates"`
}

// LoadFile reads a YAML template pack from path.
func LoadFile(path string) (map[string]models.NotificationTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("templates: read %q: %w", path, err)
	}
	out, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("templates: parse %q: %w", path, err)
	}
	return out, nil
}

// Parse decodes a YAML template pack keyed by event type. An event type may
// appear only once.
func Parse(data []byte) (map[string]models.NotificationTemplate, error) {
	var p pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return FromList(p.Templates)
}

// FromList keys templates by event type, rejecting blanks and duplicates.
func FromList(list []models.NotificationTemplate) (map[string]models.NotificationTemplate, error) {
	out := make(map[string]models.NotificationTemplate, len(list))
	for i, t := range list {
		t.EventType = strings.TrimSpace(t.EventType)
		if t.EventType == "" {
			return nil, fmt.Errorf("template #%d has no event", i+1)
		}
		if _, dup := out[t.EventType]; dup {
			return nil, fmt.Errorf("duplicate template for event %q", t.EventType)
		}
		out[t.EventType] = t
	}
	return out, nil
}

// Merge returns base overlaid with extra; entries in extra win.
func Merge(base, extra map[string]models.NotificationTemplate) map[string]models.NotificationTemplate {
	out := make(map[string]models.NotificationTemplate, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
