package config

import (
	"time"

	"github.com/CosmoTheDev/tasknotify/models"
)

// Config is the root configuration structure for tasknotify.
// Serialised to ~/.tasknotify/config.json.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   json:"server"`
	Tracker  TrackerConfig  `mapstructure:"tracker"  json:"tracker"`
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Pipeline PipelineConfig `mapstructure:"pipeline" json:"pipeline"`
	History  HistoryConfig  `mapstructure:"history"  json:"history"`
	Notify   NotifyConfig   `mapstructure:"notify"   json:"notify"`
}

// ServerConfig controls the webhook receiver.
type ServerConfig struct {
	// Addr is the listen address (default ":8095").
	Addr string `mapstructure:"addr" json:"addr"`
	// WebhookSecret, when set, requires inbound webhooks to carry a valid
	// HMAC-SHA256 signature.
	WebhookSecret string `mapstructure:"webhook_secret" json:"webhook_secret"`
}

// TrackerConfig points at the task tracker API used for enrichment.
type TrackerConfig struct {
	BaseURL string        `mapstructure:"base_url" json:"base_url"`
	Token   string        `mapstructure:"token"    json:"token"`
	Timeout time.Duration `mapstructure:"timeout"  json:"timeout"`
	// RatePerSec caps tracker requests per second; 0 disables throttling.
	RatePerSec int `mapstructure:"rate_per_sec" json:"rate_per_sec"`
}

// DatabaseConfig controls the history storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default), "mysql" or "postgres".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL or PostgreSQL data source name.
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// PipelineConfig bounds concurrency and time spent per event.
type PipelineConfig struct {
	// MaxConcurrency is shared by every in-flight send and tracker lookup.
	MaxConcurrency    int           `mapstructure:"max_concurrency"    json:"max_concurrency"`
	EnrichConcurrency int           `mapstructure:"enrich_concurrency" json:"enrich_concurrency"`
	DispatchTimeout   time.Duration `mapstructure:"dispatch_timeout"   json:"dispatch_timeout"`
}

// HistoryConfig controls delivery-history retention.
type HistoryConfig struct {
	// RetentionDays of 0 keeps history forever.
	RetentionDays int    `mapstructure:"retention_days" json:"retention_days"`
	PruneSchedule string `mapstructure:"prune_schedule" json:"prune_schedule"`
}

// NotifyConfig is the routing configuration.
type NotifyConfig struct {
	Providers        []models.ProviderConfig `mapstructure:"providers"         json:"providers"`
	DefaultProviders []string                `mapstructure:"default_providers" json:"default_providers"`
	// EventProviders overrides DefaultProviders per event type.
	EventProviders map[string][]string `mapstructure:"event_providers" json:"event_providers"`
	// TemplatesFile is an optional YAML template pack; inline Templates win
	// over pack entries for the same event.
	TemplatesFile string                        `mapstructure:"templates_file" json:"templates_file"`
	Templates     []models.NotificationTemplate `mapstructure:"templates"      json:"templates"`
}
