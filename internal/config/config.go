package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	DefaultConfigDir  = ".tasknotify"
	DefaultConfigFile = "config.json"
	DefaultDBFile     = ".tasknotify/history.db"

	envPrefix = "TASKNOTIFY"
)

// Load reads the config file and returns a populated Config. A missing file
// is not an error: defaults and TASKNOTIFY_* environment variables apply.
// The configPath flag may override the default location.
func Load(configPath string) (*Config, error) {
	v, home, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return decode(v, home)
}

// Watch loads the config and calls fn with a fresh Config every time the
// file changes. A change that fails to parse is logged and skipped. Without
// a config file Watch behaves like Load.
func Watch(configPath string, fn func(*Config)) (*Config, error) {
	v, home, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("config: no config file, changes will not be watched")
		return decode(v, home)
	}
	cfg, err := decode(v, home)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		next, err := decode(v, home)
		if err != nil {
			slog.Warn("config: reload failed", "file", e.Name, "error", err)
			return
		}
		slog.Info("config: reloaded", "file", e.Name)
		fn(next)
	})
	v.WatchConfig()
	return cfg, nil
}

// Save writes the config to disk as JSON.
func Save(cfg *Config, configPath string) error {
	path, err := ConfigPath(configPath)
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// Defaults returns a Config holding only default values.
func Defaults() *Config {
	home, _ := os.UserHomeDir()
	v := viper.New()
	setDefaults(v, home)
	cfg, err := decode(v, home)
	if err != nil {
		return &Config{}
	}
	return cfg
}

func newViper(configPath string) (*viper.Viper, string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v, home)
	return v, home, nil
}

func decode(v *viper.Viper, home string) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	expandPaths(&cfg, home)
	return &cfg, nil
}

// setDefaults populates viper with sensible out-of-the-box values.
func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("server.addr", ":8095")
	v.SetDefault("server.webhook_secret", "")

	v.SetDefault("tracker.base_url", "")
	v.SetDefault("tracker.token", "")
	v.SetDefault("tracker.timeout", "10s")
	v.SetDefault("tracker.rate_per_sec", 10)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join(home, DefaultDBFile))
	v.SetDefault("database.dsn", "")

	v.SetDefault("pipeline.max_concurrency", 16)
	v.SetDefault("pipeline.enrich_concurrency", 4)
	v.SetDefault("pipeline.dispatch_timeout", "30s")

	v.SetDefault("history.retention_days", 30)
	v.SetDefault("history.prune_schedule", "@daily")

	v.SetDefault("notify.default_providers", []string{})
	v.SetDefault("notify.templates_file", "")
}

// expandPaths resolves ~ in configured paths.
func expandPaths(cfg *Config, home string) {
	cfg.Database.Path = expandHome(cfg.Database.Path, home)
	cfg.Notify.TemplatesFile = expandHome(cfg.Notify.TemplatesFile, home)
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}
