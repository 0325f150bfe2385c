package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CosmoTheDev/tasknotify/internal/config"
	"github.com/CosmoTheDev/tasknotify/internal/database"
	"github.com/CosmoTheDev/tasknotify/internal/enrich"
	"github.com/CosmoTheDev/tasknotify/internal/history"
	"github.com/CosmoTheDev/tasknotify/internal/notify"
	"github.com/CosmoTheDev/tasknotify/internal/pipeline"
	"github.com/CosmoTheDev/tasknotify/internal/router"
	"github.com/CosmoTheDev/tasknotify/internal/templates"
	"github.com/CosmoTheDev/tasknotify/internal/tracker"
	"github.com/CosmoTheDev/tasknotify/models"
	"golang.org/x/sync/semaphore"
)

// app holds the components every command builds from the same config.
type app struct {
	cfg      *config.Config
	limiter  *semaphore.Weighted
	registry *notify.Registry
	engine   *templates.Engine
	tracker  *tracker.Client
	enricher *enrich.Enricher
	db       database.DB
	store    *history.Store
	pipeline *pipeline.Pipeline
}

// loadTemplates merges the template pack file with inline templates.
func loadTemplates(cfg *config.Config) (map[string]models.NotificationTemplate, error) {
	inline, err := templates.FromList(cfg.Notify.Templates)
	if err != nil {
		return nil, fmt.Errorf("inline templates: %w", err)
	}
	if cfg.Notify.TemplatesFile == "" {
		return inline, nil
	}
	pack, err := templates.LoadFile(cfg.Notify.TemplatesFile)
	if err != nil {
		return nil, err
	}
	return templates.Merge(pack, inline), nil
}

func (a *app) buildRouter(cfg *config.Config) (*router.Router, error) {
	tmpls, err := loadTemplates(cfg)
	if err != nil {
		return nil, err
	}
	return router.New(router.Config{
		Providers:        cfg.Notify.Providers,
		DefaultProviders: cfg.Notify.DefaultProviders,
		EventProviders:   cfg.Notify.EventProviders,
		Templates:        tmpls,
	}, a.registry, a.engine, router.WithLimiter(a.limiter)), nil
}

// newApp wires the pipeline. withHistory opens and migrates the database.
func newApp(ctx context.Context, cfg *config.Config, withHistory bool) (*app, error) {
	maxConc := cfg.Pipeline.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 16
	}
	a := &app{
		cfg:      cfg,
		limiter:  semaphore.NewWeighted(int64(maxConc)),
		registry: notify.DefaultRegistry(notify.Options{}),
		engine:   templates.NewEngine(),
	}

	if cfg.Tracker.BaseURL != "" {
		tc, err := tracker.New(tracker.Config{
			BaseURL:    cfg.Tracker.BaseURL,
			Token:      cfg.Tracker.Token,
			Timeout:    cfg.Tracker.Timeout,
			RatePerSec: cfg.Tracker.RatePerSec,
		})
		if err != nil {
			return nil, err
		}
		a.tracker = tc
		a.enricher = enrich.New(tc,
			enrich.WithSharedLimiter(a.limiter),
			enrich.WithConcurrency(cfg.Pipeline.EnrichConcurrency))
	} else {
		slog.Warn("tracker.base_url not set; events are routed without enrichment")
	}

	r, err := a.buildRouter(cfg)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{pipeline.WithDispatchTimeout(cfg.Pipeline.DispatchTimeout)}
	if withHistory {
		db, err := database.New(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		a.db = db
		a.store = history.NewStore(db)
		opts = append(opts, pipeline.WithRecorder(a.store))
	}

	a.pipeline = pipeline.New(a.enricher, r, opts...)
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
