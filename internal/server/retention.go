package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CosmoTheDev/tasknotify/internal/config"
	"github.com/CosmoTheDev/tasknotify/internal/history"
	"github.com/robfig/cron/v3"
)

// startRetention schedules history pruning with robfig/cron. It returns nil
// when there is nothing to prune: no store or unlimited retention.
func startRetention(ctx context.Context, store *history.Store, cfg config.HistoryConfig) (*cron.Cron, error) {
	if store == nil || cfg.RetentionDays <= 0 {
		return nil, nil
	}
	expr := cfg.PruneSchedule
	if expr == "" {
		expr = "@daily"
	}

	c := cron.New()
	_, err := c.AddFunc(expr, func() { pruneOnce(ctx, store, cfg.RetentionDays) })
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	c.Start()
	slog.Info("server: history retention scheduled", "schedule", expr, "days", cfg.RetentionDays)
	return c, nil
}

func pruneOnce(ctx context.Context, store *history.Store, days int) {
	cutoff := time.Now().AddDate(0, 0, -days)
	n, err := store.Prune(ctx, cutoff)
	if err != nil {
		slog.Warn("server: history prune failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("server: history pruned", "deleted", n, "before", cutoff.Format(time.RFC3339))
	}
}
