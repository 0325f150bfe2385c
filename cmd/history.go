package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/CosmoTheDev/tasknotify/internal/config"
	"github.com/CosmoTheDev/tasknotify/internal/database"
	"github.com/CosmoTheDev/tasknotify/internal/history"
	"github.com/spf13/cobra"
)

var (
	historyEvent    string
	historyProvider string
	historyFailed   bool
	historyLimit    int
	historyJSON     bool
	pruneDays       int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent deliveries",
	RunE:  runHistory,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete history older than --days (default: history.retention_days)",
	RunE:  runHistoryPrune,
}

func init() {
	historyCmd.Flags().StringVar(&historyEvent, "event", "", "only this event type")
	historyCmd.Flags().StringVar(&historyProvider, "provider", "", "only this provider type")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "only failed deliveries")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum entries")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print JSON")

	historyPruneCmd.Flags().IntVar(&pruneDays, "days", 0, "keep this many days")
	historyCmd.AddCommand(historyPruneCmd)
}

func openHistory(ctx context.Context) (*history.Store, *config.Config, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return history.NewStore(db), cfg, func() { db.Close() }, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, _, closeDB, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	entries, err := store.List(ctx, history.Filter{
		EventName:    historyEvent,
		ProviderType: historyProvider,
		OnlyFailed:   historyFailed,
		Limit:        historyLimit,
	})
	if err != nil {
		return err
	}

	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Println(dimStyle.Render("No deliveries recorded."))
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s %s  %-24s %-10s", status(e.Succeeded()), shortTime(e.CreatedAt), e.EventName, e.ProviderType)
		if e.IsDegraded() {
			line += warnStyle.Render(" partial:" + e.Missing)
		}
		if e.ErrorDetail != "" {
			line += dimStyle.Render(" " + e.ErrorDetail)
		}
		fmt.Println(line)
	}
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, cfg, closeDB, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	days := pruneDays
	if days <= 0 {
		days = cfg.History.RetentionDays
	}
	if days <= 0 {
		return fmt.Errorf("no retention configured; pass --days")
	}
	n, err := store.Prune(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Deleted %d entries older than %d days.", n, days)))
	return nil
}

// shortTime trims stored timestamps to the second.
func shortTime(ts string) string {
	if len(ts) > 19 {
		return ts[:19]
	}
	return ts
}
