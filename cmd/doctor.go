package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/CosmoTheDev/tasknotify/internal/config"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify database, tracker and provider configuration",
	Long: `Checks that the history database can be opened and migrated, the
tracker API answers with the configured token, and every enabled provider
passes its own validation.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true

	fmt.Println("=== tasknotify doctor ===")
	fmt.Println()

	fmt.Print("Database ................. ")
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		return nil
	}
	defer a.Close()
	if err := a.db.Ping(ctx); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		target := cfg.Database.Path
		if a.db.Driver() != "sqlite" {
			target = "dsn"
		}
		fmt.Printf("OK (%s: %s)\n", a.db.Driver(), target)
	}

	fmt.Print("Tracker API .............. ")
	switch {
	case a.tracker == nil:
		fmt.Println("WARN (tracker.base_url not set, messages will not be enriched)")
		allOK = false
	default:
		if err := a.tracker.Ping(ctx); err != nil {
			fmt.Printf("FAIL (%s)\n", err)
			allOK = false
		} else {
			fmt.Printf("OK (%s)\n", cfg.Tracker.BaseURL)
		}
	}

	fmt.Print("Templates ................ ")
	tmpls, err := loadTemplates(cfg)
	if err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		fmt.Printf("OK (%d event types)\n", len(tmpls))
	}

	fmt.Println()
	fmt.Println("Providers:")
	enabled := 0
	for _, p := range cfg.Notify.Providers {
		if !p.Enabled {
			fmt.Printf("  %-10s ... disabled\n", p.Type)
			continue
		}
		enabled++
		if v := a.registry.Validate(p); !v.Valid {
			fmt.Printf("  %-10s ... FAIL (%v)\n", p.Type, v.Errors)
			allOK = false
		} else {
			fmt.Printf("  %-10s ... OK\n", p.Type)
		}
	}
	if enabled == 0 {
		fmt.Println("  none enabled")
		allOK = false
	}

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed, tasknotify is ready!"))
	} else {
		fmt.Println(warnStyle.Render("Some checks failed. Run 'tasknotify validate' for details."))
	}
	return nil
}
