package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/CosmoTheDev/tasknotify/internal/config"
	"github.com/CosmoTheDev/tasknotify/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveLogJSON bool
	serveNoHist  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook receiver",
	Long: `Starts the tasknotify daemon. Point the tracker's webhook at
POST /webhook; each event is enriched, routed and delivered, and the
results are stored in the delivery history.

Routing changes in the config file (providers, default_providers,
event_providers, templates) are picked up without a restart.

Endpoints:
  POST /webhook                       tracker webhook (202 with results)
  GET  /events                        live dispatch stream (Server-Sent Events)
  GET  /health                        liveness check
  GET  /metrics                       Prometheus metrics
  GET  /api/history                   delivery history (?event=&provider=&failed=true&limit=)
  GET  /api/placeholders/{event}      placeholders a template may use
  POST /api/providers/validate        check a provider config`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveLogJSON, "log-json", false, "write JSON logs to stderr")
	serveCmd.Flags().BoolVar(&serveNoHist, "no-history", false, "do not record deliveries")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	setupServeLogger(serveLogJSON)

	var current atomic.Pointer[app]
	cfg, err := config.Watch(cfgFile, func(next *config.Config) {
		a := current.Load()
		if a == nil {
			return
		}
		r, err := a.buildRouter(next)
		if err != nil {
			slog.Warn("serve: keeping previous routing config", "error", err)
			return
		}
		a.pipeline.SetRouter(r)
		slog.Info("serve: routing config reloaded", "providers", len(next.Notify.Providers))
	})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	a, err := newApp(ctx, cfg, !serveNoHist)
	if err != nil {
		return err
	}
	defer a.Close()
	current.Store(a)

	fmt.Println(headerStyle.Render("tasknotify " + Version))
	fmt.Printf("  Listen     : %s\n", cfg.Server.Addr)
	fmt.Printf("  Tracker    : %s\n", orDash(cfg.Tracker.BaseURL))
	fmt.Printf("  Providers  : %d configured\n", len(cfg.Notify.Providers))
	if a.db != nil {
		fmt.Printf("  History    : %s\n", a.db.Driver())
	} else {
		fmt.Printf("  History    : disabled\n")
	}
	fmt.Println(dimStyle.Render("Press Ctrl+C to stop gracefully."))
	fmt.Println()

	return server.New(cfg, a.pipeline, a.registry, a.store).Start(ctx)
}

func setupServeLogger(jsonOut bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: verbose}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if jsonOut {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
