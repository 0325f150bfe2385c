package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tasknotify",
	Short: "Route task tracker webhooks to chat, email and HTTP channels",
	Long: `tasknotify receives task tracker webhooks, enriches them with project,
task and user details from the tracker API, renders a message per channel
from templates and delivers it to Slack, Telegram, email or a signed webhook.

Get started:
  tasknotify config init      Write a default config file
  tasknotify validate         Check providers, routing and templates
  tasknotify doctor           Verify database, tracker and providers
  tasknotify dispatch -f e.json   Send one event without the server
  tasknotify serve            Run the webhook receiver`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.tasknotify/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		serveCmd,
		dispatchCmd,
		validateCmd,
		placeholdersCmd,
		historyCmd,
		configCmd,
		doctorCmd,
		onboardCmd,
		uiCmd,
	)
}

func initLogging() {
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}
