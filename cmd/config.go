package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/CosmoTheDev/tasknotify/internal/config"
	"github.com/spf13/cobra"
)

// secretSettings are provider settings redacted by config show.
var secretSettings = []string{"bot_token", "password", "secret", "jwt_secret", "webhook_url"}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and manage tasknotify configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current configuration (secrets redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		redact(cfg)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the path to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	},
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		if _, err := os.Stat(p); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", p)
		}
		if err := config.Save(config.Defaults(), p); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Wrote " + p))
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "nano"
		}
		fmt.Printf("Opening %s with %s...\n", p, editor)
		c := exec.Command(editor, p) // #nosec G204 -- editor is from $EDITOR env var, intentional user-controlled binary
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd, configPathCmd, configInitCmd, configEditCmd)
}

// redact masks credentials in place.
func redact(cfg *config.Config) {
	if cfg.Server.WebhookSecret != "" {
		cfg.Server.WebhookSecret = "***"
	}
	if cfg.Tracker.Token != "" {
		cfg.Tracker.Token = "***"
	}
	if cfg.Database.DSN != "" {
		cfg.Database.DSN = "***"
	}
	for i := range cfg.Notify.Providers {
		settings := make(map[string]string, len(cfg.Notify.Providers[i].Settings))
		for k, v := range cfg.Notify.Providers[i].Settings {
			settings[k] = v
		}
		for _, key := range secretSettings {
			if settings[key] != "" {
				settings[key] = "***"
			}
		}
		cfg.Notify.Providers[i].Settings = settings
	}
}
