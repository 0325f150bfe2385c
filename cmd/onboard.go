package cmd

import (
	"fmt"
	"strings"

	"github.com/CosmoTheDev/tasknotify/internal/config"
	"github.com/CosmoTheDev/tasknotify/internal/notify"
	"github.com/CosmoTheDev/tasknotify/models"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Interactive setup wizard",
	Long: `Walks you through a first configuration:
  - the tracker API used to enrich events
  - the webhook listen address and signing secret
  - one notification channel, used for every event by default

Existing values are offered as defaults. The result is written to the
config file; run "tasknotify validate" afterwards to lint it.`,
	RunE: runOnboard,
}

// onboardAnswers holds everything the wizard asks for.
type onboardAnswers struct {
	TrackerURL    string
	TrackerToken  string
	Addr          string
	WebhookSecret string
	Provider      string
	Settings      map[string]string
}

// providerFields lists the settings the wizard asks for per provider type.
var providerFields = map[string][]string{
	"slack":    {"webhook_url", "channel"},
	"telegram": {"bot_token", "chat_id"},
	"webhook":  {"url", "secret"},
	"email":    {"smtp_host", "smtp_port", "from", "to", "username", "password"},
}

var secretFields = map[string]bool{"bot_token": true, "secret": true, "password": true}

func runOnboard(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("  tasknotify setup"))
	fmt.Println(dimStyle.Render("  Task tracker webhooks in, chat and mail notifications out.\n"))

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ans := onboardAnswers{
		TrackerURL:    cfg.Tracker.BaseURL,
		TrackerToken:  cfg.Tracker.Token,
		Addr:          cfg.Server.Addr,
		WebhookSecret: cfg.Server.WebhookSecret,
		Provider:      "slack",
	}

	fmt.Println(headerStyle.Render("  Step 1/3 · Tracker and webhook"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Tracker base URL").
				Description("Used to look up projects, tasks and users. Leave blank to skip enrichment.").
				Placeholder("https://tasks.example.com").
				Value(&ans.TrackerURL),
			huh.NewInput().
				Title("Tracker API token").
				EchoMode(huh.EchoModePassword).
				Value(&ans.TrackerToken),
			huh.NewInput().
				Title("Listen address").
				Value(&ans.Addr),
			huh.NewInput().
				Title("Webhook signing secret (optional)").
				Description("Must match the secret configured on the tracker webhook.").
				EchoMode(huh.EchoModePassword).
				Value(&ans.WebhookSecret),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("  Step 2/3 · Notification channel"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Channel").
				Options(
					huh.NewOption("Slack incoming webhook", "slack"),
					huh.NewOption("Telegram bot", "telegram"),
					huh.NewOption("Generic HTTP webhook", "webhook"),
					huh.NewOption("Email (SMTP)", "email"),
				).
				Value(&ans.Provider),
		),
	).Run()
	if err != nil {
		return err
	}

	ans.Settings = existingSettings(cfg, ans.Provider)
	values := make([]string, len(providerFields[ans.Provider]))
	fields := make([]huh.Field, 0, len(values))
	for i, key := range providerFields[ans.Provider] {
		values[i] = ans.Settings[key]
		in := huh.NewInput().Title(key).Value(&values[i])
		if secretFields[key] {
			in = in.EchoMode(huh.EchoModePassword)
		}
		fields = append(fields, in)
	}
	fmt.Println(headerStyle.Render("  Step 3/3 · " + ans.Provider + " settings"))
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}
	for i, key := range providerFields[ans.Provider] {
		ans.Settings[key] = values[i]
	}

	applyOnboarding(cfg, ans)

	reg := notify.DefaultRegistry(notify.Options{})
	for _, p := range cfg.Notify.Providers {
		if p.Type != ans.Provider {
			continue
		}
		if v := reg.Validate(p); !v.Valid {
			fmt.Println(warnStyle.Render("  " + ans.Provider + " is incomplete: " + strings.Join(v.Errors, "; ")))
		}
	}

	path, err := config.ConfigPath(cfgFile)
	if err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Println(successStyle.Render("  Wrote " + path))
	fmt.Println(dimStyle.Render("  Next: tasknotify validate && tasknotify serve"))
	return nil
}

func existingSettings(cfg *config.Config, providerType string) map[string]string {
	out := map[string]string{}
	for _, p := range cfg.Notify.Providers {
		if p.Type == providerType {
			for k, v := range p.Settings {
				out[k] = v
			}
			break
		}
	}
	return out
}

// applyOnboarding merges the wizard answers into cfg. The chosen provider
// replaces any existing entry of the same type and becomes a default.
func applyOnboarding(cfg *config.Config, ans onboardAnswers) {
	cfg.Tracker.BaseURL = strings.TrimRight(strings.TrimSpace(ans.TrackerURL), "/")
	cfg.Tracker.Token = strings.TrimSpace(ans.TrackerToken)
	if addr := strings.TrimSpace(ans.Addr); addr != "" {
		cfg.Server.Addr = addr
	}
	cfg.Server.WebhookSecret = strings.TrimSpace(ans.WebhookSecret)

	settings := map[string]string{}
	for k, v := range ans.Settings {
		if v = strings.TrimSpace(v); v != "" {
			settings[k] = v
		}
	}
	pc := models.ProviderConfig{Type: ans.Provider, Enabled: true, Settings: settings}

	replaced := false
	for i, p := range cfg.Notify.Providers {
		if p.Type == ans.Provider {
			cfg.Notify.Providers[i] = pc
			replaced = true
			break
		}
	}
	if !replaced {
		cfg.Notify.Providers = append(cfg.Notify.Providers, pc)
	}

	for _, name := range cfg.Notify.DefaultProviders {
		if name == ans.Provider {
			return
		}
	}
	cfg.Notify.DefaultProviders = append(cfg.Notify.DefaultProviders, ans.Provider)
}
