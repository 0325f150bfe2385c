package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/CosmoTheDev/tasknotify/internal/config"
	"github.com/CosmoTheDev/tasknotify/internal/event"
	"github.com/CosmoTheDev/tasknotify/internal/notify"
	"github.com/CosmoTheDev/tasknotify/internal/templates"
	"github.com/spf13/cobra"
)

var validateStrict bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check provider configs, routing and templates",
	Long: `Validates every configured provider with its own rules (no network I/O),
checks that routing only names configured providers, and lints templates
for placeholders that are not available for their event type.

Disabled providers are checked but never fail validation. Use --strict to
treat warnings as failures.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "fail on warnings")
}

type validationReport struct {
	errors   int
	warnings int
}

func (r *validationReport) fail(format string, args ...any) {
	r.errors++
	fmt.Println("  " + failStyle.Render("FAIL") + " " + fmt.Sprintf(format, args...))
}

func (r *validationReport) warn(format string, args ...any) {
	r.warnings++
	fmt.Println("  " + warnStyle.Render("WARN") + " " + fmt.Sprintf(format, args...))
}

func (r *validationReport) ok(format string, args ...any) {
	fmt.Println("  " + successStyle.Render("OK  ") + " " + fmt.Sprintf(format, args...))
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	reg := notify.DefaultRegistry(notify.Options{})
	var rep validationReport

	fmt.Println(headerStyle.Render("Providers"))
	validateProviders(cfg, reg, &rep)

	fmt.Println(headerStyle.Render("Routing"))
	validateRouting(cfg, &rep)

	fmt.Println(headerStyle.Render("Templates"))
	validateTemplates(cfg, &rep)

	fmt.Println()
	switch {
	case rep.errors > 0:
		return fmt.Errorf("validation failed: %d error(s), %d warning(s)", rep.errors, rep.warnings)
	case rep.warnings > 0 && validateStrict:
		return fmt.Errorf("validation failed: %d warning(s) in strict mode", rep.warnings)
	case rep.warnings > 0:
		fmt.Println(warnStyle.Render(fmt.Sprintf("Valid with %d warning(s).", rep.warnings)))
	default:
		fmt.Println(successStyle.Render("Configuration is valid."))
	}
	return nil
}

func validateProviders(cfg *config.Config, reg *notify.Registry, rep *validationReport) {
	if len(cfg.Notify.Providers) == 0 {
		rep.warn("no providers configured")
		return
	}
	seen := map[string]bool{}
	for _, p := range cfg.Notify.Providers {
		if seen[p.Type] {
			rep.warn("%s: duplicate entry ignored", p.Type)
			continue
		}
		seen[p.Type] = true
		v := reg.Validate(p)
		switch {
		case v.Valid && p.Enabled:
			rep.ok("%s", p.Type)
		case v.Valid:
			rep.ok("%s %s", p.Type, dimStyle.Render("(disabled)"))
		case p.Enabled:
			rep.fail("%s: %s", p.Type, strings.Join(v.Errors, "; "))
		default:
			rep.warn("%s (disabled): %s", p.Type, strings.Join(v.Errors, "; "))
		}
	}
}

func validateRouting(cfg *config.Config, rep *validationReport) {
	before := rep.errors + rep.warnings
	configured := map[string]bool{}
	for _, p := range cfg.Notify.Providers {
		configured[p.Type] = true
	}
	check := func(scope string, names []string) {
		for _, n := range names {
			if !configured[n] {
				rep.warn("%s routes to %q, which has no provider config", scope, n)
			}
		}
	}

	if len(cfg.Notify.DefaultProviders) == 0 {
		rep.warn("default_providers is empty; only events in event_providers are delivered")
	}
	check("default_providers", cfg.Notify.DefaultProviders)

	events := make([]string, 0, len(cfg.Notify.EventProviders))
	for ev := range cfg.Notify.EventProviders {
		events = append(events, ev)
	}
	sort.Strings(events)
	for _, ev := range events {
		if !event.Known(ev) {
			rep.warn("event_providers: unknown event type %q", ev)
		}
		check("event_providers."+ev, cfg.Notify.EventProviders[ev])
	}
	if rep.errors+rep.warnings == before {
		rep.ok("%d default provider(s), %d event override(s)", len(cfg.Notify.DefaultProviders), len(events))
	}
}

func validateTemplates(cfg *config.Config, rep *validationReport) {
	tmpls, err := loadTemplates(cfg)
	if err != nil {
		rep.fail("%v", err)
		return
	}
	if len(tmpls) == 0 {
		rep.warn("no templates configured; nothing will be delivered")
		return
	}

	events := make([]string, 0, len(tmpls))
	for ev := range tmpls {
		events = append(events, ev)
	}
	sort.Strings(events)
	for _, ev := range events {
		t := tmpls[ev]
		if !event.Known(ev) {
			rep.warn("%s: unknown event type", ev)
			continue
		}
		if strings.TrimSpace(t.Body) == "" {
			rep.warn("%s: empty body", ev)
			continue
		}
		if bad := templates.Lint(t); len(bad) > 0 {
			rep.warn("%s: placeholders not available for this event: %s", ev, strings.Join(bad, ", "))
			continue
		}
		rep.ok("%s", ev)
	}
}
