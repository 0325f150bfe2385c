package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/CosmoTheDev/tasknotify/internal/config"
	"github.com/CosmoTheDev/tasknotify/internal/event"
	"github.com/CosmoTheDev/tasknotify/models"
	"github.com/spf13/cobra"
)

var (
	dispatchFile   string
	dispatchDryRun bool
	dispatchRecord bool
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Process one webhook payload without running the server",
	Long: `Reads a tracker webhook payload (JSON) from --file or stdin, enriches
it and delivers it to every configured target, then prints one line per
result in routing order.

With --dry-run the rendered messages are printed instead of sent.`,
	Example: `  tasknotify dispatch -f event.json
  cat event.json | tasknotify dispatch --dry-run`,
	RunE: runDispatch,
}

func init() {
	dispatchCmd.Flags().StringVarP(&dispatchFile, "file", "f", "", "payload file (default: stdin)")
	dispatchCmd.Flags().BoolVar(&dispatchDryRun, "dry-run", false, "render messages without sending")
	dispatchCmd.Flags().BoolVar(&dispatchRecord, "record", false, "store results in the delivery history")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	body, err := readPayload(dispatchFile)
	if err != nil {
		return err
	}
	ev, err := event.Parse(body)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, dispatchRecord && !dispatchDryRun)
	if err != nil {
		return err
	}
	defer a.Close()

	if dispatchDryRun {
		return printDryRun(ctx, a, ev)
	}

	results := a.pipeline.ProcessEvent(ctx, ev)
	if len(results) == 0 {
		fmt.Println(warnStyle.Render("No targets for " + ev.Name + " (no template or no enabled providers)."))
		return nil
	}
	failed := 0
	for _, res := range results {
		detail := ""
		if !res.Success {
			failed++
			detail = dimStyle.Render(" " + res.ErrorDetail)
		}
		fmt.Printf("  %s %-10s%s\n", status(res.Success), res.ProviderType, detail)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d deliveries failed", failed, len(results))
	}
	return nil
}

func printDryRun(ctx context.Context, a *app, ev models.Event) error {
	c := models.EnrichedContext{Event: ev}
	if a.enricher != nil {
		c = a.enricher.Enrich(ctx, ev)
	}
	if c.Degraded() {
		fmt.Println(warnStyle.Render(fmt.Sprintf("Partial context, missing: %v", c.Missing)))
	}

	targets := a.pipeline.Router().Targets(ev.Name)
	if len(targets) == 0 {
		fmt.Println(warnStyle.Render("No targets for " + ev.Name + "."))
		return nil
	}
	for _, t := range targets {
		fmt.Println(headerStyle.Render(t.Provider.Type))
		fmt.Println(a.engine.Render(t.Template, t.Provider.Type, c))
		fmt.Println()
	}
	return nil
}

func readPayload(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return data, nil
}
