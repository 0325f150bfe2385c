package cmd

import (
	"fmt"
	"strings"

	"github.com/CosmoTheDev/tasknotify/internal/event"
	"github.com/CosmoTheDev/tasknotify/internal/templates"
	"github.com/spf13/cobra"
)

var placeholdersCmd = &cobra.Command{
	Use:   "placeholders [event]",
	Short: "List the template placeholders available for an event type",
	Long: `Prints the {{placeholders}} a template for the given event type can use.
Without an argument, every known event type is listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			name := args[0]
			if !event.Known(name) {
				fmt.Println(warnStyle.Render("Unknown event type " + name + "; only event.* is available."))
			}
			for _, p := range templates.AvailablePlaceholders(name) {
				fmt.Printf("{{%s}}\n", p)
			}
			return nil
		}

		for _, name := range event.Types() {
			fmt.Println(headerStyle.Render(name))
			fmt.Println("  " + strings.Join(templates.AvailablePlaceholders(name), " "))
		}
		return nil
	},
}
