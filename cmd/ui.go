package cmd

import (
	"context"

	"github.com/CosmoTheDev/tasknotify/internal/tui"
	"github.com/spf13/cobra"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the terminal dashboard",
	Long:  `Opens an interactive view of the delivery history: totals per provider and a browsable list of recent deliveries. Refreshes every 10 seconds.`,
	RunE:  runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	store, _, closeDB, err := openHistory(context.Background())
	if err != nil {
		return err
	}
	defer closeDB()

	return tui.NewApp(store).Run()
}
