package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/relayforge/relay/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs",
	RunE:  runHistoryList,
}

var historyExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export recent runs to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryExport,
}

func init() {
	historyCmd.PersistentFlags().IntVar(&historyLimit, "limit", 20, "maximum number of runs")
	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (*history.Store, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.History.Path == "" {
		return nil, fmt.Errorf("history is disabled (history.path is empty)")
	}
	return history.Open(cfg.History.Path)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, r := range runs {
		line := fmt.Sprintf("%s  %-10s %-9s %s",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Subagent, r.Status,
			r.Duration.Round(time.Millisecond))
		if r.Error != "" {
			line += "  " + r.Error
		}
		fmt.Println(line)
	}
	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Export(cmd.Context(), args[0], historyLimit); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", args[0])
	return nil
}
