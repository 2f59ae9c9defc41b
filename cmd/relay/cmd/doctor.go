package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relayforge/relay/internal/diagnostics"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check backend availability and system resources",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("scripts directory: %s\n", cfg.Scripts.Dir)
	if _, err := os.Stat(cfg.Scripts.Dir); err != nil {
		fmt.Printf("  missing (%v)\n", err)
	} else {
		fmt.Println("  ok")
	}

	reg := buildRegistry(cfg, logger)
	unhealthy := 0
	for _, name := range reg.List() {
		b, err := reg.Get(name)
		if err != nil {
			fmt.Printf("backend %s: error (%v)\n", name, err)
			unhealthy++
			continue
		}
		if b.IsAvailable(cmd.Context()) {
			fmt.Printf("backend %s: available\n", name)
		} else {
			fmt.Printf("backend %s: unavailable\n", name)
			unhealthy++
		}
	}

	cwd, _ := os.Getwd()
	snap := diagnostics.NewResourceMonitor(cwd).TakeSnapshot()
	fmt.Printf("memory: %dMB free (%.1f%% used)\n", snap.MemoryFreeMB, snap.MemoryUsedPercent)
	fmt.Printf("disk:   %dMB free (%.1f%% used)\n", snap.DiskFreeMB, snap.DiskUsedPercent)

	if unhealthy > 0 {
		return fmt.Errorf("%d backend(s) unavailable", unhealthy)
	}
	return nil
}
