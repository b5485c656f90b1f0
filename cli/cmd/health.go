package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query node health summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		health, err := client().Health()
		if err != nil {
			return err
		}
		if output == "json" {
			return printJSON(cmd.OutOrStdout(), health)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Node Health: %s\n", health.Status)
		fmt.Fprintf(out, "Ledger State: %s\n", health.Metrics.LedgerState)
		fmt.Fprintf(out, "Uptime: %ds\n", health.Metrics.UptimeSeconds)
		fmt.Fprintf(out, "Block Height: %d\n", health.Metrics.BlockHeight)
		fmt.Fprintf(out, "CPU Load: %.2f%%\n", health.Metrics.CPULoadPercent)
		fmt.Fprintf(out, "Memory Usage: %.2f MB\n", health.Metrics.MemoryMB)
		fmt.Fprintf(out, "Goroutines: %d\n", health.Metrics.Goroutines)
		fmt.Fprintf(out, "Disk Free: %.2f MB\n", health.Metrics.DiskFreeMB)
		fmt.Fprintf(out, "Last Block Time: %s\n", health.Metrics.LastBlockTime)
		return nil
	},
}

var livenessCmd = &cobra.Command{
	Use:   "liveness",
	Short: "Check node liveness",
	RunE: func(cmd *cobra.Command, args []string) error {
		alive, err := client().Liveness()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Liveness: %v\n", alive)
		return nil
	},
}

var readinessCmd = &cobra.Command{
	Use:   "readiness",
	Short: "Check node readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		ready, err := client().Readiness()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Readiness: %v\n", ready)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(livenessCmd)
	rootCmd.AddCommand(readinessCmd)
}
