package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query node status",
	Example: `  arogyactl status
  arogyactl status --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := client().Status()
		if err != nil {
			return err
		}
		if output == "json" {
			return printJSON(cmd.OutOrStdout(), status)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\nHeight: %d\nUptime: %ds\nVersion: %s (API %s)\nLast Block: %s\n",
			status.Status, status.BlockHeight, status.Uptime, status.Version, status.APIVersion, status.LastBlock)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
