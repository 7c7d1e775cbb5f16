package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgPath string

	rootCmd = &cobra.Command{
		Use:   "logistics-service",
		Short: "Logistics Service",
		Long: `Logistics Service for tracking transport loads through their lifecycle.

Functions:
- Move loads through the transition lifecycle with checkpoint validation
- Keep an append-only audit history of every status change
- Consolidate load requests into linked multi-stop trips
- Notify compliance, costing and field reception of lifecycle milestones`,
	}
)

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "directory holding config.yaml")
}
