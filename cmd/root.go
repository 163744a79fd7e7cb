package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "warehouse",
	Short: "Warehouse integration adapter",
	Long: `Consumes order lifecycle events, translates them into the legacy WMS
wire protocol, and reconciles warehouse outcomes back into the order system.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
