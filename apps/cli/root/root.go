package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the Orderline admin CLI. Subcommands
// (bootstrap, store, ecosystem, auth) are attached here.
var rootCmd = &cobra.Command{
	Use:           "orderline",
	Short:         "Orderline admin CLI",
	Long:          "Administrative utilities for Orderline (bootstrap helpers, store management, ecosystem audits, dev tokens).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
