// Package cmd implements the command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quotedeck/logocache/internal/build"
)

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand creates the root command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   build.AppName,
		Short: "Cached company logo service",
		Long: `logocache keeps a small fleet of company logos warm in object storage,
refreshing them once a day from the upstream branding API and serving
them over HTTP with long-lived cache headers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "config file path (default: ./config.yaml)")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().Bool("quiet", false, "suppress log output")

	cmd.AddCommand(
		newServerCommand(),
		newCycleCommand(),
		newStatusCommand(),
		newVersionCommand(),
	)

	return cmd
}
