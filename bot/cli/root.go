// Package cli holds the tubebot command tree.
package cli

import (
	"github.com/liuran001/TubeBot-Go/bot/app"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.ini"

// NewRootCommand builds the tubebot command. Without a subcommand it serves.
func NewRootCommand(build app.BuildInfo) *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "tubebot",
		Short:         "Telegram bot that finds songs and sends them as tagged audio",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configFlag, build)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", defaultConfigPath, "Configuration file path")

	rootCmd.AddCommand(newServeCommand(&configFlag, build))
	rootCmd.AddCommand(newCacheCommand(&configFlag))
	rootCmd.AddCommand(newVersionCommand(build))

	return rootCmd
}
