package cli

import (
	"fmt"

	"github.com/liuran001/TubeBot-Go/bot/app"
	"github.com/spf13/cobra"
)

func newVersionCommand(build app.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := [][]string{
				{"Version", orUnknown(build.BinVersion)},
				{"Commit", orUnknown(build.CommitSHA)},
				{"Built", orUnknown(build.BuildTime)},
				{"Go", orUnknown(build.RuntimeVer)},
				{"Arch", orUnknown(build.BuildArch)},
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return err
		},
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
