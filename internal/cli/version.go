package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/changelog-tools/chronicle/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print chronicle version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "chronicle %s\n", version.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", version.Commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", version.BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
