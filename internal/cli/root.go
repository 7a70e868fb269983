// Package cli implements the chronicle command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/changelog-tools/chronicle/internal/errors"
	"github.com/changelog-tools/chronicle/internal/github"
	"github.com/changelog-tools/chronicle/internal/gitrepo"
)

var (
	repoFlag  string
	debugFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "chronicle",
	Short: "Aggregate merged pull requests into a versioned changelog",
	Long: `chronicle collects merged pull request metadata across a project and
its declared subprojects, classifies each change from labels and body
markers, and reconciles the rendered result into the project's
changelog without disturbing previously recorded entries.

Configuration lives in .chronicle/config.yml at the repository root;
CHRONICLE_* environment variables override it.`,
	Example: `  chronicle generate 1.4.0      # reconcile the 1.4.0 section into CHANGELOG.md
  chronicle generate --dry-run  # preview unreleased changes against develop
  chronicle releases            # list the releases the resolver would see`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", ".", "Path to the project repository")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if cliErr := errors.AsCLIError(err); cliErr != nil {
			errors.PrintError(cliErr)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// setupDebugLogging wires the injectable debug loggers when enabled via
// flag or config.
func setupDebugLogging(enabled bool) {
	if !enabled {
		return
	}
	logger := func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
	gitrepo.SetDebugLogger(logger)
	github.SetDebugLogger(logger)
}
