package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/changelog-tools/chronicle/internal/config"
	"github.com/changelog-tools/chronicle/internal/errors"
	"github.com/changelog-tools/chronicle/internal/github"
)

var releasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "List the releases the resolver would see",
	Long: `Releases prints the repository's release list in the order the
release source delivers it, newest first. Prerelease entries are
marked. Useful for checking what the range resolver will compare
against before running generate.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runReleases,
}

func init() {
	rootCmd.AddCommand(releasesCmd)
}

func runReleases(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(repoFlag)
	if err != nil {
		return errors.Wrap(err, errors.Configuration)
	}
	setupDebugLogging(debugFlag || cfg.Debug)

	if cfg.Owner == "" || cfg.Repo == "" {
		return errors.NewConfigError(
			"project owner and repo must be configured",
			"set owner and repo in .chronicle/config.yml",
		)
	}

	client := github.NewClient(
		github.WithBaseURL(cfg.APIURL),
		github.WithToken(cfg.Token),
	)

	releases, err := client.ListReleases(ctx, cfg.Owner, cfg.Repo)
	if err != nil {
		return err
	}

	if len(releases) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No releases found.")
		return nil
	}

	for _, r := range releases {
		if r.Prerelease {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (prerelease)\n", r.Name)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), r.Name)
		}
	}
	return nil
}
