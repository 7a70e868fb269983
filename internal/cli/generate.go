package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/changelog-tools/chronicle/internal/changes"
	"github.com/changelog-tools/chronicle/internal/collect"
	"github.com/changelog-tools/chronicle/internal/config"
	"github.com/changelog-tools/chronicle/internal/errors"
	"github.com/changelog-tools/chronicle/internal/github"
	"github.com/changelog-tools/chronicle/internal/gitrepo"
	"github.com/changelog-tools/chronicle/internal/reconcile"
	"github.com/changelog-tools/chronicle/internal/release"
	"github.com/changelog-tools/chronicle/internal/render"
)

var dryRunFlag bool

var generateCmd = &cobra.Command{
	Use:   "generate [version]",
	Short: "Generate a changelog section and reconcile it into the changelog",
	Long: `Generate collects merged pull requests for the given target version
across the project and its subprojects, renders them as one changelog
section, and merges that section into the changelog file in place.

When the version is omitted, generate previews the unreleased changes
between the latest release and the develop branch under the next patch
version; a preview is never written to disk.

Examples:
  chronicle generate 1.4.0           # reconcile the 1.4.0 section
  chronicle generate 1.4.0-rc.1      # prerelease sections are replaced by the final
  chronicle generate 1.4.0 --dry-run # print the merged document instead of writing
  chronicle generate                 # preview unreleased changes`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Print the merged document instead of writing it")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(repoFlag)
	if err != nil {
		return errors.Wrap(err, errors.Configuration)
	}
	setupDebugLogging(debugFlag || cfg.Debug)

	if cfg.Name == "" || cfg.Owner == "" || cfg.Repo == "" {
		return errors.NewConfigError(
			"project name, owner, and repo must be configured",
			fmt.Sprintf("set name, owner, and repo in %s", filepath.Join(repoFlag, config.ConfigDir, config.ConfigFile)),
		)
	}

	var target *semver.Version
	if len(args) == 1 {
		target, err = semver.NewVersion(args[0])
		if err != nil {
			return &errors.CLIError{
				Category: errors.Argument,
				Message:  fmt.Sprintf("%q is not a semantic version", args[0]),
				Usage:    "chronicle generate [version]",
				Err:      err,
			}
		}
	}

	stop := startSpinner(cmd, "Collecting changes...")
	section, err := buildSection(ctx, cfg, target)
	stop()
	if err != nil {
		return err
	}

	changelogPath := filepath.Join(repoFlag, cfg.Changelog)
	if dryRunFlag || target == nil {
		return printMerged(cmd, changelogPath, section)
	}

	if err := reconcileInto(changelogPath, section); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reconciled %s into %s\n", section.Version, cfg.Changelog)
	return nil
}

// buildSection resolves the comparison range, walks the project graph,
// and renders the new changelog section.
func buildSection(ctx context.Context, cfg *config.Config, target *semver.Version) (reconcile.Section, error) {
	client := github.NewClient(
		github.WithBaseURL(cfg.APIURL),
		github.WithToken(cfg.Token),
	)

	releases, err := client.ListReleases(ctx, cfg.Owner, cfg.Repo)
	if err != nil {
		return reconcile.Section{}, err
	}

	repo, err := gitrepo.OpenWithManifest(repoFlag, cfg.Manifest)
	if err != nil {
		return reconcile.Section{}, err
	}

	rng, err := release.ResolveRange(target, releases, repo.BranchExists, cfg.DevelopBranch)
	if err != nil {
		return reconcile.Section{}, err
	}

	acc := make(collect.Accumulator)
	collector := collect.New(client, cfg.Manifest, cfg.DevelopBranch)
	root := collect.Project{Name: cfg.Name, Owner: cfg.Owner, Repo: cfg.Repo, Path: repoFlag}
	if err := collector.Collect(ctx, root, acc, rng, cfg.Name, true); err != nil {
		return reconcile.Section{}, err
	}

	version := target
	if version == nil {
		version, err = nextPatchVersion(releases)
		if err != nil {
			return reconcile.Section{}, err
		}
	}

	opts := render.Options{Project: cfg.Name, Owner: cfg.Owner, Repo: cfg.Repo}
	if prev, err := semver.NewVersion(rng.From); err == nil && !prev.Equal(version) {
		opts.Previous = prev
	}

	text := render.Section(version, flatten(acc, cfg.Name), opts)
	return reconcile.Section{Version: version, Text: text}, nil
}

// flatten merges the per-project change lists into one render order:
// the root project first, then subprojects by name.
func flatten(acc collect.Accumulator, root string) []*changes.Change {
	names := make([]string, 0, len(acc))
	for name := range acc {
		if name != root {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	flat := append([]*changes.Change{}, acc[root]...)
	for _, name := range names {
		flat = append(flat, acc[name]...)
	}
	return flat
}

// nextPatchVersion derives the preview version for an unreleased range:
// the latest final release with its patch number bumped.
func nextPatchVersion(releases []release.Release) (*semver.Version, error) {
	for _, r := range releases {
		if r.Prerelease {
			continue
		}
		v, err := semver.NewVersion(r.Name)
		if err != nil {
			continue
		}
		next := v.IncPatch()
		return &next, nil
	}
	return nil, errors.NewNotFoundError(
		"no final release found to derive a preview version from",
		"pass an explicit target version to generate",
	)
}

// printMerged renders the would-be document to stdout. A missing
// changelog file previews the section alone.
func printMerged(cmd *cobra.Command, path string, section reconcile.Section) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprint(cmd.OutOrStdout(), section.Text)
			return nil
		}
		return fmt.Errorf("opening changelog %s: %w", path, err)
	}
	defer f.Close()

	merged, err := reconcile.Reconcile(f, section)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), merged)
	return nil
}

// reconcileInto merges the section into the changelog at path, seeding
// the file when it does not exist yet.
func reconcileInto(path string, section reconcile.Section) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return reconcile.WriteFile(path, section.Text)
	}
	return reconcile.ReconcileFile(path, section)
}

// startSpinner shows a progress spinner on interactive terminals. The
// returned stop function is safe to call unconditionally.
func startSpinner(cmd *cobra.Command, message string) func() {
	if !term.IsTerminal(int(os.Stderr.Fd())) || debugFlag {
		return func() {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = " " + message
	s.Start()
	return s.Stop
}
