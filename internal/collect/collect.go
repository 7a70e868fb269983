// Package collect walks a project and its declared subprojects depth
// first, resolving each one's comparison range, classifying its merged
// pull requests, and merging everything into a single per-project
// change set.
package collect

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/changelog-tools/chronicle/internal/changes"
	"github.com/changelog-tools/chronicle/internal/config"
	"github.com/changelog-tools/chronicle/internal/errors"
	"github.com/changelog-tools/chronicle/internal/github"
	"github.com/changelog-tools/chronicle/internal/gitrepo"
	"github.com/changelog-tools/chronicle/internal/release"
)

// Repository is the repository-facing collaborator surface the walker
// needs from an opened local clone.
type Repository interface {
	MergedPullRequests(fromRev, toRev string) ([]gitrepo.MergedPullRequest, error)
	BranchExists(name string) (bool, error)
	ManifestVersionAt(revision, dependency string) (string, error)
}

// RepoOpener opens the repository at a local path.
type RepoOpener func(path string) (Repository, error)

// PullRequestSource resolves pull request metadata for the merge refs
// observed in a revision walk.
type PullRequestSource interface {
	FetchPullRequests(ctx context.Context, owner, repo string, refs []github.MergeRef) ([]changes.PullRequestInfo, error)
}

// SubProjectLoader returns the subproject declarations of the repository
// at a local path. An absent or unreadable config yields an empty set.
type SubProjectLoader func(repoPath string) []config.SubProject

// Project identifies one repository in the project graph.
type Project struct {
	// Name keys the accumulator and addresses per-project notes.
	Name  string
	Owner string
	Repo  string
	// Path is the local clone, absolute or relative to the working
	// directory for the root and relative to the parent clone for
	// subprojects.
	Path string
}

// Accumulator holds one entry per visited project name. It is mutated
// by a single sequential walk; entries are never revisited.
type Accumulator map[string][]*changes.Change

// Collector drives the recursive walk. The walk is strictly sequential:
// the accumulator doubles as the re-entry guard, so no subproject is
// ever visited concurrently with another.
type Collector struct {
	Source      PullRequestSource
	OpenRepo    RepoOpener
	SubProjects SubProjectLoader
	// DevelopBranch is the integration branch substituted under
	// ModeDevelop. Empty means release.DefaultDevelopBranch.
	DevelopBranch string
}

// New returns a Collector wired to local git repositories and per-repo
// chronicle configs, with manifestName naming the dependency manifest
// read for subproject version pins.
func New(source PullRequestSource, manifestName, developBranch string) *Collector {
	return &Collector{
		Source: source,
		OpenRepo: func(path string) (Repository, error) {
			return gitrepo.OpenWithManifest(path, manifestName)
		},
		SubProjects:   config.LoadSubProjects,
		DevelopBranch: developBranch,
	}
}

// Collect visits project and every subproject reachable from it,
// depth first, merging classified changes into acc. The range and
// branch mode are the root resolution; subproject ranges are derived
// from dependency pins under the same mode. root names the project the
// changelog is generated for and never changes across the recursion.
//
// Any failure aborts the whole walk; acc must be discarded on error.
func (c *Collector) Collect(ctx context.Context, project Project, acc Accumulator, rng release.Range, root string, includeByDefault bool) error {
	if _, visited := acc[project.Name]; visited {
		return nil
	}

	repo, err := c.OpenRepo(project.Path)
	if err != nil {
		return err
	}
	return c.walk(ctx, project, repo, acc, rng, root, includeByDefault)
}

func (c *Collector) walk(ctx context.Context, project Project, repo Repository, acc Accumulator, rng release.Range, root string, includeByDefault bool) error {
	merged, err := repo.MergedPullRequests(rng.From, rng.To)
	if err != nil {
		return err
	}

	refs := make([]github.MergeRef, len(merged))
	for i, m := range merged {
		refs[i] = github.MergeRef{Number: m.Number, CommitHash: m.CommitHash}
	}

	prs, err := c.Source.FetchPullRequests(ctx, project.Owner, project.Repo, refs)
	if err != nil {
		return err
	}

	list := make([]*changes.Change, 0, len(prs))
	for _, pr := range prs {
		ch := changes.Classify(pr)
		ch.ShouldInclude = shouldInclude(ch, project.Name, root, includeByDefault)
		list = append(list, ch)
	}
	acc[project.Name] = list

	for _, sub := range c.SubProjects(project.Path) {
		if _, visited := acc[sub.Name]; visited {
			continue
		}

		subProject := Project{
			Name:  sub.Name,
			Owner: sub.Owner,
			Repo:  sub.Repo,
			Path:  filepath.Join(project.Path, sub.Path),
		}
		subRepo, err := c.OpenRepo(subProject.Path)
		if err != nil {
			return err
		}

		subRange, err := c.subprojectRange(repo, subRepo, sub, rng)
		if err != nil {
			return err
		}

		if err := c.walk(ctx, subProject, subRepo, acc, subRange, root, includeByDefault && sub.Included()); err != nil {
			return err
		}
	}
	return nil
}

// shouldInclude decides whether a classified change appears in the root
// project's changelog: a nil effective note always excludes, an explicit
// note addressed to the root or to the visited project always includes,
// and everything else inherits the caller's include-by-default policy.
func shouldInclude(ch *changes.Change, project, root string, includeByDefault bool) bool {
	switch {
	case ch.EffectiveNotes(project) == nil:
		return false
	case ch.HasNotesFor(root) || ch.HasNotesFor(project):
		return true
	default:
		return includeByDefault
	}
}

// subprojectRange derives a subproject's comparison range from the
// parent's. A mirror-versioned subproject reuses the parent's range
// verbatim; otherwise the parent's manifest is read at both endpoints
// and the "to" pin goes through the branch-mode substitution, since the
// parent's own "to" endpoint may itself be an unreleased branch.
func (c *Collector) subprojectRange(parent, sub Repository, cfg config.SubProject, parentRange release.Range) (release.Range, error) {
	if cfg.MirrorVersion {
		return parentRange, nil
	}

	dep := cfg.DependencyName()

	fromPin, err := parent.ManifestVersionAt(parentRange.From, dep)
	if err != nil {
		return release.Range{}, err
	}
	toPin, err := parent.ManifestVersionAt(parentRange.To, dep)
	if err != nil {
		return release.Range{}, err
	}

	// The lower bound must be an exact released version; ranges and
	// tag expressions are not supported there.
	if _, err := semver.StrictNewVersion(strings.TrimPrefix(fromPin, "v")); err != nil {
		return release.Range{}, errors.NewInvalidStateError(
			fmt.Sprintf("dependency %q is pinned to %q at %s, which is not a concrete version", dep, fromPin, parentRange.From),
			"pin the dependency to an exact released version in the manifest",
		)
	}

	toVersion, err := semver.NewVersion(toPin)
	if err != nil {
		return release.Range{}, errors.NewInvalidStateError(
			fmt.Sprintf("dependency %q is pinned to %q at %s, which does not parse as a version", dep, toPin, parentRange.To),
		)
	}

	to, err := release.SubstituteEndpoint(toVersion, parentRange.Mode, sub.BranchExists, c.DevelopBranch)
	if err != nil {
		return release.Range{}, err
	}

	return release.Range{From: fromPin, To: to, Mode: parentRange.Mode}, nil
}
