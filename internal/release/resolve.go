// Package release decides which revision range corresponds to "the same
// logical release" for a target version, under three branching postures.
package release

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/changelog-tools/chronicle/internal/errors"
)

// BranchMode describes how comparison endpoints are derived from a target
// version. The mode is decided once at the root project and propagated
// unchanged through the whole recursive walk.
type BranchMode int

const (
	// ModeExact compares against the literal version pin.
	ModeExact BranchMode = iota
	// ModeRelease substitutes a conventionally named release branch
	// (release-v{major}.{minor}.{patch}) or the shared staging branch.
	ModeRelease
	// ModeDevelop substitutes the default integration branch.
	ModeDevelop
)

func (m BranchMode) String() string {
	switch m {
	case ModeExact:
		return "exact"
	case ModeRelease:
		return "release"
	case ModeDevelop:
		return "develop"
	default:
		return "unknown"
	}
}

// StagingBranch is the shared staging branch checked when no per-version
// release branch exists.
const StagingBranch = "staging"

// DefaultDevelopBranch is the conventional integration branch name.
const DefaultDevelopBranch = "develop"

// Release is one entry of a release list as delivered by the release
// source, newest first. The resolver never re-sorts the list; its order
// is an implicit precondition.
type Release struct {
	Name       string
	Prerelease bool
}

// Range is a comparison revision range between two named revisions,
// resolved lazily by whichever collaborator can reach the repository.
type Range struct {
	From string
	To   string
	Mode BranchMode
}

// BranchChecker reports whether a named branch exists in the repository
// under resolution.
type BranchChecker func(name string) (bool, error)

// ReleaseBranchName returns the conventional release branch name for a
// version, e.g. release-v1.2.0.
func ReleaseBranchName(v *semver.Version) string {
	return fmt.Sprintf("release-v%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

// ResolveRange decides the comparison range and branch mode for a target
// version. A nil target means "no target given": the range runs from the
// latest non-prerelease release to the develop branch.
func ResolveRange(target *semver.Version, releases []Release, branches BranchChecker, developBranch string) (Range, error) {
	if developBranch == "" {
		developBranch = DefaultDevelopBranch
	}

	if target == nil {
		from, err := latestRelease(releases, false)
		if err != nil {
			return Range{}, err
		}
		return Range{From: from.Name, To: developBranch, Mode: ModeDevelop}, nil
	}

	if i, ok := findRelease(releases, target); ok {
		from, err := priorRelease(releases, i, target.Prerelease() != "")
		if err != nil {
			return Range{}, err
		}
		return Range{From: from.Name, To: releases[i].Name, Mode: ModeExact}, nil
	}

	from, err := latestRelease(releases, target.Prerelease() != "")
	if err != nil {
		return Range{}, err
	}

	to, mode, err := releaseEndpoint(target, branches, developBranch)
	if err != nil {
		return Range{}, err
	}
	return Range{From: from.Name, To: to, Mode: mode}, nil
}

// SubstituteEndpoint derives the comparison endpoint for a version pin
// under an already-decided branch mode. It shares releaseEndpoint with
// ResolveRange so the two call sites cannot drift apart.
func SubstituteEndpoint(pin *semver.Version, mode BranchMode, branches BranchChecker, developBranch string) (string, error) {
	if developBranch == "" {
		developBranch = DefaultDevelopBranch
	}

	switch mode {
	case ModeExact:
		return pin.Original(), nil
	case ModeDevelop:
		return developBranch, nil
	case ModeRelease:
		endpoint, _, err := releaseEndpoint(pin, branches, developBranch)
		return endpoint, err
	default:
		return "", errors.NewInvalidStateError(fmt.Sprintf("unknown branch mode %d", mode))
	}
}

// releaseEndpoint applies the branch substitution rules: a per-version
// release branch wins, the staging branch is checked only when the
// release branch is absent, and the develop branch is the final fallback.
func releaseEndpoint(v *semver.Version, branches BranchChecker, developBranch string) (string, BranchMode, error) {
	releaseBranch := ReleaseBranchName(v)

	exists, err := branches(releaseBranch)
	if err != nil {
		return "", 0, fmt.Errorf("checking branch %s: %w", releaseBranch, err)
	}
	if exists {
		return releaseBranch, ModeRelease, nil
	}

	exists, err = branches(StagingBranch)
	if err != nil {
		return "", 0, fmt.Errorf("checking branch %s: %w", StagingBranch, err)
	}
	if exists {
		return StagingBranch, ModeRelease, nil
	}

	return developBranch, ModeDevelop, nil
}

// findRelease locates the target version in the release list.
// Release names that do not parse as semantic versions are skipped.
func findRelease(releases []Release, target *semver.Version) (int, bool) {
	for i, r := range releases {
		v, err := semver.NewVersion(r.Name)
		if err != nil {
			continue
		}
		if v.Equal(target) {
			return i, true
		}
	}
	return 0, false
}

// priorRelease returns the nearest release after index i in list order.
// When the target is a final version only non-prerelease releases
// qualify; a prerelease target accepts any release.
func priorRelease(releases []Release, i int, includePrereleases bool) (Release, error) {
	for _, r := range releases[i+1:] {
		if includePrereleases || !r.Prerelease {
			return r, nil
		}
	}
	return Release{}, errors.NewNotFoundError(
		fmt.Sprintf("no release prior to %s to compare against", releases[i].Name),
		"the target version must not be the oldest recorded release",
	)
}

// latestRelease returns the newest qualifying release in list order.
func latestRelease(releases []Release, includePrereleases bool) (Release, error) {
	for _, r := range releases {
		if includePrereleases || !r.Prerelease {
			return r, nil
		}
	}
	return Release{}, errors.NewNotFoundError(
		"no qualifying release found in the release list",
		"publish at least one release before generating a changelog",
	)
}
