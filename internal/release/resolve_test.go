package release

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/changelog-tools/chronicle/internal/errors"
)

func mustVersion(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.NewVersion(s)
	require.NoError(t, err)
	return v
}

func noBranches(string) (bool, error) { return false, nil }

func branchSet(names ...string) BranchChecker {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) (bool, error) { return set[name], nil }
}

func TestResolveRange_NoTarget(t *testing.T) {
	releases := []Release{
		{Name: "v2.1.0-rc.1", Prerelease: true},
		{Name: "v2.0.0"},
		{Name: "v1.9.0"},
	}

	r, err := ResolveRange(nil, releases, noBranches, "develop")
	require.NoError(t, err)
	assert.Equal(t, Range{From: "v2.0.0", To: "develop", Mode: ModeDevelop}, r)
}

func TestResolveRange_NoTarget_NoFinalRelease(t *testing.T) {
	releases := []Release{{Name: "v1.0.0-rc.1", Prerelease: true}}

	_, err := ResolveRange(nil, releases, noBranches, "develop")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.NotFound))
}

func TestResolveRange_TargetInReleaseList(t *testing.T) {
	releases := []Release{
		{Name: "v2.1.0"},
		{Name: "v2.1.0-rc.2", Prerelease: true},
		{Name: "v2.0.0"},
		{Name: "v1.9.0"},
	}

	tests := map[string]struct {
		target   string
		expected Range
	}{
		"final target skips prereleases": {
			target:   "2.1.0",
			expected: Range{From: "v2.0.0", To: "v2.1.0", Mode: ModeExact},
		},
		"prerelease target accepts any prior": {
			target:   "2.1.0-rc.2",
			expected: Range{From: "v2.0.0", To: "v2.1.0-rc.2", Mode: ModeExact},
		},
		"older final target": {
			target:   "2.0.0",
			expected: Range{From: "v1.9.0", To: "v2.0.0", Mode: ModeExact},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r, err := ResolveRange(mustVersion(t, tt.target), releases, noBranches, "develop")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, r)
		})
	}
}

func TestResolveRange_PrereleasePrior(t *testing.T) {
	releases := []Release{
		{Name: "v2.1.0-rc.2", Prerelease: true},
		{Name: "v2.1.0-rc.1", Prerelease: true},
		{Name: "v2.0.0"},
	}

	r, err := ResolveRange(mustVersion(t, "2.1.0-rc.2"), releases, noBranches, "develop")
	require.NoError(t, err)
	assert.Equal(t, "v2.1.0-rc.1", r.From, "prerelease target compares against the nearest release of any kind")
}

func TestResolveRange_OldestRelease(t *testing.T) {
	releases := []Release{{Name: "v1.0.0"}}

	_, err := ResolveRange(mustVersion(t, "1.0.0"), releases, noBranches, "develop")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.NotFound))
}

func TestResolveRange_ReleaseBranch(t *testing.T) {
	releases := []Release{{Name: "v2.0.0"}}
	branches := branchSet("release-v2.1.0")

	r, err := ResolveRange(mustVersion(t, "2.1.0"), releases, branches, "develop")
	require.NoError(t, err)
	assert.Equal(t, Range{From: "v2.0.0", To: "release-v2.1.0", Mode: ModeRelease}, r)
}

func TestResolveRange_StagingBranch(t *testing.T) {
	releases := []Release{{Name: "v2.0.0"}}
	branches := branchSet("staging")

	r, err := ResolveRange(mustVersion(t, "2.1.0"), releases, branches, "develop")
	require.NoError(t, err)
	assert.Equal(t, Range{From: "v2.0.0", To: "staging", Mode: ModeRelease}, r)
}

func TestResolveRange_DevelopFallback(t *testing.T) {
	releases := []Release{
		{Name: "v2.1.0-rc.1", Prerelease: true},
		{Name: "v2.0.0"},
	}

	tests := map[string]struct {
		target       string
		expectedFrom string
	}{
		"final target ignores prerelease latest":   {target: "3.0.0", expectedFrom: "v2.0.0"},
		"prerelease target uses prerelease latest": {target: "3.0.0-rc.1", expectedFrom: "v2.1.0-rc.1"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r, err := ResolveRange(mustVersion(t, tt.target), releases, noBranches, "develop")
			require.NoError(t, err)
			assert.Equal(t, Range{From: tt.expectedFrom, To: "develop", Mode: ModeDevelop}, r)
		})
	}
}

func TestSubstituteEndpoint(t *testing.T) {
	pin := mustVersion(t, "1.4.0")

	tests := map[string]struct {
		mode     BranchMode
		branches BranchChecker
		expected string
	}{
		"exact uses literal pin":      {mode: ModeExact, branches: noBranches, expected: "1.4.0"},
		"develop uses develop branch": {mode: ModeDevelop, branches: branchSet("release-v1.4.0"), expected: "develop"},
		"release prefers release branch": {
			mode: ModeRelease, branches: branchSet("release-v1.4.0", "staging"), expected: "release-v1.4.0",
		},
		"release falls back to staging": {mode: ModeRelease, branches: branchSet("staging"), expected: "staging"},
		"release falls back to develop": {mode: ModeRelease, branches: noBranches, expected: "develop"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			endpoint, err := SubstituteEndpoint(pin, tt.mode, tt.branches, "develop")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, endpoint)
		})
	}
}

func TestReleaseBranchName(t *testing.T) {
	assert.Equal(t, "release-v2.1.0", ReleaseBranchName(mustVersion(t, "2.1.0")))
	assert.Equal(t, "release-v2.1.0", ReleaseBranchName(mustVersion(t, "2.1.0-rc.1")), "prerelease qualifier is dropped")
}
