package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/changelog-tools/chronicle/internal/changes"
	"github.com/changelog-tools/chronicle/internal/collect"
	"github.com/changelog-tools/chronicle/internal/errors"
	"github.com/changelog-tools/chronicle/internal/release"
)

func TestGenerateCmdFlags(t *testing.T) {
	flag := generateCmd.Flags().Lookup("dry-run")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestFlatten_RootProjectFirst(t *testing.T) {
	rootChange := &changes.Change{PR: changes.PullRequestInfo{Number: 1}}
	alpha := &changes.Change{PR: changes.PullRequestInfo{Number: 2}}
	zeta := &changes.Change{PR: changes.PullRequestInfo{Number: 3}}

	acc := collect.Accumulator{
		"zeta":  {zeta},
		"myapp": {rootChange},
		"alpha": {alpha},
	}

	flat := flatten(acc, "myapp")
	require.Len(t, flat, 3)
	assert.Equal(t, 1, flat[0].PR.Number, "root project changes come first")
	assert.Equal(t, 2, flat[1].PR.Number, "subprojects follow in name order")
	assert.Equal(t, 3, flat[2].PR.Number)
}

func TestNextPatchVersion(t *testing.T) {
	tests := map[string]struct {
		releases []release.Release
		expected string
		wantErr  bool
	}{
		"bumps the latest final": {
			releases: []release.Release{{Name: "v1.2.3"}, {Name: "v1.2.2"}},
			expected: "1.2.4",
		},
		"skips prereleases": {
			releases: []release.Release{{Name: "v1.3.0-rc.1", Prerelease: true}, {Name: "v1.2.0"}},
			expected: "1.2.1",
		},
		"skips unparseable names": {
			releases: []release.Release{{Name: "nightly"}, {Name: "1.0.0"}},
			expected: "1.0.1",
		},
		"no final release": {
			releases: []release.Release{{Name: "v1.0.0-beta", Prerelease: true}},
			wantErr:  true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			v, err := nextPatchVersion(tt.releases)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, errors.NotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v.String())
		})
	}
}
