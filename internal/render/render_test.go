package render

import (
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/changelog-tools/chronicle/internal/changes"
)

func v(t *testing.T, s string) *semver.Version {
	t.Helper()
	ver, err := semver.NewVersion(s)
	require.NoError(t, err)
	return ver
}

func testOpts() Options {
	return Options{Project: "runtime", Owner: "acme", Repo: "runtime"}
}

func included(c *changes.Change) *changes.Change {
	c.ShouldInclude = true
	return c
}

func featureChange(number int, note string) *changes.Change {
	return included(&changes.Change{
		PR: changes.PullRequestInfo{
			Number:     number,
			URL:        "https://github.com/acme/runtime/pull/42",
			Author:     "octocat",
			AuthorRole: "MEMBER",
		},
		Notes: &note,
		Type:  changes.TypeFeature,
	})
}

func TestSection_HeaderAndUnderline(t *testing.T) {
	text := Section(v(t, "1.2.0"), nil, testOpts())
	lines := strings.Split(text, "\n")

	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "Changes in [1.2.0](https://github.com/acme/runtime/releases/tag/v1.2.0)", lines[0])
	assert.Equal(t, strings.Repeat("=", len(lines[0])), lines[1])
	assert.Equal(t, "", lines[2])
}

func TestSection_CompareLink(t *testing.T) {
	opts := testOpts()
	opts.Previous = v(t, "1.1.0")

	text := Section(v(t, "1.2.0"), nil, opts)
	assert.Contains(t, text, "https://github.com/acme/runtime/compare/v1.1.0...v1.2.0")
}

func TestSection_CategoryOrderAndPlacement(t *testing.T) {
	list := []*changes.Change{
		featureChange(1, "new feature"),
		included(&changes.Change{
			PR:    changes.PullRequestInfo{Number: 2, URL: "u", AuthorRole: "MEMBER"},
			Notes: ptr("bug gone"),
			Type:  changes.TypeBugfix,
		}),
		included(&changes.Change{
			PR:       changes.PullRequestInfo{Number: 3, URL: "u", AuthorRole: "MEMBER"},
			Notes:    ptr("broke the API"),
			Breaking: true,
		}),
		included(&changes.Change{
			PR:       changes.PullRequestInfo{Number: 4, URL: "u", AuthorRole: "MEMBER"},
			Notes:    ptr("patched CVE"),
			Security: true,
		}),
	}

	text := Section(v(t, "2.0.0"), list, testOpts())

	secIdx := strings.Index(text, "🔒 Security:")
	brkIdx := strings.Index(text, "💥 Breaking changes:")
	featIdx := strings.Index(text, "🚀 Features:")
	bugIdx := strings.Index(text, "🐛 Bug fixes:")

	require.True(t, secIdx >= 0 && brkIdx >= 0 && featIdx >= 0 && bugIdx >= 0)
	assert.Less(t, secIdx, brkIdx)
	assert.Less(t, brkIdx, featIdx)
	assert.Less(t, featIdx, bugIdx)
}

func TestSection_BreakingWithoutTypeRendersUnderBreakingOnly(t *testing.T) {
	list := []*changes.Change{
		included(&changes.Change{
			PR:       changes.PullRequestInfo{Number: 3, URL: "u", AuthorRole: "MEMBER"},
			Notes:    ptr("broke the API"),
			Breaking: true,
			Type:     changes.TypeUnset,
		}),
	}

	text := Section(v(t, "2.0.0"), list, testOpts())
	assert.Contains(t, text, "💥 Breaking changes:")
	assert.NotContains(t, text, "🚀 Features:")
	assert.NotContains(t, text, "🐛 Bug fixes:")
	assert.Contains(t, text, "broke the API")
}

func TestSection_ExcludedAndUncategorizedSkipped(t *testing.T) {
	excluded := featureChange(5, "never shown")
	excluded.ShouldInclude = false

	task := included(&changes.Change{
		PR:    changes.PullRequestInfo{Number: 6, URL: "u", AuthorRole: "MEMBER"},
		Notes: ptr("internal chore"),
		Type:  changes.TypeTask,
	})

	text := Section(v(t, "1.0.1"), []*changes.Change{excluded, task}, testOpts())
	assert.NotContains(t, text, "never shown")
	assert.NotContains(t, text, "internal chore")
}

func TestSection_PerProjectNoteOverride(t *testing.T) {
	c := featureChange(7, "default note")
	c.NotesByProject = map[string]*string{"runtime": ptr("runtime-specific note")}

	text := Section(v(t, "1.0.1"), []*changes.Change{c}, testOpts())
	assert.Contains(t, text, "runtime-specific note")
	assert.NotContains(t, text, "default note")
}

func TestBullet_FixesClause(t *testing.T) {
	one := changes.IssueRef{Owner: "acme", Repo: "runtime", Number: 1}
	two := changes.IssueRef{Owner: "other", Repo: "thing", Number: 2}
	three := changes.IssueRef{Owner: "acme", Repo: "runtime", Number: 3}

	tests := map[string]struct {
		fixes    []changes.IssueRef
		expected string
	}{
		"single": {
			fixes:    []changes.IssueRef{one},
			expected: "Fixes [#1](https://github.com/acme/runtime/issues/1)",
		},
		"pair": {
			fixes:    []changes.IssueRef{one, two},
			expected: "Fixes [#1](https://github.com/acme/runtime/issues/1) and [other/thing#2](https://github.com/other/thing/issues/2)",
		},
		"triple": {
			fixes:    []changes.IssueRef{one, two, three},
			expected: "[#1](https://github.com/acme/runtime/issues/1), [other/thing#2](https://github.com/other/thing/issues/2) and [#3](https://github.com/acme/runtime/issues/3)",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := featureChange(9, "fixing things")
			c.Fixes = tt.fixes
			text := Section(v(t, "1.0.1"), []*changes.Change{c}, testOpts())
			assert.Contains(t, text, tt.expected)
		})
	}
}

func TestBullet_ContributorAttribution(t *testing.T) {
	c := featureChange(10, "external contribution")
	c.PR.AuthorRole = "CONTRIBUTOR"
	c.PR.Author = "helpful-stranger"

	text := Section(v(t, "1.0.1"), []*changes.Change{c}, testOpts())
	assert.Contains(t, text, "Contributed by [@helpful-stranger](https://github.com/helpful-stranger)")

	// Members and owners get no attribution.
	for _, role := range []string{"MEMBER", "OWNER"} {
		c := featureChange(11, "insider change")
		c.PR.AuthorRole = role
		text := Section(v(t, "1.0.1"), []*changes.Change{c}, testOpts())
		assert.NotContains(t, text, "Contributed by")
	}
}

func TestEscapeMarkdown(t *testing.T) {
	tests := map[string]struct {
		in       string
		expected string
	}{
		"no asterisks":        {in: "plain text", expected: "plain text"},
		"balanced pair":       {in: "some *bold* text", expected: "some *bold* text"},
		"single unpaired":     {in: "broken * text", expected: `broken \* text`},
		"three asterisks":     {in: "a * b * c *", expected: `a \* b \* c \*`},
		"escaped not counted": {in: `already \* escaped`, expected: `already \* escaped`},
		"escaped plus odd":    {in: `keep \* then * more`, expected: `keep \* then \* more`},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EscapeMarkdown(tt.in))
		})
	}
}

func ptr(s string) *string { return &s }
