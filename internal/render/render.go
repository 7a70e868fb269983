// Package render turns a filtered set of classified changes into one
// changelog section in the persisted document format.
package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Masterminds/semver/v3"

	"github.com/changelog-tools/chronicle/internal/changes"
)

// Category headings, rendered in this fixed order.
const (
	headingSecurity = "🔒 Security:"
	headingBreaking = "💥 Breaking changes:"
	headingFeatures = "🚀 Features:"
	headingBugfixes = "🐛 Bug fixes:"
)

// Options controls link rendering and per-project note selection.
type Options struct {
	// Project is the name changes are rendered for; per-project note
	// overrides addressed to it take precedence over default notes.
	Project string
	// Owner and Repo locate the repository for header and issue links.
	Owner string
	Repo  string
	// Previous, when set, renders the header link as a compare URL
	// against this version instead of a tag URL.
	Previous *semver.Version
}

// Section renders one complete changelog section for the given version:
// header line, "=" underline, and the non-empty category blocks in fixed
// order. Changes with ShouldInclude unset are skipped.
func Section(version *semver.Version, list []*changes.Change, opts Options) string {
	var sb strings.Builder

	header := sectionHeader(version, opts)
	sb.WriteString(header + "\n")
	sb.WriteString(strings.Repeat("=", utf8.RuneCountInString(header)) + "\n\n")

	blocks := []struct {
		heading string
		entries []*changes.Change
	}{
		{headingSecurity, filterCategory(list, categorySecurity)},
		{headingBreaking, filterCategory(list, categoryBreaking)},
		{headingFeatures, filterCategory(list, categoryFeatures)},
		{headingBugfixes, filterCategory(list, categoryBugfixes)},
	}

	for _, block := range blocks {
		if len(block.entries) == 0 {
			continue
		}
		sb.WriteString(block.heading + "\n\n")
		for _, c := range block.entries {
			sb.WriteString(bullet(c, opts) + "\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func sectionHeader(version *semver.Version, opts Options) string {
	url := fmt.Sprintf("https://github.com/%s/%s/releases/tag/v%s", opts.Owner, opts.Repo, version)
	if opts.Previous != nil {
		url = fmt.Sprintf("https://github.com/%s/%s/compare/v%s...v%s", opts.Owner, opts.Repo, opts.Previous, version)
	}
	return fmt.Sprintf("Changes in [%s](%s)", version, url)
}

// category is the single section a change is placed under. Security wins
// over breaking, breaking over the label-derived type; a change with no
// recognized category is not rendered.
type category int

const (
	categoryNone category = iota
	categorySecurity
	categoryBreaking
	categoryFeatures
	categoryBugfixes
)

func categorize(c *changes.Change) category {
	switch {
	case c.Security:
		return categorySecurity
	case c.Breaking:
		return categoryBreaking
	case c.Type == changes.TypeFeature:
		return categoryFeatures
	case c.Type == changes.TypeBugfix:
		return categoryBugfixes
	default:
		return categoryNone
	}
}

func filterCategory(list []*changes.Change, want category) []*changes.Change {
	var out []*changes.Change
	for _, c := range list {
		if c.ShouldInclude && categorize(c) == want {
			out = append(out, c)
		}
	}
	return out
}

// bullet renders one change: escaped note text, PR link, optional Fixes
// clause, optional contributor attribution.
func bullet(c *changes.Change, opts Options) string {
	note := c.EffectiveNotes(opts.Project)
	text := ""
	if note != nil {
		text = EscapeMarkdown(*note)
	}

	var sb strings.Builder
	sb.WriteString("- ")
	sb.WriteString(text)
	sb.WriteString(fmt.Sprintf(" ([#%d](%s))", c.PR.Number, c.PR.URL))

	if len(c.Fixes) > 0 {
		sb.WriteString(". Fixes ")
		sb.WriteString(fixesClause(c.Fixes, opts))
	}

	if attribution := contributorAttribution(c); attribution != "" {
		sb.WriteString(". ")
		sb.WriteString(attribution)
	}

	return sb.String()
}

// fixesClause joins issue references with natural-language conjunctions:
// "a", "a and b", "a, b and c".
func fixesClause(refs []changes.IssueRef, opts Options) string {
	links := make([]string, len(refs))
	for i, ref := range refs {
		links[i] = issueLink(ref, opts)
	}

	switch len(links) {
	case 1:
		return links[0]
	case 2:
		return links[0] + " and " + links[1]
	default:
		return strings.Join(links[:len(links)-1], ", ") + " and " + links[len(links)-1]
	}
}

func issueLink(ref changes.IssueRef, opts Options) string {
	url := fmt.Sprintf("https://github.com/%s/%s/issues/%d", ref.Owner, ref.Repo, ref.Number)
	if ref.Owner == opts.Owner && ref.Repo == opts.Repo {
		return fmt.Sprintf("[#%d](%s)", ref.Number, url)
	}
	return fmt.Sprintf("[%s/%s#%d](%s)", ref.Owner, ref.Repo, ref.Number, url)
}

// memberRoles are author associations that do not get contributor
// attribution.
var memberRoles = map[string]bool{
	"MEMBER": true,
	"OWNER":  true,
}

func contributorAttribution(c *changes.Change) string {
	if c.PR.Author == "" || memberRoles[c.PR.AuthorRole] {
		return ""
	}
	return fmt.Sprintf("Contributed by [@%s](https://github.com/%s)", c.PR.Author, c.PR.Author)
}

// EscapeMarkdown keeps unpaired asterisks from corrupting rendering: it
// counts unescaped '*' occurrences and escapes all of them only when the
// count is odd. A heuristic, not a general sanitizer; other special
// characters are out of scope.
func EscapeMarkdown(text string) string {
	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '*' && !escapedAt(text, i) {
			count++
		}
	}
	if count%2 == 0 {
		return text
	}

	var sb strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] == '*' && !escapedAt(text, i) {
			sb.WriteString(`\*`)
			continue
		}
		sb.WriteByte(text[i])
	}
	return sb.String()
}

func escapedAt(text string, i int) bool {
	return i > 0 && text[i-1] == '\\'
}
