package changes

import (
	"regexp"
	"strconv"
	"strings"
)

// typeLabels maps pull request labels to change types.
// Last matching label wins when a PR carries more than one.
var typeLabels = map[string]ChangeType{
	"X-Feature": TypeFeature,
	"X-Bugfix":  TypeBugfix,
	"X-Task":    TypeTask,
}

// breakingLabel marks a change as breaking independently of its type.
const breakingLabel = "X-Breaking-Change"

// noneValue in a notes line normalizes to "no changelog entry".
const noneValue = "none"

// closingVerbs matches the nine issue-closing verb spellings, optionally
// followed by a colon. Deliberately not anchored to line start so a line
// carrying several references appends several times.
const closingVerbs = `(?:close[sd]?|fix(?:e[sd])?|resolve[sd]?):?`

var (
	notesPattern        = regexp.MustCompile(`(?i)^notes:\s*(.*)$`)
	headlinePattern     = regexp.MustCompile(`(?i)^headlines:\s*(.*)$`)
	projectNotesPattern = regexp.MustCompile(`(?i)^([\w-]+) notes:\s*(.*)$`)
	bareIssuePattern    = regexp.MustCompile(`(?i)` + closingVerbs + `\s+#(\d+)`)
	repoIssuePattern    = regexp.MustCompile(`(?i)` + closingVerbs + `\s+([\w-]+)/([\w.-]+)#(\d+)`)
	urlIssuePattern     = regexp.MustCompile(`(?i)` + closingVerbs + `\s+https?://[^/\s]+/([\w-]+)/([\w.-]+)/issues/(\d+)`)
)

// Classify turns one raw pull request record into a structured Change.
// It is a pure function of the PR snapshot: malformed bodies degrade to
// "no structured signal found", never a failure. ShouldInclude is left
// for the graph walker to decide.
func Classify(pr PullRequestInfo) *Change {
	c := &Change{
		PR:             pr,
		Notes:          stringPtr(pr.Title),
		NotesByProject: make(map[string]*string),
	}

	for _, label := range pr.Labels {
		if t, ok := typeLabels[label]; ok {
			c.Type = t
		}
		if label == breakingLabel {
			c.Breaking = true
		}
	}

	if pr.Body == "" {
		return c
	}

	for _, line := range strings.Split(pr.Body, "\n") {
		classifyLine(c, strings.TrimSpace(line))
	}

	return c
}

// lineMatchers is the ordered list of per-line matchers. The first matcher
// that recognizes a line consumes it; later matchers are not tried.
var lineMatchers = []func(*Change, string) bool{
	matchNotes,
	matchHeadline,
	matchProjectNotes,
	matchBareIssue,
	matchRepoIssue,
	matchURLIssue,
}

func classifyLine(c *Change, line string) {
	for _, match := range lineMatchers {
		if match(c, line) {
			return
		}
	}
}

func matchNotes(c *Change, line string) bool {
	m := notesPattern.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	c.Notes = normalizeNote(m[1])
	return true
}

func matchHeadline(c *Change, line string) bool {
	m := headlinePattern.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	headline := strings.TrimSpace(m[1])
	c.Headline = &headline
	return true
}

func matchProjectNotes(c *Change, line string) bool {
	m := projectNotesPattern.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	c.NotesByProject[normalizeProjectKey(m[1])] = normalizeNote(m[2])
	return true
}

func matchBareIssue(c *Change, line string) bool {
	matches := bareIssuePattern.FindAllStringSubmatch(line, -1)
	if matches == nil {
		return false
	}
	for _, m := range matches {
		c.Fixes = append(c.Fixes, IssueRef{
			Owner:  c.PR.BaseOwner,
			Repo:   c.PR.BaseRepo,
			Number: mustAtoi(m[1]),
		})
	}
	return true
}

func matchRepoIssue(c *Change, line string) bool {
	matches := repoIssuePattern.FindAllStringSubmatch(line, -1)
	if matches == nil {
		return false
	}
	for _, m := range matches {
		c.Fixes = append(c.Fixes, IssueRef{
			Owner:  m[1],
			Repo:   m[2],
			Number: mustAtoi(m[3]),
		})
	}
	return true
}

func matchURLIssue(c *Change, line string) bool {
	matches := urlIssuePattern.FindAllStringSubmatch(line, -1)
	if matches == nil {
		return false
	}
	for _, m := range matches {
		c.Fixes = append(c.Fixes, IssueRef{
			Owner:  m[1],
			Repo:   m[2],
			Number: mustAtoi(m[3]),
		})
	}
	return true
}

// normalizeNote trims the captured note text and maps the literal value
// "none" (case-insensitive) to nil, the "deliberately excluded" state.
func normalizeNote(text string) *string {
	trimmed := strings.TrimSpace(text)
	if strings.EqualFold(trimmed, noneValue) {
		return nil
	}
	return &trimmed
}

func normalizeProjectKey(name string) string {
	return strings.ToLower(name)
}

func stringPtr(s string) *string {
	return &s
}

// mustAtoi converts digit-only regex captures; the patterns guarantee
// the input is numeric.
func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
