// Package changes defines the classified change model and the classifier
// that extracts structured change facts from merged pull requests.
package changes

// ChangeType categorizes a change based on its pull request labels.
// The zero value TypeUnset means no recognized type label was present;
// it is never coerced to a default type.
type ChangeType string

const (
	TypeUnset   ChangeType = ""
	TypeFeature ChangeType = "feature"
	TypeBugfix  ChangeType = "bugfix"
	TypeTask    ChangeType = "task"
)

// IssueRef identifies an issue in any repository. Compared by structural
// equality only.
type IssueRef struct {
	Owner  string
	Repo   string
	Number int
}

// PullRequestInfo is an immutable snapshot of a merged pull request as
// delivered by the metadata source.
type PullRequestInfo struct {
	Number         int
	Title          string
	Body           string
	URL            string
	Author         string
	AuthorRole     string
	MergeCommitSHA string
	Labels         []string
	// BaseOwner and BaseRepo identify the repository the PR was merged
	// into; bare #N issue references default to this repository.
	BaseOwner string
	BaseRepo  string
}

// Change is one classified pull request.
//
// Notes carries the changelog entry text; nil means "deliberately
// excluded", which is distinct from "not yet classified" (a freshly
// classified change always starts from the PR title). NotesByProject
// holds per-subproject overrides keyed by lowercased project name.
type Change struct {
	PR             PullRequestInfo
	Notes          *string
	NotesByProject map[string]*string
	Headline       *string
	Type           ChangeType
	Fixes          []IssueRef
	Breaking       bool
	Security       bool
	// ShouldInclude is computed by the project graph walker after
	// classification; it is set exactly once and never mutated again.
	ShouldInclude bool
}

// EffectiveNotes returns the note text that applies for the given project:
// the per-project override when one exists, otherwise the default note.
// A nil return means the change is deliberately excluded for that project.
func (c *Change) EffectiveNotes(project string) *string {
	if note, ok := c.NotesByProject[normalizeProjectKey(project)]; ok {
		return note
	}
	return c.Notes
}

// HasNotesFor reports whether the change carries an explicit, non-nil note
// addressed to the given project.
func (c *Change) HasNotesFor(project string) bool {
	note, ok := c.NotesByProject[normalizeProjectKey(project)]
	return ok && note != nil
}
