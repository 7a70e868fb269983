// Package gitrepo provides the repository-facing collaborators: walking
// merge-introducing revisions between two named revisions, branch
// existence checks, and reading dependency manifests at a revision.
// It uses the go-git library so no git CLI installation is required.
package gitrepo

import (
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"gopkg.in/yaml.v3"
)

// debugLogger is a function that logs debug messages when debug mode is
// enabled. By default it is a no-op. Set it via SetDebugLogger.
var debugLogger func(format string, args ...any)

// SetDebugLogger configures the debug logger for repository operations.
// Pass nil to disable debug logging.
func SetDebugLogger(logger func(format string, args ...any)) {
	debugLogger = logger
}

func logDebug(format string, args ...any) {
	if debugLogger != nil {
		debugLogger(format, args...)
	}
}

// DefaultManifestName is the dependency manifest read at a revision when
// the project config does not name one.
const DefaultManifestName = "project.yml"

// MergedPullRequest is one pull request whose merge introduced commits in
// a revision range.
type MergedPullRequest struct {
	Number     int
	CommitHash string
}

// Repo wraps a local git repository path.
type Repo struct {
	repo         *git.Repository
	manifestName string
}

// Open opens the git repository at path, traversing up the directory tree
// to find the repository root.
func Open(path string) (*Repo, error) {
	return OpenWithManifest(path, DefaultManifestName)
}

// OpenWithManifest opens the repository with a custom manifest file name.
func OpenWithManifest(path, manifestName string) (*Repo, error) {
	logDebug("[gitrepo] opening repository at %s", path)

	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}

	if manifestName == "" {
		manifestName = DefaultManifestName
	}
	return &Repo{repo: repo, manifestName: manifestName}, nil
}

var (
	// Explicit merge commits produced by the merge button.
	mergeSubjectPattern = regexp.MustCompile(`^Merge pull request #(\d+)`)
	// Squash merges carry the PR number as a subject suffix.
	squashSubjectPattern = regexp.MustCompile(`\(#(\d+)\)\s*$`)
)

// MergedPullRequests returns the pull requests whose merge introduced
// commits reachable from toRev but not from fromRev, newest first.
// Both explicit merge commits and squash-merge subjects are detected.
func (r *Repo) MergedPullRequests(fromRev, toRev string) ([]MergedPullRequest, error) {
	fromHash, err := r.resolveRevision(fromRev)
	if err != nil {
		return nil, err
	}
	toHash, err := r.resolveRevision(toRev)
	if err != nil {
		return nil, err
	}

	logDebug("[gitrepo] walking %s (%s) .. %s (%s)", fromRev, fromHash, toRev, toHash)

	excluded, err := r.ancestorSet(fromHash)
	if err != nil {
		return nil, fmt.Errorf("collecting ancestors of %s: %w", fromRev, err)
	}

	toCommit, err := r.repo.CommitObject(toHash)
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", toHash, err)
	}

	var merged []MergedPullRequest
	iter := object.NewCommitPreorderIter(toCommit, excluded, nil)
	err = iter.ForEach(func(c *object.Commit) error {
		if number, ok := pullRequestNumber(c); ok {
			merged = append(merged, MergedPullRequest{
				Number:     number,
				CommitHash: c.Hash.String(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking commits: %w", err)
	}

	logDebug("[gitrepo] found %d merge-introducing commits", len(merged))
	return merged, nil
}

// pullRequestNumber extracts a PR number from a commit. Merge commits are
// matched on the "Merge pull request #N" subject; single-parent commits
// are matched on the squash-merge "(#N)" subject suffix.
func pullRequestNumber(c *object.Commit) (int, bool) {
	subject := commitSubject(c)

	if c.NumParents() > 1 {
		if m := mergeSubjectPattern.FindStringSubmatch(subject); m != nil {
			return mustAtoi(m[1]), true
		}
		return 0, false
	}

	if m := squashSubjectPattern.FindStringSubmatch(subject); m != nil {
		return mustAtoi(m[1]), true
	}
	return 0, false
}

func commitSubject(c *object.Commit) string {
	message := c.Message
	for i := 0; i < len(message); i++ {
		if message[i] == '\n' {
			return message[:i]
		}
	}
	return message
}

// ancestorSet collects every commit reachable from the given hash into a
// seen map, so the range walk can exclude them.
func (r *Repo) ancestorSet(hash plumbing.Hash) (map[plumbing.Hash]bool, error) {
	start, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, err
	}

	seen := make(map[plumbing.Hash]bool)
	iter := object.NewCommitPreorderIter(start, nil, nil)
	err = iter.ForEach(func(c *object.Commit) error {
		seen[c.Hash] = true
		return nil
	})
	if err != nil && err != io.EOF {
		return nil, err
	}
	return seen, nil
}

// resolveRevision resolves a named revision (tag, branch, or remote ref)
// to a commit hash. Version-like names are retried with a "v" prefix and
// branch names with an "origin/" prefix, so callers can pass bare version
// strings and branch names interchangeably.
func (r *Repo) resolveRevision(name string) (plumbing.Hash, error) {
	candidates := []string{name, "v" + name, "origin/" + name}

	var lastErr error
	for _, candidate := range candidates {
		hash, err := r.repo.ResolveRevision(plumbing.Revision(candidate))
		if err == nil {
			return *hash, nil
		}
		lastErr = err
	}
	return plumbing.ZeroHash, fmt.Errorf("resolving revision %q: %w", name, lastErr)
}

// BranchExists reports whether a local or origin-tracking branch with the
// given name exists.
func (r *Repo) BranchExists(name string) (bool, error) {
	refs := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(name),
		plumbing.NewRemoteReferenceName("origin", name),
	}

	for _, ref := range refs {
		_, err := r.repo.Reference(ref, true)
		if err == nil {
			logDebug("[gitrepo] branch %s exists as %s", name, ref)
			return true, nil
		}
		if err != plumbing.ErrReferenceNotFound {
			return false, fmt.Errorf("checking branch %s: %w", name, err)
		}
	}
	return false, nil
}

// manifest is the dependency manifest schema read at a revision.
type manifest struct {
	Dependencies map[string]string `yaml:"dependencies"`
}

// ManifestVersionAt reads the version pin of a dependency from the
// project manifest as it existed at the given revision.
func (r *Repo) ManifestVersionAt(revision, dependency string) (string, error) {
	hash, err := r.resolveRevision(revision)
	if err != nil {
		return "", err
	}

	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return "", fmt.Errorf("reading commit %s: %w", hash, err)
	}

	file, err := commit.File(r.manifestName)
	if err != nil {
		return "", fmt.Errorf("reading %s at %s: %w", r.manifestName, revision, err)
	}

	contents, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("reading %s contents: %w", r.manifestName, err)
	}

	var m manifest
	if err := yaml.Unmarshal([]byte(contents), &m); err != nil {
		return "", fmt.Errorf("parsing %s at %s: %w", r.manifestName, revision, err)
	}

	pin, ok := m.Dependencies[dependency]
	if !ok {
		return "", fmt.Errorf("dependency %q not found in %s at %s", dependency, r.manifestName, revision)
	}

	logDebug("[gitrepo] %s pinned to %s at %s", dependency, pin, revision)
	return pin, nil
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
