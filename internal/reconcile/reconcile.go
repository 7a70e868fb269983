// Package reconcile performs the idempotent, order-preserving in-place
// edit of an existing multi-version changelog document: parse it into
// version-tagged sections, integrate a newly rendered section exactly
// once, and swap the rewritten document into place atomically.
package reconcile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/changelog-tools/chronicle/internal/errors"
)

// sectionHeaderPattern recognizes a section header line. The captured
// version carries no leading "v".
var sectionHeaderPattern = regexp.MustCompile(`^Changes in \[([^\]]+)\]`)

// Section is one version-tagged block of the changelog document. Text is
// the verbatim section text including its header line, so pass-through
// writes reproduce the input exactly.
type Section struct {
	Version *semver.Version
	Text    string
}

// Document is a parsed changelog: preamble text before the first section
// header, then sections in document order (newest first by convention).
type Document struct {
	Preamble string
	Sections []Section
}

// Parse splits a changelog document into its preamble and sections.
// Header lines whose version does not parse as semver are treated as
// ordinary section content.
func Parse(r io.Reader) (*Document, error) {
	doc := &Document{}

	var current *Section
	var buf strings.Builder

	flush := func() {
		if current != nil {
			current.Text = buf.String()
			doc.Sections = append(doc.Sections, *current)
		} else {
			doc.Preamble = buf.String()
		}
		buf.Reset()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := sectionHeaderPattern.FindStringSubmatch(line); m != nil {
			if v, err := semver.NewVersion(m[1]); err == nil {
				flush()
				current = &Section{Version: v}
			}
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading changelog: %w", err)
	}
	flush()

	return doc, nil
}

// Merge integrates newSection into the document's section list exactly
// once. Sections are visited in document order (newest first):
//
//   - an equal version is replaced;
//   - a prerelease of the same major.minor.patch is dropped when the new
//     version is its final release (prerelease supersession);
//   - the new section is inserted immediately before the first older
//     section;
//   - newer sections pass through untouched.
//
// If the new section cannot be placed anywhere the merge fails with
// InvalidState: the format supports prepend, insert, and replace, never
// backfill before the oldest recorded entry.
func Merge(doc *Document, newSection Section) (*Document, error) {
	if newSection.Version == nil {
		return nil, errors.NewInvalidStateError("new changelog section has no version")
	}

	merged := &Document{Preamble: doc.Preamble}
	written := false

	for _, existing := range doc.Sections {
		switch {
		case existing.Version.Equal(newSection.Version):
			merged.Sections = append(merged.Sections, newSection)
			written = true

		case supersededBy(existing.Version, newSection.Version):
			if !written {
				merged.Sections = append(merged.Sections, newSection)
				written = true
			}
			// The superseded prerelease section is dropped.

		case existing.Version.LessThan(newSection.Version):
			if !written {
				merged.Sections = append(merged.Sections, newSection)
				written = true
			}
			merged.Sections = append(merged.Sections, existing)

		default:
			merged.Sections = append(merged.Sections, existing)
		}
	}

	if !written {
		return nil, errors.NewInvalidStateError(
			fmt.Sprintf("version %s could not be placed in the changelog", newSection.Version),
			"the target version must not be older than the oldest recorded entry",
			"seed the changelog with at least one section before reconciling",
		)
	}

	return merged, nil
}

// supersededBy reports whether existing is a prerelease of the exact same
// major.minor.patch as target, where target is itself a final release.
func supersededBy(existing, target *semver.Version) bool {
	if existing.Prerelease() == "" || target.Prerelease() != "" {
		return false
	}
	return existing.Major() == target.Major() &&
		existing.Minor() == target.Minor() &&
		existing.Patch() == target.Patch()
}

// Render serializes the document back to text. Pass-through sections
// reproduce their input verbatim.
func (d *Document) Render() string {
	var sb strings.Builder
	sb.WriteString(d.Preamble)
	for _, s := range d.Sections {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Reconcile parses the existing document, merges the new section, and
// returns the rewritten document text.
func Reconcile(existing io.Reader, newSection Section) (string, error) {
	doc, err := Parse(existing)
	if err != nil {
		return "", err
	}

	merged, err := Merge(doc, newSection)
	if err != nil {
		return "", err
	}
	return merged.Render(), nil
}

// ReconcileFile merges the new section into the changelog at path. The
// rewritten document is staged in a temporary file in the same directory
// and renamed into place, so a crash mid-write never leaves a truncated
// or half-merged changelog; on any failure before the swap the original
// file is untouched.
func ReconcileFile(path string, newSection Section) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening changelog %s: %w", path, err)
	}

	merged, err := Reconcile(f, newSection)
	f.Close()
	if err != nil {
		return err
	}

	return writeAtomic(path, merged)
}

// WriteFile writes a complete changelog document to path with the same
// temp-file-then-rename discipline ReconcileFile uses. Intended for
// seeding a changelog that does not exist yet.
func WriteFile(path, contents string) error {
	return writeAtomic(path, contents)
}

func writeAtomic(path, contents string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".changelog-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(contents); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temporary file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("swapping changelog into place: %w", err)
	}
	return nil
}
