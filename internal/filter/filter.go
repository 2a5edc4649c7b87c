// Package filter builds content-filtered git trees.
//
// Filtering operates entirely against the object store: the source tree is
// walked, excluded entries are dropped, and the modified trees are written
// back as new content-addressed objects. The working directory is never read
// or written, so filtering the same tree with the same spec always yields the
// same tree hash.
package filter

import (
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Spec is the set of path exclusions applied when building a public tree.
// Ordering is preserved from the config file, though matching is order
// independent: a path is excluded if any entry matches it.
type Spec struct {
	// Literals are exact repository-relative paths. A literal naming a
	// directory removes the whole subtree. Absent paths are not errors.
	Literals []string

	// Globs are gitignore-style patterns matched against every path in the
	// tree. Zero matches is not an error.
	Globs []string
}

// Empty reports whether the spec excludes nothing.
func (s *Spec) Empty() bool {
	return len(s.Literals) == 0 && len(s.Globs) == 0
}

// matcher answers exclusion queries for clean slash-separated paths.
type matcher struct {
	literals map[string]bool
	patterns []gitignore.Pattern
}

func newMatcher(spec *Spec) *matcher {
	m := &matcher{
		literals: make(map[string]bool, len(spec.Literals)),
	}
	for _, lit := range spec.Literals {
		cleaned := path.Clean(strings.Trim(lit, "/"))
		if cleaned == "" || cleaned == "." {
			continue
		}
		m.literals[cleaned] = true
	}
	for _, glob := range spec.Globs {
		if strings.TrimSpace(glob) == "" {
			continue
		}
		m.patterns = append(m.patterns, gitignore.ParsePattern(glob, nil))
	}
	return m
}

// excluded reports whether the given repository-relative path matches any
// exclusion. isDir distinguishes tree entries from blobs for pattern
// matching.
func (m *matcher) excluded(p string, isDir bool) bool {
	if m.literals[p] {
		return true
	}
	if len(m.patterns) == 0 {
		return false
	}
	parts := strings.Split(p, "/")
	for _, pattern := range m.patterns {
		if pattern.Match(parts, isDir) == gitignore.Exclude {
			return true
		}
	}
	return false
}
