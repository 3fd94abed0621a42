// Package ignore matches directory paths against the ignored_folders
// configuration entries that filter both the initial reconciliation walk
// and live-event directory walks. Entries may be bare folder names
// ("node_modules"), gitignore-style directory patterns ("build/"),
// doublestar globs ("**/cache-*"), absolute path prefixes, or
// negations ("!keep-this") that re-include a path an earlier entry
// excluded.
package ignore

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type rule struct {
	pattern string
	negate  bool
	// anchored rules carry a path separator and match against the full
	// path; unanchored ones match any single path element.
	anchored bool
}

// Matcher evaluates a path against an ordered rule list; the last
// matching rule wins, so a negation can re-include what an earlier rule
// excluded.
type Matcher struct {
	rules []rule
}

// NewMatcher compiles the given patterns. Invalid or empty entries are
// dropped.
func NewMatcher(patterns ...string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		m.Add(p)
	}
	return m
}

// Add compiles one pattern into the rule list.
func (m *Matcher) Add(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	r := rule{}
	if strings.HasPrefix(pattern, "!") {
		r.negate = true
		pattern = pattern[1:]
	}
	pattern = strings.TrimSuffix(pattern, "/")
	if pattern == "" {
		return
	}
	pattern = filepath.ToSlash(pattern)
	r.anchored = strings.Contains(pattern, "/")
	r.pattern = pattern

	if !doublestar.ValidatePattern(r.pattern) {
		return
	}
	m.rules = append(m.rules, r)
}

// MatchDir reports whether the directory at path is ignored. path may be
// absolute or relative; matching is by path element for unanchored rules
// and by suffix-aligned full-path match for anchored ones.
func (m *Matcher) MatchDir(path string) bool {
	if len(m.rules) == 0 {
		return false
	}
	slashed := filepath.ToSlash(filepath.Clean(path))
	elems := strings.Split(strings.TrimPrefix(slashed, "/"), "/")

	ignored := false
	for _, r := range m.rules {
		if r.matches(slashed, elems) {
			ignored = !r.negate
		}
	}
	return ignored
}

func (r rule) matches(fullPath string, elems []string) bool {
	if r.anchored {
		if ok, _ := doublestar.Match(r.pattern, fullPath); ok {
			return true
		}
		// An anchored relative pattern like "vendor/cache" also matches
		// when it names a trailing segment of the walked path.
		if !strings.HasPrefix(r.pattern, "/") {
			if ok, _ := doublestar.Match("**/"+r.pattern, fullPath); ok {
				return true
			}
		}
		return false
	}
	for _, elem := range elems {
		if ok, _ := doublestar.Match(r.pattern, elem); ok {
			return true
		}
	}
	return false
}
