package scanner

import (
	"path"
	"strings"
)

// IgnorePattern represents a single gitignore-style pattern from a
// .casesmithignore file.
type IgnorePattern struct {
	pattern     string
	isNegation  bool     // pattern starts with !
	isDirectory bool     // pattern ends with /
	isAnchored  bool     // pattern starts with / or contains an inner /
	segments    []string // lower-cased, split on /
}

// ParseIgnorePattern parses a gitignore-style pattern string.
func ParseIgnorePattern(pattern string) IgnorePattern {
	p := IgnorePattern{pattern: pattern}

	if strings.HasPrefix(pattern, "!") {
		p.isNegation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		p.isDirectory = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		p.isAnchored = true
		pattern = pattern[1:]
	} else if strings.Contains(pattern, "/") {
		p.isAnchored = true
	}

	p.segments = strings.Split(strings.ToLower(pattern), "/")
	return p
}

// IsNegation returns true if this pattern re-includes matching paths.
func (p IgnorePattern) IsNegation() bool {
	return p.isNegation
}

// Match reports whether the slash-separated relative path matches. isDir
// tells whether the path names a directory; directory patterns match the
// directory itself and everything below it.
func (p IgnorePattern) Match(relPath string, isDir bool) bool {
	segs := strings.Split(strings.ToLower(relPath), "/")

	if p.isAnchored {
		return p.matchFrom(segs, isDir)
	}
	for start := range segs {
		if p.matchFrom(segs[start:], isDir && start == len(segs)-1) {
			return true
		}
	}
	return false
}

// matchFrom matches the pattern segments against a prefix of segs.
func (p IgnorePattern) matchFrom(segs []string, isDir bool) bool {
	n, ok := matchSegments(p.segments, segs)
	if !ok {
		return false
	}
	if n == len(segs) {
		return !p.isDirectory || isDir
	}
	// The pattern matched an ancestor directory of the path.
	return true
}

// matchSegments returns how many path segments the pattern consumed.
func matchSegments(pattern, segs []string) (int, bool) {
	if len(pattern) == 0 {
		return 0, true
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if n, ok := matchSegments(pattern[1:], segs[i:]); ok {
				return i + n, true
			}
		}
		return 0, false
	}
	if len(segs) == 0 {
		return 0, false
	}
	if ok, err := path.Match(pattern[0], segs[0]); err != nil || !ok {
		return 0, false
	}
	n, ok := matchSegments(pattern[1:], segs[1:])
	return n + 1, ok
}

// ignoreSet evaluates patterns in order; later negations re-include.
type ignoreSet []IgnorePattern

func (s ignoreSet) Ignored(relPath string, isDir bool) bool {
	ignored := false
	for _, p := range s {
		if p.Match(relPath, isDir) {
			ignored = !p.IsNegation()
		}
	}
	return ignored
}
