// Package protectedfiles maintains the fixed set of filenames the gate
// always treats as sensitive (credentials, local config) plus an
// inode-keyed cache so a file is still caught even if it's referenced
// through a different path than the one it was first seen at.
//
// Maps to: the teacher's internal/execsession.Store for the
// mutex-guarded-map-with-explicit-lifecycle-methods shape.
package protectedfiles

import "strings"

// exactBasenames are matched against a path's final component verbatim.
var exactBasenames = map[string]bool{
	"ralph.config.json": true,
	".env":              true,
}

// prefixBasenames are matched as a prefix of the final path component.
var prefixBasenames = []string{
	".env.",
}

// fullPathGlobs use "**/" to mean "zero or more directory components",
// with the remainder matched literally or via a single-level glob.
var fullPathGlobs = []string{
	"**/ralph.config.json",
	"**/.env",
	"**/.env.*",
	"**/.ralph/config.json",
}

// matchesBasename reports whether name (already lowercased on Windows by
// the caller) hits the fixed exact/prefix basename lists.
func matchesBasename(name string) bool {
	if exactBasenames[name] {
		return true
	}
	for _, prefix := range prefixBasenames {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// matchesFullPathGlob reports whether normalizedPath (forward-slashed,
// already case-folded on Windows) matches any of the fixed "**/"-style
// globs.
func matchesFullPathGlob(normalizedPath string) bool {
	for _, pattern := range fullPathGlobs {
		if globMatch(pattern, normalizedPath) {
			return true
		}
	}
	return false
}

// globMatch implements the restricted glob grammar spec.md §4.3 needs:
// a pattern is a sequence of "**/"-prefixed-or-not path segments, where
// "**/" itself means "zero or more directory components" and every other
// segment is matched with a single-level "*" wildcard (path.Match-style,
// but scoped to one path segment at a time since standard filepath.Match
// treats "/" specially only on some platforms).
func globMatch(pattern, path string) bool {
	pSegs := strings.Split(pattern, "/")
	tSegs := strings.Split(path, "/")
	return matchSegs(pSegs, tSegs)
}

func matchSegs(pSegs, tSegs []string) bool {
	for len(pSegs) > 0 {
		seg := pSegs[0]
		if seg == "**" {
			// "**" consumes zero or more path segments; try every split
			// point greedily from zero upward.
			rest := pSegs[1:]
			for skip := 0; skip <= len(tSegs); skip++ {
				if matchSegs(rest, tSegs[skip:]) {
					return true
				}
			}
			return false
		}
		if len(tSegs) == 0 {
			return false
		}
		if !segMatch(seg, tSegs[0]) {
			return false
		}
		pSegs = pSegs[1:]
		tSegs = tSegs[1:]
	}
	return len(tSegs) == 0
}

// segMatch matches one path segment against a pattern segment that may
// contain "*" wildcards (no "/" within a segment by construction).
func segMatch(pattern, name string) bool {
	if pattern == name {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}
	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	rest := name[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	return strings.HasSuffix(rest, parts[len(parts)-1])
}
