// Package wildmat implements the wildmat pattern language used by
// LIST, NEWNEWS, NEWGROUPS and XPAT, plus NNTP article range parsing.
package wildmat

import (
	"strings"
)

// Match evaluates a comma-separated wildmat against a name.
// Patterns are checked left to right and the last pattern that applies
// wins. A leading '!' inverts the pattern: "!p" applies to exactly the
// names p does not match. '*' matches a run of one or more characters,
// '?' a single character and '[a-z]' a character class.
func Match(name, wildmat string) bool {
	matched := false
	for _, pat := range strings.Split(wildmat, ",") {
		pat = strings.TrimSpace(pat)
		if pat == "" {
			continue
		}
		if strings.HasPrefix(pat, "!") {
			if matchGlob(name, pat[1:], 0, 0) {
				matched = false
			} else {
				matched = true
			}
			continue
		}
		if matchGlob(name, pat, 0, 0) {
			matched = true
		}
	}
	return matched
}

// MatchAny reports whether any of the given wildmats matches the name.
func MatchAny(name string, wildmats []string) bool {
	for _, wm := range wildmats {
		if Match(name, wm) {
			return true
		}
	}
	return false
}

// matchGlob is the recursive matcher, extended from plain '*'/'?'
// wildcards with '[set]' character classes.
func matchGlob(text, pattern string, textIdx, patternIdx int) bool {
	if patternIdx == len(pattern) {
		return textIdx == len(text)
	}

	switch pattern[patternIdx] {
	case '*':
		// A run is at least one character.
		for i := textIdx + 1; i <= len(text); i++ {
			if matchGlob(text, pattern, i, patternIdx+1) {
				return true
			}
		}
		return false

	case '?':
		if textIdx == len(text) {
			return false
		}
		return matchGlob(text, pattern, textIdx+1, patternIdx+1)

	case '[':
		if textIdx == len(text) {
			return false
		}
		end := strings.IndexByte(pattern[patternIdx:], ']')
		if end <= 1 {
			// Malformed class, treat '[' as a literal.
			if pattern[patternIdx] != text[textIdx] {
				return false
			}
			return matchGlob(text, pattern, textIdx+1, patternIdx+1)
		}
		set := pattern[patternIdx+1 : patternIdx+end]
		if !classContains(set, text[textIdx]) {
			return false
		}
		return matchGlob(text, pattern, textIdx+1, patternIdx+end+1)

	default:
		if textIdx == len(text) || pattern[patternIdx] != text[textIdx] {
			return false
		}
		return matchGlob(text, pattern, textIdx+1, patternIdx+1)
	}
}

// classContains checks a character against a class body like "abc" or "a-z0-9".
func classContains(set string, ch byte) bool {
	for i := 0; i < len(set); i++ {
		if i+2 < len(set) && set[i+1] == '-' {
			if ch >= set[i] && ch <= set[i+2] {
				return true
			}
			i += 2
			continue
		}
		if set[i] == ch {
			return true
		}
	}
	return false
}
