package acl

import "strings"

// domainMatchMode selects how a literal domain pattern is applied.
type domainMatchMode uint8

const (
	// domainMatchExact matches only the pattern itself.
	domainMatchExact domainMatchMode = iota
	// domainMatchWildcard treats '*' as "any byte sequence".
	domainMatchWildcard
	// domainMatchSuffix matches the base and anything under ".base".
	domainMatchSuffix
)

// domainMatcher matches a host name against one literal pattern.
type domainMatcher struct {
	pattern string
	// dotPattern is "." + pattern, precomputed so suffix matching does not
	// allocate per query.
	dotPattern string
	mode       domainMatchMode
}

// newDomainMatcher classifies a lowercase pattern: "suffix:" prefix means
// suffix mode, a '*' anywhere means wildcard, anything else is exact.
func newDomainMatcher(pattern string) *domainMatcher {
	pattern = strings.ToLower(pattern)
	if base, ok := strings.CutPrefix(pattern, "suffix:"); ok {
		return &domainMatcher{pattern: base, dotPattern: "." + base, mode: domainMatchSuffix}
	}
	if strings.ContainsRune(pattern, '*') {
		return &domainMatcher{pattern: pattern, mode: domainMatchWildcard}
	}
	return &domainMatcher{pattern: pattern, dotPattern: "." + pattern, mode: domainMatchExact}
}

// matchName matches an already-lowercased, non-empty host name.
func (d *domainMatcher) matchName(name string) bool {
	switch d.mode {
	case domainMatchWildcard:
		return wildcardMatch(name, d.pattern)
	case domainMatchSuffix:
		return name == d.pattern || strings.HasSuffix(name, d.dotPattern)
	default:
		return name == d.pattern
	}
}

// wildcardMatch reports whether s matches pattern, where '*' matches any
// byte sequence (including the empty one) and every other byte is literal.
//
// Iterative two-pointer scan with greedy backtracking: remember the last
// '*' and the input position it consumed to, and on mismatch rewind the
// pattern to just past that star while letting it swallow one more input
// byte. O(len(s)*len(p)) worst case, so patterns like "*a*b*c*d*e*" stay
// linear-ish instead of exponential.
func wildcardMatch(s, pattern string) bool {
	var si, pi int
	starPi := -1
	starSi := 0

	for si < len(s) {
		switch {
		case pi < len(pattern) && pattern[pi] == '*':
			starPi = pi
			starSi = si
			pi++
		case pi < len(pattern) && pattern[pi] == s[si]:
			si++
			pi++
		case starPi >= 0:
			starSi++
			si = starSi
			pi = starPi + 1
		default:
			return false
		}
	}

	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
