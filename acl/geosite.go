package acl

import (
	"regexp"
	"strings"

	"github.com/xxxsen/aclengine/acl/trie"
)

// DomainEntryType is the pattern kind of one geosite entry.
type DomainEntryType uint8

const (
	// DomainPlain is a substring match.
	DomainPlain DomainEntryType = iota
	// DomainRegex is a regular-expression match.
	DomainRegex
	// DomainRoot matches the domain and every subdomain.
	DomainRoot
	// DomainFull matches the domain exactly.
	DomainFull
)

// DomainEntry is one geosite domain record, as handed over by a loader.
type DomainEntry struct {
	Type  DomainEntryType
	Value string
	// Regex is the compiled pattern for DomainRegex entries.
	Regex *regexp.Regexp
	// Attributes are the entry's tags, e.g. {"cn": ""}. An empty value is
	// a bare tag.
	Attributes map[string]string
}

// NewPlainEntry builds a substring entry.
func NewPlainEntry(value string) *DomainEntry {
	return &DomainEntry{Type: DomainPlain, Value: strings.ToLower(value)}
}

// NewRegexEntry compiles and wraps a regex entry.
func NewRegexEntry(pattern string) (*DomainEntry, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &DomainEntry{Type: DomainRegex, Value: pattern, Regex: re}, nil
}

// NewRootEntry builds a root-domain entry (base plus subdomains).
func NewRootEntry(value string) *DomainEntry {
	return &DomainEntry{Type: DomainRoot, Value: strings.ToLower(value)}
}

// NewFullEntry builds an exact-domain entry.
func NewFullEntry(value string) *DomainEntry {
	return &DomainEntry{Type: DomainFull, Value: strings.ToLower(value)}
}

// WithAttribute tags the entry. Value may be empty for bare tags.
func (e *DomainEntry) WithAttribute(key, value string) *DomainEntry {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[strings.ToLower(key)] = value
	return e
}

// matchName matches an already-lowercased name.
func (e *DomainEntry) matchName(name string) bool {
	switch e.Type {
	case DomainPlain:
		return strings.Contains(name, e.Value)
	case DomainRegex:
		return e.Regex.MatchString(name)
	case DomainFull:
		return name == e.Value
	default:
		return name == e.Value || strings.HasSuffix(name, "."+e.Value)
	}
}

// hasAttributes reports whether the entry carries every required
// attribute, with matching value where one is required (empty required
// value means presence is enough).
func (e *DomainEntry) hasAttributes(required map[string]string) bool {
	for key, want := range required {
		got, ok := e.Attributes[key]
		if !ok {
			return false
		}
		if want != "" && got != want {
			return false
		}
	}
	return true
}

// GeoSiteMatcher matches host names against a loader-supplied site list.
// Full and root entries go into a succinct trie; plain and regex entries
// are scanned linearly after a trie miss.
type GeoSiteMatcher struct {
	siteName string
	set      *trie.DomainSet
	fallback []*DomainEntry
}

// NewGeoSiteMatcher builds a matcher for a site list. Attribute filters
// are applied here: an entry survives only if it carries every required
// attribute, so the trie fast path stays intact under filtering.
func NewGeoSiteMatcher(siteName string, entries []*DomainEntry, attrs map[string]string) *GeoSiteMatcher {
	var full, roots []string
	var fallback []*DomainEntry
	for _, entry := range entries {
		if len(attrs) > 0 && !entry.hasAttributes(attrs) {
			continue
		}
		switch entry.Type {
		case DomainFull:
			full = append(full, entry.Value)
		case DomainRoot:
			roots = append(roots, entry.Value)
		default:
			fallback = append(fallback, entry)
		}
	}

	m := &GeoSiteMatcher{
		siteName: strings.ToLower(siteName),
		fallback: fallback,
	}
	if len(full) > 0 || len(roots) > 0 {
		m.set = trie.NewDomainSet(full, roots)
	}
	return m
}

// ParseGeoSitePattern splits a "name@attr@attr=value" pattern into the
// site name and its required attributes.
func ParseGeoSitePattern(pattern string) (string, map[string]string) {
	parts := strings.Split(pattern, "@")
	name := strings.ToLower(strings.TrimSpace(parts[0]))
	attrs := make(map[string]string)
	for _, attr := range parts[1:] {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if attr == "" {
			continue
		}
		if eq := strings.IndexByte(attr, '='); eq >= 0 {
			attrs[attr[:eq]] = attr[eq+1:]
		} else {
			attrs[attr] = ""
		}
	}
	return name, attrs
}

// SiteName returns the lower-cased site name.
func (m *GeoSiteMatcher) SiteName() string {
	return m.siteName
}

// Matches reports whether the host name belongs to the site list.
func (m *GeoSiteMatcher) Matches(host HostInfo) bool {
	if host.Name == "" {
		return false
	}
	if m.set.Has(host.Name) {
		return true
	}
	for _, entry := range m.fallback {
		if entry.matchName(host.Name) {
			return true
		}
	}
	return false
}
