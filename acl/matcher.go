package acl

import (
	"fmt"
	"net/netip"
	"strings"
)

// matcherKind tags the address matcher variant. Matching dispatches on the
// tag with a switch so the hot path stays a predictable branch, instead of
// an interface call per rule.
type matcherKind uint8

const (
	matchAll matcherKind = iota
	matchIP
	matchCIDR
	matchDomain
	matchGeoIP
	matchGeoSite
)

// addressMatcher is the compiled address predicate of one rule.
type addressMatcher struct {
	kind    matcherKind
	ip      netip.Addr
	cidr    netip.Prefix
	domain  *domainMatcher
	geoip   *GeoIPMatcher
	geosite *GeoSiteMatcher
}

// matches evaluates the predicate against a host. Name-based variants
// require a non-empty name; IP-based variants require the matching family
// to be present.
func (m *addressMatcher) matches(host HostInfo) bool {
	switch m.kind {
	case matchAll:
		return true
	case matchIP:
		if m.ip.Is4() {
			return host.IPv4 == m.ip
		}
		return host.IPv6 == m.ip
	case matchCIDR:
		if m.cidr.Addr().Is4() {
			return host.IPv4.IsValid() && m.cidr.Contains(host.IPv4)
		}
		return host.IPv6.IsValid() && m.cidr.Contains(host.IPv6)
	case matchDomain:
		return host.Name != "" && m.domain.matchName(host.Name)
	case matchGeoIP:
		return m.geoip.Matches(host)
	case matchGeoSite:
		return m.geosite.Matches(host)
	default:
		return false
	}
}

// compileAddressMatcher classifies an address pattern syntactically and
// builds its matcher. Geo variants go through the loader.
func compileAddressMatcher(address string, loader GeoLoader) (*addressMatcher, error) {
	address = strings.ToLower(strings.TrimSpace(address))

	if address == "all" || address == "*" {
		return &addressMatcher{kind: matchAll}, nil
	}

	if code, ok := strings.CutPrefix(address, "geoip:"); ok {
		inverse := false
		if rest, neg := strings.CutPrefix(code, "!"); neg {
			code = rest
			inverse = true
		}
		if code == "" {
			return nil, fmt.Errorf("empty geoip country code")
		}
		m, err := loader.LoadGeoIP(code)
		if err != nil {
			return nil, fmt.Errorf("load geoip %s: %w", code, err)
		}
		if inverse {
			// Loaders may memoize and hand the same matcher to several
			// rules; negate a copy instead of the shared instance.
			clone := *m
			clone.SetInverse(true)
			m = &clone
		}
		return &addressMatcher{kind: matchGeoIP, geoip: m}, nil
	}

	if name, ok := strings.CutPrefix(address, "geosite:"); ok {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("empty geosite name")
		}
		m, err := loader.LoadGeoSite(name)
		if err != nil {
			return nil, fmt.Errorf("load geosite %s: %w", name, err)
		}
		return &addressMatcher{kind: matchGeoSite, geosite: m}, nil
	}

	if strings.ContainsRune(address, '/') {
		cidr, err := netip.ParsePrefix(address)
		if err != nil {
			return nil, fmt.Errorf("invalid cidr address: %s", address)
		}
		return &addressMatcher{kind: matchCIDR, cidr: cidr.Masked()}, nil
	}

	if ip, err := netip.ParseAddr(address); err == nil {
		return &addressMatcher{kind: matchIP, ip: ip.Unmap()}, nil
	}

	// Everything else is a domain pattern: "suffix:", wildcard, or exact.
	return &addressMatcher{kind: matchDomain, domain: newDomainMatcher(address)}, nil
}
