package acl

import (
	"net/netip"
	"strings"

	"github.com/miekg/dns"
)

// Protocol is the transport protocol constraint of a rule or query.
type Protocol uint8

const (
	// ProtocolBoth matches any query protocol. It is the default for rules
	// without a protocol clause; queries always carry a concrete protocol.
	ProtocolBoth Protocol = iota
	ProtocolTCP
	ProtocolUDP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	default:
		return "*"
	}
}

// matches reports whether a rule-side protocol accepts a query-side one.
func (p Protocol) matches(query Protocol) bool {
	return p == ProtocolBoth || p == query
}

// HostInfo is the subject of a match query. Name is the lowercase domain
// name (possibly empty); IPv4/IPv6 are the resolved addresses, with the
// zero netip.Addr meaning "not present".
//
// Constructors lowercase Name so downstream matchers never re-lowercase.
type HostInfo struct {
	Name string
	IPv4 netip.Addr
	IPv6 netip.Addr
}

// NewHostInfo builds a HostInfo with a name and optional addresses.
func NewHostInfo(name string, ipv4, ipv6 netip.Addr) HostInfo {
	return HostInfo{
		Name: strings.ToLower(name),
		IPv4: ipv4.Unmap(),
		IPv6: ipv6,
	}
}

// HostInfoFromName builds a name-only HostInfo.
func HostInfoFromName(name string) HostInfo {
	return HostInfo{Name: strings.ToLower(name)}
}

// HostInfoFromIP builds a HostInfo from a single resolved address.
func HostInfoFromIP(ip netip.Addr) HostInfo {
	ip = ip.Unmap()
	if ip.Is4() {
		return HostInfo{IPv4: ip}
	}
	return HostInfo{IPv6: ip}
}

// HostInfoFromQuestion converts a DNS question name into a HostInfo, so a
// router sitting on a dns.Msg can query the engine without hand-rolling
// FQDN trimming.
func HostInfoFromQuestion(q dns.Question) HostInfo {
	return HostInfo{Name: strings.TrimSuffix(dns.CanonicalName(q.Name), ".")}
}

// NormalizeDomain trims surrounding space plus any trailing dot and
// lowercases the rest.
func NormalizeDomain(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	return strings.ToLower(name)
}

// TextRule is one parsed rule line, before compilation. Optional clauses
// are empty strings when absent.
type TextRule struct {
	// Outbound is the name the rule routes to.
	Outbound string
	// Address is the raw address pattern (IP, CIDR, domain, geoip:, ...).
	Address string
	// ProtoPort is the raw protocol/port clause, e.g. "tcp/443", "*/80-90".
	ProtoPort string
	// HijackAddress is the raw hijack IP literal.
	HijackAddress string
	// LineNum is the 1-based source line, kept for error reporting.
	LineNum int
}

// MatchResult is the outcome of a successful match.
type MatchResult[O any] struct {
	Outbound O
	// HijackIP, when valid, is the address the connection should be
	// redirected to (the original port is kept).
	HijackIP netip.Addr
}

// cacheKey is the fingerprint of a query. Comparable by construction so it
// can key the LRU directly.
type cacheKey struct {
	name     string
	ipv4     netip.Addr
	ipv6     netip.Addr
	protocol Protocol
	port     uint16
}

func cacheKeyFromHost(host HostInfo, proto Protocol, port uint16) cacheKey {
	return cacheKey{
		name:     host.Name, // already lowercased
		ipv4:     host.IPv4,
		ipv6:     host.IPv6,
		protocol: proto,
		port:     port,
	}
}
