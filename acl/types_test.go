package acl

import (
	"net/netip"
	"testing"

	"github.com/miekg/dns"
)

func TestProtocolMatches(t *testing.T) {
	tests := []struct {
		rule, query Protocol
		matched     bool
	}{
		{ProtocolBoth, ProtocolTCP, true},
		{ProtocolBoth, ProtocolUDP, true},
		{ProtocolTCP, ProtocolTCP, true},
		{ProtocolTCP, ProtocolUDP, false},
		{ProtocolUDP, ProtocolUDP, true},
		{ProtocolUDP, ProtocolTCP, false},
	}
	for _, tc := range tests {
		if got := tc.rule.matches(tc.query); got != tc.matched {
			t.Errorf("%v.matches(%v) = %t, want %t", tc.rule, tc.query, got, tc.matched)
		}
	}
}

func TestProtocolString(t *testing.T) {
	if ProtocolTCP.String() != "tcp" || ProtocolUDP.String() != "udp" || ProtocolBoth.String() != "*" {
		t.Fatal("unexpected protocol strings")
	}
}

func TestNewHostInfoLowercases(t *testing.T) {
	host := NewHostInfo("WWW.Example.COM", netip.Addr{}, netip.Addr{})
	if host.Name != "www.example.com" {
		t.Fatalf("expected lowercased name, got %q", host.Name)
	}
}

func TestNewHostInfoUnmapsV4(t *testing.T) {
	mapped := netip.MustParseAddr("::ffff:192.168.1.1")
	host := NewHostInfo("", mapped, netip.Addr{})
	if host.IPv4 != netip.MustParseAddr("192.168.1.1") {
		t.Fatalf("expected unmapped v4, got %v", host.IPv4)
	}
}

func TestHostInfoFromIP(t *testing.T) {
	host := HostInfoFromIP(netip.MustParseAddr("192.168.1.1"))
	if !host.IPv4.IsValid() || host.IPv6.IsValid() {
		t.Fatalf("v4 address landed wrong: %+v", host)
	}
	host = HostInfoFromIP(netip.MustParseAddr("2001:db8::1"))
	if host.IPv4.IsValid() || !host.IPv6.IsValid() {
		t.Fatalf("v6 address landed wrong: %+v", host)
	}
}

func TestHostInfoFromQuestion(t *testing.T) {
	q := dns.Question{Name: "WWW.Example.COM.", Qtype: dns.TypeA, Qclass: dns.ClassINET}
	host := HostInfoFromQuestion(q)
	if host.Name != "www.example.com" {
		t.Fatalf("expected canonical name, got %q", host.Name)
	}
	if host.IPv4.IsValid() || host.IPv6.IsValid() {
		t.Fatal("question carries no addresses")
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct{ in, out string }{
		{"Example.COM.", "example.com"},
		{"  spaced.org ", "spaced.org"},
		{"already.fine", "already.fine"},
		{".", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := NormalizeDomain(tc.in); got != tc.out {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}
