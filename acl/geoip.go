package acl

import (
	"net"
	"net/netip"
	"strings"

	"github.com/oschwald/maxminddb-golang"
)

// GeoIPMatcher matches host addresses against one country code. The data
// source is either a sorted CIDR index (DAT/MetaDB-style loaders hand over
// the country's networks) or a shared MMDB reader queried per address.
type GeoIPMatcher struct {
	countryCode string
	cidrs       *sortedCIDRs
	mmdb        *maxminddb.Reader
	inverse     bool
}

// NewGeoIPMatcher builds a matcher over a country's CIDR list.
func NewGeoIPMatcher(countryCode string, cidrs []netip.Prefix) *GeoIPMatcher {
	return &GeoIPMatcher{
		countryCode: strings.ToUpper(countryCode),
		cidrs:       newSortedCIDRs(cidrs),
	}
}

// NewGeoIPMatcherMMDB builds a matcher over a shared MMDB reader.
func NewGeoIPMatcherMMDB(countryCode string, reader *maxminddb.Reader) *GeoIPMatcher {
	return &GeoIPMatcher{
		countryCode: strings.ToUpper(countryCode),
		mmdb:        reader,
	}
}

// SetInverse makes the matcher accept addresses NOT in the country.
func (m *GeoIPMatcher) SetInverse(inverse bool) {
	m.inverse = inverse
}

// CountryCode returns the upper-cased country code the matcher was built for.
func (m *GeoIPMatcher) CountryCode() string {
	return m.countryCode
}

// Matches reports whether any present address of host belongs to the
// country (ORed across families), honoring the inverse flag.
func (m *GeoIPMatcher) Matches(host HostInfo) bool {
	matched := (host.IPv4.IsValid() && m.matchAddr(host.IPv4)) ||
		(host.IPv6.IsValid() && m.matchAddr(host.IPv6))
	if m.inverse {
		return !matched
	}
	return matched
}

func (m *GeoIPMatcher) matchAddr(ip netip.Addr) bool {
	if m.mmdb != nil {
		return m.matchMMDB(ip)
	}
	return m.cidrs.contains(ip)
}

type mmdbCountryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

func (m *GeoIPMatcher) matchMMDB(ip netip.Addr) bool {
	var record mmdbCountryRecord
	if err := m.mmdb.Lookup(net.IP(ip.AsSlice()), &record); err != nil {
		return false
	}
	return strings.EqualFold(record.Country.ISOCode, m.countryCode)
}
