package acl

import (
	"net/netip"
	"sort"
)

// sortedCIDRList is one address family's CIDRs sorted by network address,
// with a running-max last-address array so a backward scan can stop early.
type sortedCIDRList struct {
	cidrs []netip.Prefix
	// maxLast[i] is the maximum last address over cidrs[0..i]. Once
	// maxLast[i] < ip no earlier entry can contain ip, overlapping
	// supernets included.
	maxLast []netip.Addr
}

func newSortedCIDRList(cidrs []netip.Prefix) *sortedCIDRList {
	sorted := make([]netip.Prefix, len(cidrs))
	copy(sorted, cidrs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Addr().Compare(sorted[j].Addr()) < 0
	})
	maxLast := make([]netip.Addr, len(sorted))
	var runningMax netip.Addr
	for i, cidr := range sorted {
		last := prefixLastAddr(cidr)
		if !runningMax.IsValid() || last.Compare(runningMax) > 0 {
			runningMax = last
		}
		maxLast[i] = runningMax
	}
	return &sortedCIDRList{cidrs: sorted, maxLast: maxLast}
}

func (l *sortedCIDRList) contains(ip netip.Addr) bool {
	if len(l.cidrs) == 0 {
		return false
	}
	// Rightmost entry with network address <= ip.
	idx := sort.Search(len(l.cidrs), func(i int) bool {
		return l.cidrs[i].Addr().Compare(ip) > 0
	})
	for i := idx - 1; i >= 0; i-- {
		if l.cidrs[i].Contains(ip) {
			return true
		}
		if l.maxLast[i].Compare(ip) < 0 {
			break
		}
	}
	return false
}

// sortedCIDRs is the full CIDR index, partitioned by family. GeoIP country
// data is largely non-overlapping, so lookups touch only a handful of
// entries after the binary search.
type sortedCIDRs struct {
	v4 *sortedCIDRList
	v6 *sortedCIDRList
}

func newSortedCIDRs(cidrs []netip.Prefix) *sortedCIDRs {
	var v4, v6 []netip.Prefix
	for _, cidr := range cidrs {
		if !cidr.IsValid() {
			continue
		}
		cidr = cidr.Masked()
		if cidr.Addr().Is4() {
			v4 = append(v4, cidr)
		} else {
			v6 = append(v6, cidr)
		}
	}
	return &sortedCIDRs{
		v4: newSortedCIDRList(v4),
		v6: newSortedCIDRList(v6),
	}
}

func (s *sortedCIDRs) contains(ip netip.Addr) bool {
	if ip.Is4() {
		return s.v4.contains(ip)
	}
	return s.v6.contains(ip)
}

// prefixLastAddr returns the highest address inside a prefix.
func prefixLastAddr(p netip.Prefix) netip.Addr {
	if p.Addr().Is4() {
		bytes := p.Addr().As4()
		setHostBits(bytes[:], p.Bits())
		return netip.AddrFrom4(bytes)
	}
	bytes := p.Addr().As16()
	setHostBits(bytes[:], p.Bits())
	return netip.AddrFrom16(bytes)
}

func setHostBits(bytes []byte, prefixLen int) {
	for i := prefixLen; i < len(bytes)*8; i++ {
		bytes[i/8] |= 1 << uint(7-i%8)
	}
}
