package netutil

import (
	"fmt"
	"net/netip"
	"strings"
)

// Networks is a set of CIDR ranges, e.g. the community's published ranges.
type Networks []netip.Prefix

// ParseNetworks parses CIDR strings such as "203.0.113.0/24" or "2001:db8::/32".
// A bare address is treated as a single-host prefix.
func ParseNetworks(list []string) (Networks, error) {
	out := make(Networks, 0, len(list))
	for _, raw := range list {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("parse network %q: %w", raw, err)
			}
			addr = addr.Unmap()
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("parse network %q: %w", raw, err)
		}
		if p.Addr().Is4In6() {
			if p.Bits() < 96 {
				return nil, fmt.Errorf("parse network %q: ipv4-mapped prefix shorter than /96", raw)
			}
			p = netip.PrefixFrom(p.Addr().Unmap(), p.Bits()-96)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

// Contains reports whether ip (optionally with a port) falls inside any range.
// Unparseable input never matches.
func (n Networks) Contains(ip string) bool {
	addr, ok := ParseIP(ip)
	if !ok {
		return false
	}
	for _, p := range n {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
