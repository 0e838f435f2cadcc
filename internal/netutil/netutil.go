package netutil

import (
	"net/http"
	"net/netip"
	"strings"
)

// ParseIP accepts a bare address or host:port ("192.0.2.4:1234",
// "[2001:db8::1]:443") and returns the address with any zone dropped and
// IPv4-mapped IPv6 unmapped.
func ParseIP(raw string) (netip.Addr, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return netip.Addr{}, false
	}
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return clean(ap.Addr())
	}
	if addr, err := netip.ParseAddr(raw); err == nil {
		return clean(addr)
	}
	// "[::1]:port" and similar non-numeric ports.
	if strings.HasPrefix(raw, "[") {
		if end := strings.LastIndex(raw, "]"); end > 0 {
			if addr, err := netip.ParseAddr(raw[1:end]); err == nil {
				return clean(addr)
			}
		}
	}
	if idx := strings.LastIndex(raw, ":"); idx > 0 {
		if addr, err := netip.ParseAddr(raw[:idx]); err == nil {
			return clean(addr)
		}
	}
	return netip.Addr{}, false
}

func clean(addr netip.Addr) (netip.Addr, bool) {
	addr = addr.WithZone("").Unmap()
	return addr, addr.IsValid()
}

// NormalizeIP is ParseIP rendered as text. Input that does not parse is
// returned trimmed with ok=false.
func NormalizeIP(raw string) (string, bool) {
	addr, ok := ParseIP(raw)
	if !ok {
		return strings.TrimSpace(raw), false
	}
	return addr.String(), true
}

// ClientIP is the address a request originated from. Forwarding headers are
// honoured only when trustProxy is set; the left-most X-Forwarded-For entry
// wins over X-Real-IP.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip, ok := NormalizeIP(first); ok {
				return ip
			}
		}
		if ip, ok := NormalizeIP(r.Header.Get("X-Real-IP")); ok {
			return ip
		}
	}
	if ip, ok := NormalizeIP(r.RemoteAddr); ok {
		return ip
	}
	return r.RemoteAddr
}
