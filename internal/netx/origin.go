// Package netx extracts caller origin details from proxy-supplied header values.
package netx

import (
	"net/netip"
	"strings"
)

// FirstForwarded returns the left-most address of an X-Forwarded-For value,
// which is the original client as reported by the first proxy.
func FirstForwarded(value string) string {
	first, _, _ := strings.Cut(value, ",")
	return strings.TrimSpace(first)
}

// ParseIP parses a textual address. Zones and IPv4-mapped IPv6 forms are
// normalised; anything unparseable yields nil.
func ParseIP(s string) *netip.Addr {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		// some proxies append the client port
		ap, perr := netip.ParseAddrPort(s)
		if perr != nil {
			return nil
		}
		addr = ap.Addr()
	}
	addr = addr.WithZone("").Unmap()
	return &addr
}

// ClientIP prefers the first X-Forwarded-For entry and falls back to the
// value of the configured IP header.
func ClientIP(forwardedFor, fallback string) *netip.Addr {
	if ip := ParseIP(FirstForwarded(forwardedFor)); ip != nil {
		return ip
	}
	return ParseIP(fallback)
}

// Optional returns nil for blank header values.
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
