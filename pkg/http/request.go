package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// UnknownClientIP is returned when no usable address can be derived
const UnknownClientIP = "unknown"

// IPConfig holds configuration for IP extraction and validation
type IPConfig struct {
	TrustedProxies []*net.IPNet // peers whose forwarding headers are honored
	TrustAll       bool         // honor forwarding headers from any peer
}

// ExtractClientIP derives the client's apparent address.
//
// Forwarding headers are only consulted when the direct peer is trusted:
// 1. first entry of X-Forwarded-For
// 2. X-Real-IP
// 3. RemoteAddr
//
// The chosen value is normalized; anything unparseable becomes "unknown".
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)

	if config != nil && (config.TrustAll || isTrustedProxy(remoteIP, config.TrustedProxies)) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return NormalizeIP(first)
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return NormalizeIP(xri)
		}
	}

	return NormalizeIP(remoteIP)
}

// NormalizeIP returns the canonical text form of an address. IPv4-mapped IPv6
// collapses to IPv4 and IPv6 zones are dropped so one client maps to one key.
func NormalizeIP(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimSuffix(raw, "]"), "[")
	if raw == "" {
		return UnknownClientIP
	}

	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return UnknownClientIP
	}
	return addr.Unmap().WithZone("").String()
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr != "" {
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return ip
		}
		return r.RemoteAddr
	}
	return UnknownClientIP
}

// isTrustedProxy checks if an IP address is within any of the trusted proxy ranges
func isTrustedProxy(ip string, trustedProxies []*net.IPNet) bool {
	if len(trustedProxies) == 0 {
		return false
	}

	peer := net.ParseIP(ip)
	if peer == nil {
		return false
	}

	for _, ipNet := range trustedProxies {
		if ipNet.Contains(peer) {
			return true
		}
	}

	return false
}
