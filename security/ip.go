package security

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP extracts the caller address used as the rate-limiting and
// audit identifier. X-Forwarded-For and X-Real-IP are only consulted when
// trustProxy is set: those headers are attacker-controlled on a direct
// connection, and trusting them there would let a client rotate identifiers
// at will and bypass the lockout entirely.
//
// With trustProxy set, trustedProxyCount says how many proxies we control:
// X-Forwarded-For is "client, proxy1, proxy2, ..." and the client IP is
// taken at ips[len(ips) - trustedProxyCount - 1].
func GetClientIP(r *http.Request, trustProxy bool, trustedProxyCount int) string {
	if trustProxy {
		if ip := clientIPFromXFF(r.Header.Get("X-Forwarded-For"), trustedProxyCount); ip != "" {
			return ip
		}
		if ip := r.Header.Get("X-Real-IP"); ip != "" && net.ParseIP(ip) != nil {
			return ip
		}
	}
	return ipFromRemoteAddr(r.RemoteAddr)
}

func clientIPFromXFF(xff string, trustedProxyCount int) string {
	if xff == "" {
		return ""
	}

	ips := strings.Split(xff, ",")

	proxyCount := trustedProxyCount
	if proxyCount == 0 {
		proxyCount = 1
	}
	idx := len(ips) - proxyCount - 1
	if idx < 0 {
		idx = 0
	}

	candidate := strings.TrimSpace(ips[idx])
	if net.ParseIP(candidate) != nil {
		return candidate
	}
	return ""
}

func ipFromRemoteAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
