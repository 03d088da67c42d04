package utils

import (
	"net"
	"net/http"
	"strings"
)

// IsTrustedProxyIP checks if the given IP address is in the trusted proxy list.
// trustedProxies is a comma-separated string of IPs and CIDR ranges,
// e.g. "127.0.0.1,10.0.0.0/8".
func IsTrustedProxyIP(ipStr string, trustedProxies string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	for _, proxy := range strings.Split(trustedProxies, ",") {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}

		if strings.Contains(proxy, "/") {
			if ipInCIDR(ip, proxy) {
				return true
			}
			continue
		}

		if proxyIP := net.ParseIP(proxy); proxyIP != nil && proxyIP.Equal(ip) {
			return true
		}
	}
	return false
}

func ipInCIDR(ip net.IP, cidr string) bool {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return false
	}
	return network.Contains(ip)
}

// ExtractIP strips the port from a host:port address. Plain IPs pass
// through unchanged.
func ExtractIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// GetClientIPWithTrust resolves the client IP, honoring proxy headers
// only when the immediate peer is trusted.
//
// trustProxyHeaders: "true" always trusts X-Forwarded-For/X-Real-IP,
// "false" never does, "auto" (the default) trusts them only when the
// connection comes from one of trustedProxyIPs.
func GetClientIPWithTrust(r *http.Request, trustProxyHeaders string, trustedProxyIPs string) string {
	remoteIP := ExtractIP(r.RemoteAddr)

	var shouldTrust bool
	switch trustProxyHeaders {
	case "true":
		shouldTrust = true
	case "false":
		shouldTrust = false
	default:
		shouldTrust = IsTrustedProxyIP(remoteIP, trustedProxyIPs)
	}

	if !shouldTrust {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return remoteIP
}
