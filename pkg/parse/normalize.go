package parse

import (
	"net"
	"net/url"
	"strings"
)

// HostKey returns the host of u for per-host bookkeeping.
// It lowercases the host, drops a trailing dot and removes the default port for the
// scheme (80 for http, 443 for https), so equivalent spellings of one server share a key.
func HostKey(u *url.URL) string {
	if u == nil {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)

	// Remove default ports
	if h, port, err := net.SplitHostPort(host); err == nil {
		if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
			host = h
			if strings.Contains(h, ":") {
				host = "[" + h + "]" // IPv6 literal
			}
		}
	}
	return strings.TrimSuffix(host, ".")
}
