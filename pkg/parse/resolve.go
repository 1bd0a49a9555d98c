package parse

import (
	"net/url"
	"strings"
)

// IsValidURL reports whether raw is a well-formed absolute URL: it parses, has a scheme and a host,
// and contains no whitespace.
func IsValidURL(raw string) bool {
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// ResolveURL turns a possibly relative image reference into an absolute URL using the page URL as base.
//
// Rules, in order: an already absolute URL is returned unchanged; "//host/x" takes the base scheme;
// "/x" takes the base scheme and host; anything else is appended to the directory of the base path.
//
// This is deliberately simpler than RFC 3986 resolution: ".." segments, percent-encoding and doubled
// slashes are not normalized. The directory is computed like a shell dirname, so a base of "/a/" or
// "/index.html" yields "/" and the result carries "//" before raw.
func ResolveURL(raw, base string) string {
	if IsValidURL(raw) {
		return raw
	}

	b, err := url.Parse(base)
	if err != nil || b.Scheme == "" || b.Host == "" {
		return raw
	}

	if strings.HasPrefix(raw, "//") {
		return b.Scheme + ":" + raw
	}

	origin := b.Scheme + "://" + b.Host // Host keeps any explicit port
	if strings.HasPrefix(raw, "/") {
		return origin + raw
	}

	return origin + dirname(b.EscapedPath()) + "/" + raw
}

// dirname drops the last segment of an absolute path, ignoring trailing slashes.
// An empty path stays empty.
func dirname(p string) string {
	if p == "" {
		return ""
	}
	trimmed := strings.TrimRight(p, "/")
	i := strings.LastIndex(trimmed, "/")
	if i <= 0 {
		return "/"
	}
	dir := strings.TrimRight(trimmed[:i], "/")
	if dir == "" {
		return "/"
	}
	return dir
}
