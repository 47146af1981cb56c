package fetch

import (
	"net/url"
	"strings"
)

// CanonicalURL drops the fragment and any trailing slashes so that
// "/a#x", "/a/" and "/a" share one visited key.
func CanonicalURL(raw string) string {
	value := strings.TrimSpace(raw)
	if idx := strings.Index(value, "#"); idx >= 0 {
		value = value[:idx]
	}
	return strings.TrimRight(value, "/")
}

// resolveSameSite resolves href against base and reports whether the
// result is an http(s) URL on the same host.
func resolveSameSite(base *url.URL, href string) (string, *url.URL, bool) {
	href = strings.TrimSpace(href)
	if base == nil || href == "" {
		return "", nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", nil, false
	}
	resolved := base.ResolveReference(ref)
	canonical := CanonicalURL(resolved.String())
	parsed, err := url.Parse(canonical)
	if err != nil {
		return "", nil, false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", nil, false
	}
	if !strings.EqualFold(parsed.Host, base.Host) {
		return "", nil, false
	}
	return canonical, parsed, true
}
