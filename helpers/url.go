package helpers

import (
	"fmt"
	"net/url"
	"strings"
)

// CanonicalURL keeps scheme, host and path of raw, lowercasing the host and
// dropping query string and fragment. Products are keyed by this form.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", raw)
	}

	canonical := url.URL{
		Scheme:  strings.ToLower(u.Scheme),
		Host:    strings.ToLower(u.Host),
		Path:    u.Path,
		RawPath: u.RawPath,
	}
	return canonical.String(), nil
}

// SiteHost returns the lowercased host of raw without port and without a
// leading "www.", which is the key extractors are registered under.
func SiteHost(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	return strings.TrimPrefix(host, "www."), nil
}

// ResolveURL resolves ref against base; it returns ref unchanged when either
// side does not parse.
func ResolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}
