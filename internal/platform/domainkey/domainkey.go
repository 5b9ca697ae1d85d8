package domainkey

import (
	"net/url"
	"strings"

	apperrors "prostop/internal/platform/errors"
)

// Internal/privileged schemes are tracked as a scheme://authority class so
// browser pages never crash extraction and can be exempted from blocking.
var internalSchemes = map[string]bool{
	"chrome":           true,
	"brave":            true,
	"edge":             true,
	"about":            true,
	"chrome-extension": true,
	"moz-extension":    true,
	"file":             true,
}

// Extract reduces a navigation URL to its tracking key: the hostname for
// ordinary URLs (with a leading "www." stripped), or scheme://authority for
// internal browser pages. Malformed input yields ErrNotTrackable; callers
// must skip tracking for that navigation.
func Extract(rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", apperrors.ErrNotTrackable
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" {
		return "", apperrors.ErrNotTrackable
	}
	scheme := strings.ToLower(parsed.Scheme)
	if internalSchemes[scheme] {
		return scheme + "://" + parsed.Host, nil
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", apperrors.ErrNotTrackable
	}
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", apperrors.ErrNotTrackable
	}
	return host, nil
}

// IsInternal reports whether a key produced by Extract identifies an
// internal browser page rather than a website.
func IsInternal(key string) bool {
	idx := strings.Index(key, "://")
	if idx < 0 {
		return false
	}
	return internalSchemes[key[:idx]]
}
