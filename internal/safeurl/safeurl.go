package safeurl

import (
	"fmt"
	"net/url"
	"strings"
)

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Used to reject file://, ftp://, and other schemes that could lead to SSRF or local file access.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return (s == "http" || s == "https") && parsed.Host != ""
}

// BaseURL validates raw as an http(s) base URL and returns it without a trailing slash.
func BaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !IsHTTPOrHTTPS(raw) {
		return "", fmt.Errorf("not an http(s) URL: %q", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}
