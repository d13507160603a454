// Package validation provides base URL and input validation for the PATCH client.
//
// The base URL gate runs once when a client is constructed. It requires a host,
// refuses query strings and fragments, and only permits plain http when the host
// is localhost or a loopback address, so bearer tokens are never sent in clear
// text to a remote server.
package validation

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrInsecureBaseURL is returned when a non-loopback base URL does not use https.
var ErrInsecureBaseURL = errors.New("base URL must use https (http is only allowed for localhost)")

// ValidateBaseURL parses rawURL and checks that it is usable as an API base URL.
// It checks that the URL:
//   - Parses and uses the http or https scheme
//   - Contains a hostname
//   - Carries no query string or fragment
//   - Uses https, or http with localhost / a loopback IP
//
// The parsed URL is returned so callers do not need to parse it twice.
func ValidateBaseURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL format: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("invalid base URL scheme: only http and https are allowed, got %q", parsed.Scheme)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return nil, fmt.Errorf("base URL must contain a hostname")
	}

	if parsed.RawQuery != "" || parsed.ForceQuery || parsed.Fragment != "" {
		return nil, fmt.Errorf("base URL must not include query or fragment")
	}

	if scheme == "http" && !IsLoopbackHost(hostname) {
		return nil, fmt.Errorf("%w: %s", ErrInsecureBaseURL, parsed.Redacted())
	}

	return parsed, nil
}

// IsLoopbackHost reports whether hostname is "localhost" or a loopback IP literal.
func IsLoopbackHost(hostname string) bool {
	lowercase := strings.ToLower(strings.Trim(hostname, "[]"))
	if lowercase == "localhost" {
		return true
	}
	if ip := net.ParseIP(lowercase); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
