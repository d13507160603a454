// Package urlparse extracts resource IDs from PATCH API URLs.
package urlparse

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ParsedURL is a PATCH API URL split into its parts.
type ParsedURL struct {
	BaseURL      string
	APIVersion   string // "v2" or "v3"
	ResourceType string // singular form: plant or organization
	ResourceID   string // empty for collection URLs
}

var resourceTypes = map[string]string{
	"plants":        "plant",
	"organizations": "organization",
}

// apiPattern matches /api/v{n}/... and captures the version and the rest.
var apiPattern = regexp.MustCompile(`^(.*?)/api/(v[0-9]+)(/.*)?$`)

// Parse extracts the resource from a URL such as
// https://patch.example.com/api/v3/plants/plant-1/metrics/device/plant-5m.
// v2 URLs that nest the plant under a family (api/v2/metrics/plants/{id})
// are recognised too. A base URL with a path prefix is kept in BaseURL.
func Parse(rawURL string) (*ParsedURL, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, fmt.Errorf("invalid URL: missing scheme (expected https://...)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme %q: expected http or https", parsed.Scheme)
	}

	matches := apiPattern.FindStringSubmatch(parsed.EscapedPath())
	if matches == nil {
		return nil, fmt.Errorf("invalid PATCH URL format: expected /api/v{n}/...")
	}

	segments := strings.Split(strings.Trim(matches[3], "/"), "/")
	for i, seg := range segments {
		singular, ok := resourceTypes[seg]
		if !ok {
			continue
		}
		result := &ParsedURL{
			BaseURL:      fmt.Sprintf("%s://%s%s", parsed.Scheme, parsed.Host, matches[1]),
			APIVersion:   matches[2],
			ResourceType: singular,
		}
		if i+1 < len(segments) && segments[i+1] != "" {
			id, err := url.PathUnescape(segments[i+1])
			if err != nil {
				return nil, fmt.Errorf("invalid %s ID: %w", singular, err)
			}
			result.ResourceID = id
		}
		return result, nil
	}

	types := make([]string, 0, len(resourceTypes))
	for k := range resourceTypes {
		types = append(types, k)
	}
	return nil, fmt.Errorf("URL names no supported resource: expected one of %s", strings.Join(types, ", "))
}

// HasResourceID reports whether the URL names a single resource.
func (p *ParsedURL) HasResourceID() bool {
	return p.ResourceID != ""
}

// IsURL reports whether s looks like an http(s) URL rather than an ID.
func IsURL(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://")
}
