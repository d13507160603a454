package api

import (
	"net/url"
	"strings"
)

// QueryParam is a single key/value query pair.
type QueryParam struct {
	Key   string
	Value string
}

// Query holds query parameters in the order they were added.
// Duplicate keys are kept and sent as separate pairs.
type Query []QueryParam

// Add appends key=value and returns the extended query.
func (q Query) Add(key, value string) Query {
	return append(q, QueryParam{Key: key, Value: value})
}

// AddNonEmpty appends key=value only when value is not empty.
func (q Query) AddNonEmpty(key, value string) Query {
	if value == "" {
		return q
	}
	return q.Add(key, value)
}

// Encode renders the pairs in insertion order using form encoding.
func (q Query) Encode() string {
	if len(q) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, p := range q {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
	}
	return sb.String()
}

// EncodeSegment percent-encodes raw for use as exactly one path segment.
// Every byte outside [A-Za-z0-9-_~] is escaped, including '.', so identifiers
// such as ".." or "a/b" can never be read back as traversal or separators.
func EncodeSegment(raw string) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	sb.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		b := raw[i]
		if isUnreservedSegmentByte(b) {
			sb.WriteByte(b)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[b>>4])
		sb.WriteByte(hex[b&0x0f])
	}
	return sb.String()
}

func isUnreservedSegmentByte(b byte) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		return true
	case b == '-' || b == '_' || b == '~':
		return true
	}
	return false
}

// buildURL joins relativePath onto the client's base URL and appends query.
// The result always stays under the base path prefix.
func (c *Client) buildURL(relativePath string, query Query) (*url.URL, error) {
	rel, err := cleanRelativePath(relativePath)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(c.baseURL.String() + rel)
	if err != nil {
		return nil, &InvalidPathError{Path: relativePath, Reason: "malformed path", Err: err}
	}
	u.RawQuery = query.Encode()
	return u, nil
}

// cleanRelativePath validates an API path relative to the base URL.
// A single leading slash is dropped. Each segment is decoded once (lossily)
// and rejected when it is a dot segment or hides a separator.
func cleanRelativePath(path string) (string, error) {
	rel := strings.TrimPrefix(path, "/")
	if strings.Contains(rel, "://") {
		return "", &InvalidPathError{Path: path, Reason: "embedded scheme"}
	}
	if strings.ContainsAny(rel, "?#") {
		return "", &InvalidPathError{Path: path, Reason: "query and fragment must be passed separately"}
	}
	for _, segment := range strings.Split(rel, "/") {
		decoded := lossyPercentDecode(segment)
		if decoded == "." || decoded == ".." {
			return "", &InvalidPathError{Path: path, Reason: "dot segment"}
		}
		if strings.ContainsAny(decoded, `/\`) {
			return "", &InvalidPathError{Path: path, Reason: "encoded separator"}
		}
	}
	return rel, nil
}

// lossyPercentDecode decodes %XX escapes (either hex case) and keeps any
// malformed escape as literal text instead of failing.
func lossyPercentDecode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, okHi := unhex(s[i+1])
			lo, okLo := unhex(s[i+2])
			if okHi && okLo {
				out = append(out, hi<<4|lo)
				i += 2
				continue
			}
		}
		out = append(out, s[i])
	}
	return string(out)
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
