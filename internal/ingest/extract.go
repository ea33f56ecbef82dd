package ingest

import (
	"net/url"
	"strings"
)

// isDelimiter reports the characters that separate URL candidates in markup-ish dumps.
func isDelimiter(r rune) bool {
	return r == '<' || r == '>' || r == '"'
}

// ExtractURLs returns every URL-shaped fragment of line that parses as an
// absolute URL. Fragments are split on < > and ", trimmed, and literal spaces
// become %20 so loosely formatted dumps still parse. Protocol-relative
// fragments (//host/path) are retried as https. Anything else is dropped.
func ExtractURLs(line string) []*url.URL {
	var out []*url.URL
	for _, part := range strings.FieldsFunc(line, isDelimiter) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		part = strings.ReplaceAll(part, " ", "%20")
		if u, ok := parseCandidate(part); ok {
			out = append(out, u)
		}
	}
	return out
}

func parseCandidate(s string) (*url.URL, bool) {
	if u, err := url.Parse(s); err == nil && u.IsAbs() {
		return u, true
	}
	if strings.HasPrefix(s, "//") {
		if u, err := url.Parse("https:" + s); err == nil {
			return u, true
		}
	}
	return nil, false
}
