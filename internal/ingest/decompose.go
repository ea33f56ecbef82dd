package ingest

import (
	"net/url"
	"strings"
)

// Path is a URL broken into the pieces the index is keyed by.
type Path struct {
	Scheme string
	Host   string
	// Segments are the non-empty path components, without query or fragment.
	Segments []string
	// Leaf is the last segment with ?query and #fragment folded in. With no
	// segments it is just the suffix, and empty when there is none.
	Leaf string
}

// Decompose splits u into host, segments and leaf. It reports false when u
// has no host; such URLs are not indexed.
func Decompose(u *url.URL) (Path, bool) {
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Path{}, false
	}
	p := Path{
		Scheme:   strings.ToLower(u.Scheme),
		Host:     host,
		Segments: splitPath(u.EscapedPath()),
	}

	var suffix string
	if u.RawQuery != "" || u.ForceQuery {
		suffix += "?" + u.RawQuery
	}
	if frag := u.EscapedFragment(); frag != "" {
		suffix += "#" + frag
	}
	if n := len(p.Segments); n > 0 {
		p.Leaf = p.Segments[n-1] + suffix
	} else {
		p.Leaf = suffix
	}
	return p, true
}

// Parents returns every segment except the last.
func (p Path) Parents() []string {
	if len(p.Segments) == 0 {
		return nil
	}
	return p.Segments[:len(p.Segments)-1]
}

// Key returns the path-key of the endpoint this URL terminates at.
func (p Path) Key() string {
	var b strings.Builder
	b.WriteString(p.Host)
	for _, seg := range p.Parents() {
		b.WriteByte('/')
		b.WriteString(seg)
	}
	if p.Leaf != "" {
		b.WriteByte('/')
		b.WriteString(p.Leaf)
	}
	return b.String()
}

// splitPath drops empty and "." components and lets ".." remove its predecessor.
func splitPath(escaped string) []string {
	var segments []string
	for _, s := range strings.Split(escaped, "/") {
		switch s {
		case "", ".":
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
		default:
			segments = append(segments, s)
		}
	}
	return segments
}
