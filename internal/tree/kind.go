package tree

import (
	"net/url"
	"strings"
)

// Kind is a coarse classification of a leaf by its file extension.
type Kind string

const (
	KindPage  Kind = "page"
	KindImage Kind = "image"
	KindAsset Kind = "asset"
)

// KindOf classifies a segment name. Query and fragment suffixes are ignored.
func KindOf(name string) Kind {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return KindPage
	}
	switch strings.ToLower(name[dot+1:]) {
	case "png", "jpg", "jpeg", "gif", "svg", "webp":
		return KindImage
	case "js", "css", "json", "xml", "html":
		return KindAsset
	default:
		return KindPage
	}
}

// Params decodes the query folded into a leaf name. Malformed pairs are skipped.
func Params(name string) url.Values {
	i := strings.IndexByte(name, '?')
	if i < 0 {
		return url.Values{}
	}
	q := name[i+1:]
	if j := strings.IndexByte(q, '#'); j >= 0 {
		q = q[:j]
	}
	v, _ := url.ParseQuery(q) // partial result is fine
	return v
}
