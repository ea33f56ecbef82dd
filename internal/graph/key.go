package graph

import (
	"strings"

	"github.com/agentic-research/sitemap/api"
)

// Path-key helpers shared by ingestion, the tree engine and the CLI.
// A key is either api.RootKey, a bare host, or host/seg/.../leaf where the
// leaf may carry a folded ?query and #fragment.

// JoinKey returns the key for a segment path. An empty path is the root.
func JoinKey(segments []string) string {
	if len(segments) == 0 {
		return api.RootKey
	}
	return strings.Join(segments, "/")
}

// ChildKey returns the key of child under parent. Children of the root are bare hosts.
func ChildKey(parent, child string) string {
	if parent == api.RootKey {
		return child
	}
	return parent + "/" + child
}

// ParentKey returns the key holding the last segment of segments as a child.
// E.g. [example.com api] -> "example.com", [example.com] -> "__ROOT__".
func ParentKey(segments []string) string {
	if len(segments) <= 1 {
		return api.RootKey
	}
	return JoinKey(segments[:len(segments)-1])
}

// SplitKey turns a key back into segments. Slashes inside a folded query or
// fragment are kept in the last segment, so "h/users?next=/a" -> [h users?next=/a]
// and "h/?q=1" -> [h ?q=1].
func SplitKey(key string) []string {
	key = strings.TrimPrefix(key, "/")
	if key == "" || key == api.RootKey {
		return nil
	}
	cut := strings.IndexAny(key, "?#")
	head, tail := key, ""
	if cut >= 0 {
		head, tail = key[:cut], key[cut:]
	}
	var segments []string
	for _, s := range strings.Split(head, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	// The root never names a segment; "__ROOT__/a.com" is just a.com.
	if len(segments) > 0 && segments[0] == api.RootKey {
		segments = segments[1:]
	}
	if len(segments) == 0 && tail == "" {
		return nil
	}
	if tail == "" {
		return segments
	}
	// A suffix directly after a slash (or at the very start) is its own segment.
	if len(segments) == 0 || strings.HasSuffix(head, "/") {
		return append(segments, tail)
	}
	segments[len(segments)-1] += tail
	return segments
}
