package mcpserver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agentic-research/sitemap/api"
	"github.com/agentic-research/sitemap/internal/graph"
	"github.com/agentic-research/sitemap/internal/tree"
)

// Description is a record with the derived fields a reader wants to see.
type Description struct {
	Key        string              `json:"key"`
	URL        string              `json:"url"`
	IsEndpoint bool                `json:"is_endpoint"`
	Scheme     string              `json:"scheme,omitempty"`
	Children   []string            `json:"children"`
	Kind       tree.Kind           `json:"kind"`
	Params     map[string][]string `json:"params,omitempty"`
}

// Describe builds the view of rec stored under key. Records without a scheme
// get an https URL.
func Describe(key string, rec *api.Record) Description {
	d := Description{
		Key:        key,
		IsEndpoint: rec.IsEndpoint,
		Scheme:     rec.Scheme,
		Children:   rec.ChildNames(),
	}
	scheme := rec.Scheme
	if scheme == "" {
		scheme = api.SchemeHTTPS
	}
	d.URL = scheme + "://" + key

	if segs := graph.SplitKey(key); len(segs) > 0 {
		leaf := segs[len(segs)-1]
		d.Kind = tree.KindOf(leaf)
		if p := tree.Params(leaf); len(p) > 0 {
			d.Params = p
		}
	}
	return d
}

func (d Description) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", d.URL)
	fmt.Fprintf(&b, "endpoint: %t\n", d.IsEndpoint)
	if d.Scheme != "" {
		fmt.Fprintf(&b, "scheme: %s\n", d.Scheme)
	}
	fmt.Fprintf(&b, "kind: %s\n", d.Kind)
	names := make([]string, 0, len(d.Params))
	for k := range d.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(&b, "param %s = %s\n", k, strings.Join(d.Params[k], ", "))
	}
	if len(d.Children) > 0 {
		fmt.Fprintf(&b, "children: %s\n", strings.Join(d.Children, ", "))
	}
	return b.String()
}
