// Package tree answers structural questions about the index and mutates it
// one subtree at a time. Every traversal is an explicit worklist with a
// visited set, so deep or malformed (cyclic) child links cannot exhaust the
// stack or loop forever.
package tree

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/agentic-research/sitemap/api"
	"github.com/agentic-research/sitemap/internal/graph"
)

func normalize(key string) string {
	if key == "" {
		return api.RootKey
	}
	return key
}

// Lookup returns the record under key, or nil when the key is absent.
func Lookup(ctx context.Context, s graph.Store, key string) (*api.Record, error) {
	rec, err := s.Get(ctx, normalize(key))
	if errors.Is(err, graph.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", key, err)
	}
	return rec, nil
}

// Children returns the sorted child names of key; empty when key is absent.
func Children(ctx context.Context, s graph.Store, key string) ([]string, error) {
	rec, err := Lookup(ctx, s, key)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.ChildNames(), nil
}

// visit walks the subtree rooted at key in pre-order and calls fn once per
// present record.
func visit(ctx context.Context, s graph.Store, key string, fn func(key string, rec *api.Record)) error {
	key = normalize(key)
	stack := []string{key}
	seen := map[string]struct{}{key: {}}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rec, err := Lookup(ctx, s, k)
		if err != nil {
			return err
		}
		if rec == nil {
			continue
		}
		fn(k, rec)
		for c := range rec.Children {
			ck := graph.ChildKey(k, c)
			if _, ok := seen[ck]; ok {
				continue
			}
			seen[ck] = struct{}{}
			stack = append(stack, ck)
		}
	}
	return nil
}

// Endpoints returns the full URL of every endpoint in the subtree rooted at
// key, sorted lexicographically.
func Endpoints(ctx context.Context, s graph.Store, key string) ([]string, error) {
	var urls []string
	err := eachEndpoint(ctx, s, key, func(k string, rec *api.Record) {
		urls = append(urls, rec.URL(k))
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(urls)
	return urls, nil
}

// HostScheme pairs a host with the scheme recorded for it.
type HostScheme struct {
	Host   string
	Scheme string
}

// Hosts lists every host under the root with its scheme, sorted by host.
func Hosts(ctx context.Context, s graph.Store) ([]HostScheme, error) {
	names, err := Children(ctx, s, api.RootKey)
	if err != nil {
		return nil, err
	}
	out := make([]HostScheme, 0, len(names))
	for _, h := range names {
		rec, err := Lookup(ctx, s, h)
		if err != nil {
			return nil, err
		}
		hs := HostScheme{Host: h}
		if rec != nil {
			hs.Scheme = rec.Scheme
		}
		out = append(out, hs)
	}
	return out, nil
}

// CountEndpoints returns the number of endpoints in the subtree rooted at key.
func CountEndpoints(ctx context.Context, s graph.Store, key string) (int, error) {
	n := 0
	err := eachEndpoint(ctx, s, key, func(string, *api.Record) { n++ })
	return n, err
}

// eachEndpoint calls fn for every endpoint under key. The whole index is read
// with one ordered scan instead of a lookup per node.
func eachEndpoint(ctx context.Context, s graph.Store, key string, fn func(key string, rec *api.Record)) error {
	if normalize(key) != api.RootKey {
		return visit(ctx, s, key, func(k string, rec *api.Record) {
			if rec.IsEndpoint {
				fn(k, rec)
			}
		})
	}
	err := s.Scan(ctx, func(k string, rec *api.Record) error {
		if rec.IsEndpoint && k != api.RootKey {
			fn(k, rec)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan endpoints: %w", err)
	}
	return nil
}
