package tree

import (
	"context"
	"fmt"
	"time"

	"github.com/agentic-research/sitemap/api"
	"github.com/agentic-research/sitemap/internal/graph"
)

// Delete removes the subtree at path and unlinks it from its parent. It
// returns the number of endpoints removed. An absent path and the empty path
// (the root) delete nothing. A store error leaves whatever was already
// deleted in place and reports the endpoints removed before the failure.
func Delete(ctx context.Context, s graph.Store, path []string) (int, error) {
	if len(path) > 0 && path[0] == api.RootKey {
		path = path[1:]
	}
	if len(path) == 0 {
		return 0, nil
	}
	start := time.Now()
	key := graph.JoinKey(path)

	// Pre-order keys; deleting them in reverse removes children first.
	var order []string
	var endpoint []bool
	err := visit(ctx, s, key, func(k string, rec *api.Record) {
		order = append(order, k)
		endpoint = append(endpoint, rec.IsEndpoint)
	})
	if err != nil {
		return 0, err
	}
	if len(order) == 0 {
		return 0, nil
	}

	count := 0
	defer func() { deletedEndpoints.Add(float64(count)) }()
	for i := len(order) - 1; i >= 0; i-- {
		if err := s.Delete(ctx, order[i]); err != nil {
			return count, fmt.Errorf("delete %s: %w", order[i], err)
		}
		if endpoint[i] {
			count++
		}
	}

	parentKey := graph.ParentKey(path)
	parent, err := Lookup(ctx, s, parentKey)
	if err != nil {
		return count, err
	}
	if parent != nil && parent.RemoveChild(path[len(path)-1]) {
		if err := s.Put(ctx, parentKey, parent); err != nil {
			return count, fmt.Errorf("update parent %s: %w", parentKey, err)
		}
	}

	deleteDuration.Observe(time.Since(start).Seconds())
	return count, nil
}
