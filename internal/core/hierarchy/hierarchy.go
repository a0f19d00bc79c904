// Package hierarchy rebuilds a rooted tree from a flat list of entries
// using nothing but their relative paths.
package hierarchy

import (
	"sort"

	"github.com/Ning0612/snapdiff/internal/domain"
)

// Order decides the iteration order of the flat items.
// It reports whether a must come before b.
type Order func(a, b *domain.Entry) bool

// ByPath orders items lexicographically by relative path
func ByPath(a, b *domain.Entry) bool {
	return a.RelativePath < b.RelativePath
}

// Build reconstructs parent/child links from relative paths.
//
// Items are visited in the order given by order (input order when nil;
// ties keep input order). An item whose parent path is empty is a root.
// An item whose parent path is in the list becomes that parent's child,
// siblings keeping iteration order. An item whose parent path is missing
// from the list (an orphan) is also emitted as a root.
//
// The returned tree holds children-stripped copies; items are not modified.
// When a path occurs more than once, children attach to its first occurrence.
func Build(items []domain.Entry, order Order) *domain.Tree {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	if order != nil {
		sort.SliceStable(idx, func(i, j int) bool {
			return order(&items[idx[i]], &items[idx[j]])
		})
	}

	tree := domain.NewTree(len(items))
	lookup := make(map[string]domain.NodeID, len(items))
	ids := make([]domain.NodeID, len(idx))

	for k, i := range idx {
		id := tree.Add(items[i])
		ids[k] = id
		key := domain.NormalizePath(items[i].RelativePath)
		if _, exists := lookup[key]; !exists {
			lookup[key] = id
		}
	}

	for k, i := range idx {
		parent := domain.NoParent
		if pp := domain.ParentPath(items[i].RelativePath); pp != "" {
			if pid, ok := lookup[pp]; ok {
				parent = pid
			}
		}
		tree.Attach(ids[k], parent)
	}

	return tree
}
