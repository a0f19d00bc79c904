// Package union builds two path-synchronized trees from a pair of
// snapshots for aligned side-by-side display.
package union

import (
	"fmt"
	"sort"

	"github.com/Ning0612/snapdiff/internal/core/diff"
	"github.com/Ning0612/snapdiff/internal/core/flatten"
	"github.com/Ning0612/snapdiff/internal/core/hierarchy"
	"github.com/Ning0612/snapdiff/internal/domain"
	"github.com/Ning0612/snapdiff/internal/logger"
)

// Reconciler builds union trees
type Reconciler struct {
	Comparer diff.Comparer
	Log      logger.Logger
}

// NewReconciler creates a reconciler with the default comparer and no logging
func NewReconciler() *Reconciler {
	return &Reconciler{
		Comparer: diff.NewDefaultComparer(),
		Log:      &logger.NullLogger{},
	}
}

// CreateUnionStructure is shorthand for NewReconciler().CreateUnionStructure
func CreateUnionStructure(oldSnap, newSnap *domain.Snapshot) (*domain.UnionTrees, error) {
	return NewReconciler().CreateUnionStructure(oldSnap, newSnap)
}

// CreateUnionStructure returns an old-side and a new-side tree that both
// contain every path of either snapshot.
//
// Each path produces one record per side. Both records carry the row's
// classification (Added, Deleted, Modified or Unchanged). A side lacking
// the path gets a placeholder with Presence set to Placeholder.
func (r *Reconciler) CreateUnionStructure(oldSnap, newSnap *domain.Snapshot) (*domain.UnionTrees, error) {
	if oldSnap == nil {
		return nil, fmt.Errorf("%w: old snapshot is nil", domain.ErrInvalidInput)
	}
	if newSnap == nil {
		return nil, fmt.Errorf("%w: new snapshot is nil", domain.ErrInvalidInput)
	}

	comparer := r.Comparer
	if comparer == nil {
		comparer = diff.NewDefaultComparer()
	}

	oldMap := flatten.Snapshot(oldSnap)
	newMap := flatten.Snapshot(newSnap)

	paths := unionPaths(oldMap, newMap)

	oldSide := make([]domain.Entry, 0, len(paths))
	newSide := make([]domain.Entry, 0, len(paths))

	for _, path := range paths {
		oldEntry, _ := oldMap.Get(path)
		newEntry, _ := newMap.Get(path)

		status := comparer.Compare(oldEntry, newEntry)

		var o, n domain.Entry
		switch {
		case oldEntry == nil:
			n = newEntry.Shallow()
			o = domain.NewPlaceholder(n)
		case newEntry == nil:
			o = oldEntry.Shallow()
			n = domain.NewPlaceholder(o)
		default:
			o = oldEntry.Shallow()
			n = newEntry.Shallow()
		}
		o.Status = status
		n.Status = status

		oldSide = append(oldSide, o)
		newSide = append(newSide, n)
	}

	trees := &domain.UnionTrees{
		Old: hierarchy.Build(oldSide, nil),
		New: hierarchy.Build(newSide, nil),
	}

	log := r.Log
	if log == nil {
		log = &logger.NullLogger{}
	}
	log.Debug("union structure created",
		"paths", len(paths),
		"old_roots", len(trees.Old.Roots()),
		"new_roots", len(trees.New.Roots()),
	)

	return trees, nil
}

// unionPaths returns every path of either map in byte-wise lexicographic
// order. Every ancestor path is a string prefix of its descendants, so
// ancestors always sort before descendants.
func unionPaths(oldMap, newMap *flatten.Map) []string {
	seen := make(map[string]bool, oldMap.Len()+newMap.Len())
	paths := make([]string, 0, oldMap.Len()+newMap.Len())
	for _, m := range []*flatten.Map{oldMap, newMap} {
		for _, p := range m.Paths() {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	sort.Strings(paths)
	return paths
}
