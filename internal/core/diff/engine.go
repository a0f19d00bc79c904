package diff

import (
	"fmt"
	"sort"

	"github.com/Ning0612/snapdiff/internal/core/flatten"
	"github.com/Ning0612/snapdiff/internal/domain"
	"github.com/Ning0612/snapdiff/internal/logger"
)

// Engine compares snapshots path by path
type Engine struct {
	Comparer Comparer
	Log      logger.Logger
}

// NewEngine creates an engine with the default comparer and no logging
func NewEngine() *Engine {
	return &Engine{
		Comparer: NewDefaultComparer(),
		Log:      &logger.NullLogger{},
	}
}

// Compare classifies every path of oldSnap and newSnap.
// It is shorthand for NewEngine().Compare.
func Compare(oldSnap, newSnap *domain.Snapshot) (*domain.ComparisonResult, error) {
	return NewEngine().Compare(oldSnap, newSnap)
}

// Compare classifies every path in the union of both snapshots.
//
// Added, deleted and modified paths are returned as children-stripped
// copies sorted by relative path; unchanged paths are only counted.
// Neither snapshot is modified.
func (e *Engine) Compare(oldSnap, newSnap *domain.Snapshot) (*domain.ComparisonResult, error) {
	if oldSnap == nil {
		return nil, fmt.Errorf("%w: old snapshot is nil", domain.ErrInvalidInput)
	}
	if newSnap == nil {
		return nil, fmt.Errorf("%w: new snapshot is nil", domain.ErrInvalidInput)
	}

	comparer := e.Comparer
	if comparer == nil {
		comparer = NewDefaultComparer()
	}

	oldMap := flatten.Snapshot(oldSnap)
	newMap := flatten.Snapshot(newSnap)

	result := &domain.ComparisonResult{
		Added:    make([]domain.Entry, 0),
		Deleted:  make([]domain.Entry, 0),
		Modified: make([]domain.Entry, 0),
	}

	// Added, modified and unchanged: walk the new side
	for _, path := range newMap.Paths() {
		newEntry, _ := newMap.Get(path)
		oldEntry, _ := oldMap.Get(path)

		switch comparer.Compare(oldEntry, newEntry) {
		case domain.Added:
			result.Added = append(result.Added, tag(newEntry, domain.Added))
		case domain.Modified:
			result.Modified = append(result.Modified, tag(newEntry, domain.Modified))
		case domain.Unchanged:
			if !newEntry.IsDir {
				result.Stats.UnchangedFiles++
			}
		}
	}

	// Deleted: walk the old side
	for _, path := range oldMap.Paths() {
		if newMap.Has(path) {
			continue
		}
		oldEntry, _ := oldMap.Get(path)
		result.Deleted = append(result.Deleted, tag(oldEntry, domain.Deleted))
	}

	sortByPath(result.Added)
	sortByPath(result.Deleted)
	sortByPath(result.Modified)

	countStats(result)

	log := e.Log
	if log == nil {
		log = &logger.NullLogger{}
	}
	log.Debug("snapshots compared",
		"old_paths", oldMap.Len(),
		"new_paths", newMap.Len(),
		"added", len(result.Added),
		"deleted", len(result.Deleted),
		"modified", len(result.Modified),
		"unchanged_files", result.Stats.UnchangedFiles,
	)

	return result, nil
}

// tag returns a flat copy of e carrying the given classification
func tag(e *domain.Entry, status domain.Classification) domain.Entry {
	c := e.Shallow()
	c.Status = status
	return c
}

func sortByPath(entries []domain.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RelativePath < entries[j].RelativePath
	})
}

// countStats splits the categorized lists into file and directory counts.
// UnchangedFiles is filled in while matching and left untouched here.
func countStats(result *domain.ComparisonResult) {
	for _, e := range result.Added {
		if e.IsDir {
			result.Stats.AddedDirs++
		} else {
			result.Stats.AddedFiles++
		}
	}
	for _, e := range result.Deleted {
		if e.IsDir {
			result.Stats.DeletedDirs++
		} else {
			result.Stats.DeletedFiles++
		}
	}
	for _, e := range result.Modified {
		if e.IsDir {
			result.Stats.ModifiedDirs++
		} else {
			result.Stats.ModifiedFiles++
		}
	}
}
