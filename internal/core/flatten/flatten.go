// Package flatten turns a snapshot's entry tree into a path-keyed map.
package flatten

import "github.com/Ning0612/snapdiff/internal/domain"

// Map is a path-keyed view over every entry of a tree.
// It points into the tree it was built from; callers must not mutate
// entries obtained from it.
type Map struct {
	order   []string
	entries map[string]*domain.Entry
}

// Flatten walks roots depth-first, parent before children, siblings in
// input order, and indexes every entry by its relative path.
// If a path occurs twice the first entry visited wins.
func Flatten(roots []domain.Entry) *Map {
	m := &Map{entries: make(map[string]*domain.Entry)}

	var walk func(entries []domain.Entry)
	walk = func(entries []domain.Entry) {
		for i := range entries {
			e := &entries[i]
			if _, exists := m.entries[e.RelativePath]; !exists {
				m.entries[e.RelativePath] = e
				m.order = append(m.order, e.RelativePath)
			}
			walk(e.Children)
		}
	}
	walk(roots)

	return m
}

// Snapshot flattens a snapshot's entries. A nil snapshot yields an empty map.
func Snapshot(s *domain.Snapshot) *Map {
	if s == nil {
		return Flatten(nil)
	}
	return Flatten(s.Entries)
}

// Get returns the entry at path
func (m *Map) Get(path string) (*domain.Entry, bool) {
	e, ok := m.entries[path]
	return e, ok
}

// Has reports whether path is present
func (m *Map) Has(path string) bool {
	_, ok := m.entries[path]
	return ok
}

// Paths returns all paths in traversal order
func (m *Map) Paths() []string {
	return append([]string(nil), m.order...)
}

// Len returns the number of distinct paths
func (m *Map) Len() int {
	return len(m.order)
}
