package domain

import "time"

// Entry is a single file or directory recorded in a snapshot
type Entry struct {
	// Name is the base name of the entry
	Name string

	// FullPath is the location the entry was scanned from (informational only)
	FullPath string

	// RelativePath is the slash-separated path from the snapshot root.
	// It is the key used for all cross-snapshot matching.
	RelativePath string

	// IsDir reports whether the entry is a directory
	IsDir bool

	// Size in bytes (0 for directories)
	Size int64

	// ModTime is the last modification time
	ModTime time.Time

	// Children are owned exclusively by this entry
	Children []Entry

	// Status is assigned by a comparison; None before that
	Status Classification

	// Presence marks synthesized placeholder rows in union trees
	Presence PresenceRole

	// Note is a free-text annotation attached by the import step
	Note string
}

// Shallow returns a copy of the entry with its children stripped.
// The copy never shares memory with the receiver.
func (e Entry) Shallow() Entry {
	e.Children = nil
	return e
}

// Clone returns a deep copy of the entry and all of its descendants
func (e Entry) Clone() Entry {
	if len(e.Children) == 0 {
		e.Children = nil
		return e
	}
	children := make([]Entry, len(e.Children))
	for i := range e.Children {
		children[i] = e.Children[i].Clone()
	}
	e.Children = children
	return e
}

// IsPlaceholder returns true if the entry was synthesized for a missing side
func (e Entry) IsPlaceholder() bool {
	return e.Presence == Placeholder
}

// NewPlaceholder builds a synthetic stand-in for a path that one side lacks.
// It keeps the name, path and directory flag of the entry that does exist,
// with zero size and the zero time as timestamp.
func NewPlaceholder(of Entry) Entry {
	return Entry{
		Name:         of.Name,
		RelativePath: of.RelativePath,
		IsDir:        of.IsDir,
		Presence:     Placeholder,
	}
}
