package domain

import "time"

// Snapshot is a timestamped recording of a directory tree
type Snapshot struct {
	// RootPath is the directory (or remote folder) that was scanned
	RootPath string

	// CreatedAt is when the scan started
	CreatedAt time.Time

	// Version is a free-form release label
	Version string

	// Entries are the root-level entries; they own the whole tree
	Entries []Entry
}

// Count returns the number of entries at every depth
func (s *Snapshot) Count() (files, dirs int) {
	if s == nil {
		return 0, 0
	}
	var walk func([]Entry)
	walk = func(entries []Entry) {
		for i := range entries {
			if entries[i].IsDir {
				dirs++
			} else {
				files++
			}
			walk(entries[i].Children)
		}
	}
	walk(s.Entries)
	return files, dirs
}

// TotalSize returns the sum of all file sizes in the snapshot
func (s *Snapshot) TotalSize() int64 {
	if s == nil {
		return 0
	}
	var total int64
	var walk func([]Entry)
	walk = func(entries []Entry) {
		for i := range entries {
			total += entries[i].Size
			walk(entries[i].Children)
		}
	}
	walk(s.Entries)
	return total
}
