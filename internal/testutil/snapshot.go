package testutil

import (
	"time"

	"github.com/Ning0612/snapdiff/internal/domain"
)

// T0 is a fixed timestamp for building deterministic snapshots
var T0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// File builds a file entry at a relative path
func File(path string, size int64, mtime time.Time) domain.Entry {
	return domain.Entry{
		Name:         domain.BaseName(path),
		FullPath:     "/fixture/" + path,
		RelativePath: path,
		Size:         size,
		ModTime:      mtime,
	}
}

// Dir builds a directory entry owning the given children
func Dir(path string, children ...domain.Entry) domain.Entry {
	return domain.Entry{
		Name:         domain.BaseName(path),
		FullPath:     "/fixture/" + path,
		RelativePath: path,
		IsDir:        true,
		ModTime:      T0,
		Children:     children,
	}
}

// Snap wraps top-level entries in a snapshot
func Snap(entries ...domain.Entry) *domain.Snapshot {
	if entries == nil {
		entries = []domain.Entry{}
	}
	return &domain.Snapshot{
		RootPath:  "/fixture",
		CreatedAt: T0,
		Version:   "1.0",
		Entries:   entries,
	}
}

// PathsOf returns the relative paths of entries in order
func PathsOf(entries []domain.Entry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.RelativePath
	}
	return paths
}
