package diff

import "github.com/Ning0612/snapdiff/internal/domain"

// Comparer classifies one path given its old and new entries
type Comparer interface {
	// Compare returns Added when only newEntry exists, Deleted when only
	// oldEntry exists, and Modified or Unchanged when both exist
	Compare(oldEntry, newEntry *domain.Entry) domain.Classification
}

// DefaultComparer uses the directory flag, then size + mtime for files
type DefaultComparer struct{}

// NewDefaultComparer creates a new DefaultComparer
func NewDefaultComparer() *DefaultComparer {
	return &DefaultComparer{}
}

// Compare implements the Comparer interface
func (c *DefaultComparer) Compare(oldEntry, newEntry *domain.Entry) domain.Classification {
	switch {
	case oldEntry == nil && newEntry == nil:
		return domain.None
	case oldEntry == nil:
		return domain.Added
	case newEntry == nil:
		return domain.Deleted
	case IsModified(oldEntry, newEntry):
		return domain.Modified
	default:
		return domain.Unchanged
	}
}

// IsModified reports whether a path present on both sides changed.
//
// A file that became a directory (or the reverse) is always modified.
// Files are modified when size or mtime differ; mtime uses Time.Equal so
// monotonic readings and locations do not matter. Directories are never
// modified themselves, only their descendants surface as changes.
func IsModified(oldEntry, newEntry *domain.Entry) bool {
	if oldEntry.IsDir != newEntry.IsDir {
		return true
	}
	if oldEntry.IsDir {
		return false
	}
	if oldEntry.Size != newEntry.Size {
		return true
	}
	return !oldEntry.ModTime.Equal(newEntry.ModTime)
}
