package domain

import (
	"fmt"
	"strings"
)

// Classification is the diff outcome assigned to a path
type Classification int

const (
	// None means no comparison has classified the entry yet
	None Classification = iota
	Added
	Deleted
	Modified
	Unchanged
)

// String returns the string representation of the classification
func (c Classification) String() string {
	switch c {
	case None:
		return "none"
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case Modified:
		return "modified"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// ParseClassification parses a string into a Classification (case-insensitive)
func ParseClassification(s string) (Classification, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return None, nil
	case "added":
		return Added, nil
	case "deleted":
		return Deleted, nil
	case "modified":
		return Modified, nil
	case "unchanged":
		return Unchanged, nil
	}
	return None, fmt.Errorf("%w: unknown classification %q", ErrInvalidInput, s)
}

// PresenceRole tells a renderer whether a union-tree cell holds a real entry
// or a placeholder for a path the snapshot on that side does not contain.
type PresenceRole int

const (
	Present PresenceRole = iota
	Placeholder
)

// String returns the string representation of the presence role
func (p PresenceRole) String() string {
	switch p {
	case Present:
		return "present"
	case Placeholder:
		return "placeholder"
	default:
		return "unknown"
	}
}
