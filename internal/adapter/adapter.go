// Package adapter defines the read-only listing backends a scan walks.
package adapter

import (
	"context"
	"fmt"

	"github.com/Ning0612/snapdiff/internal/adapter/gdrive"
	"github.com/Ning0612/snapdiff/internal/adapter/local"
	"github.com/Ning0612/snapdiff/internal/domain"
)

// Adapter defines the interface for listing backends.
// All implementations must handle path normalization internally
// and return domain-level errors for consistent error handling.
type Adapter interface {
	// List returns the direct children of the given directory.
	// Path is slash-separated and relative to the adapter's root; ""
	// means the root itself. Returned entries carry RelativePath set
	// relative to the root and no children.
	// Returns domain.ErrNotFound if path doesn't exist
	// Returns domain.ErrNotDirectory if path is a file
	// Returns domain.ErrPermissionDenied if the directory can't be read
	List(ctx context.Context, path string) ([]domain.Entry, error)

	// Stat returns metadata for a single path
	// Returns domain.ErrNotFound if path doesn't exist
	Stat(ctx context.Context, path string) (domain.Entry, error)

	// Root returns the location the adapter lists from
	Root() string

	// Close releases any resources held by the adapter
	Close() error
}

// Compile-time interface checks
var (
	_ Adapter = (*local.Adapter)(nil)
	_ Adapter = (*gdrive.Adapter)(nil)
)

// Open returns an adapter for the given transport rooted at root.
// A zero transport opens the local filesystem.
func Open(ctx context.Context, transport domain.Transport, root string) (Adapter, error) {
	switch transport.Type {
	case domain.TransportLocal, "":
		return local.New(root)
	case domain.TransportGDrive:
		return gdrive.New(ctx, transport.ClientID, transport.ClientSecret, transport.TokenPath, root)
	default:
		return nil, fmt.Errorf("%w: unsupported transport type %q", domain.ErrConfigInvalid, transport.Type)
	}
}
