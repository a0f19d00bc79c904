package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/Ning0612/snapdiff/internal/domain"
)

// Adapter lists directories of the local filesystem. All access goes
// through an os.Root, so nothing outside the root is ever read.
type Adapter struct {
	root string
	dir  *os.Root
}

// New opens root, which must be an existing directory
func New(root string) (*Adapter, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, mapError(err)
	}
	if !info.IsDir() {
		return nil, domain.ErrNotDirectory
	}

	dir, err := os.OpenRoot(abs)
	if err != nil {
		return nil, mapError(err)
	}
	return &Adapter{root: abs, dir: dir}, nil
}

// localName converts a slash-separated relative path to a name inside the
// root. Absolute paths and paths leaving the root are refused.
func localName(rel string) (string, error) {
	if rel == "" {
		return ".", nil
	}
	if filepath.IsAbs(rel) || rel[0] == '/' {
		return "", domain.ErrPermissionDenied
	}
	name := filepath.Clean(filepath.FromSlash(rel))
	if name != "." && !filepath.IsLocal(name) {
		return "", domain.ErrPermissionDenied
	}
	return name, nil
}

// List returns the direct children of the directory at path.
// Symlinks are recorded as files and never followed.
func (a *Adapter) List(ctx context.Context, path string) ([]domain.Entry, error) {
	name, err := localName(path)
	if err != nil {
		return nil, err
	}

	info, err := a.dir.Stat(name)
	if err != nil {
		return nil, mapError(err)
	}
	if !info.IsDir() {
		return nil, domain.ErrNotDirectory
	}

	f, err := a.dir.Open(name)
	if err != nil {
		return nil, mapError(err)
	}
	defer f.Close()

	dirents, err := f.ReadDir(-1)
	if err != nil {
		return nil, mapError(err)
	}

	parent := domain.NormalizePath(path)
	entries := make([]domain.Entry, 0, len(dirents))
	for _, d := range dirents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fi, err := d.Info()
		if err != nil {
			// removed between ReadDir and Lstat
			continue
		}
		entries = append(entries, a.entryFromOS(parent, fi))
	}
	return entries, nil
}

// Stat returns metadata for a single path without following symlinks
func (a *Adapter) Stat(ctx context.Context, path string) (domain.Entry, error) {
	name, err := localName(path)
	if err != nil {
		return domain.Entry{}, err
	}
	fi, err := a.dir.Lstat(name)
	if err != nil {
		return domain.Entry{}, mapError(err)
	}
	return a.entryFromOS(domain.ParentPath(domain.NormalizePath(path)), fi), nil
}

// Close releases the root handle
func (a *Adapter) Close() error {
	if a.dir == nil {
		return nil
	}
	if err := a.dir.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", a.root, err)
	}
	return nil
}

// Root returns the absolute root directory
func (a *Adapter) Root() string {
	return a.root
}

func (a *Adapter) entryFromOS(parent string, fi fs.FileInfo) domain.Entry {
	rel := domain.JoinPath(parent, fi.Name())
	e := domain.Entry{
		Name:         fi.Name(),
		FullPath:     filepath.Join(a.root, filepath.FromSlash(rel)),
		RelativePath: rel,
		IsDir:        fi.IsDir(),
		ModTime:      fi.ModTime(),
	}
	if !e.IsDir {
		e.Size = fi.Size()
	}
	return e
}

// mapError converts OS errors to domain errors
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return domain.ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return domain.ErrPermissionDenied
	case errors.Is(err, syscall.ENOTDIR):
		return domain.ErrNotDirectory
	}
	return err
}
