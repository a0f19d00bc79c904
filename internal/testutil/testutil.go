package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

// TempDir creates a scratch directory and returns it with its cleanup
func TempDir(t *testing.T) (string, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "snapdiff-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	return dir, func() { os.RemoveAll(dir) }
}

// CreateTestFile writes content to dir/name. name is slash separated and
// missing parents are created.
func CreateTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create parent dir: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

// CreateTestDir creates a (possibly nested) directory under dir
func CreateTestDir(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("failed to create test dir: %v", err)
	}
	return path
}

// WriteTree materializes files (relative path to content) under dir and
// stamps every file with mtime, so scans of the tree are reproducible.
func WriteTree(t *testing.T, dir string, files map[string]string, mtime time.Time) {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := CreateTestFile(t, dir, name, []byte(files[name]))
		SetModTime(t, path, mtime)
	}
}

// SetModTime sets both access and modification time of path
func SetModTime(t *testing.T, path string, mtime time.Time) {
	t.Helper()

	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to set mtime: %v", err)
	}
}

// UniqueName returns prefix followed by a short random suffix
func UniqueName(prefix string) string {
	return prefix + uuid.NewString()[:8]
}
