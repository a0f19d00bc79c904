// Package snapshotio reads and writes snapshots as JSON documents.
package snapshotio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Ning0612/snapdiff/internal/domain"
)

// FormatVersion is written into every document and checked on read
const FormatVersion = 1

type document struct {
	Format    int       `json:"format"`
	RootPath  string    `json:"root_path"`
	CreatedAt time.Time `json:"created_at"`
	Version   string    `json:"version"`
	Entries   []record  `json:"entries"`
}

type record struct {
	Name         string    `json:"name"`
	FullPath     string    `json:"full_path,omitempty"`
	RelativePath string    `json:"relative_path"`
	IsDirectory  bool      `json:"is_directory"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	Note         string    `json:"note,omitempty"`
	Children     []record  `json:"children,omitempty"`
}

// Encode writes s to w as indented JSON
func Encode(w io.Writer, s *domain.Snapshot) error {
	if s == nil {
		return fmt.Errorf("%w: snapshot is nil", domain.ErrInvalidInput)
	}

	doc := document{
		Format:    FormatVersion,
		RootPath:  s.RootPath,
		CreatedAt: s.CreatedAt,
		Version:   s.Version,
		Entries:   toRecords(s.Entries),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Decode reads and validates a snapshot document from r
func Decode(r io.Reader) (*domain.Snapshot, error) {
	var doc *document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedData, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is null", domain.ErrMalformedData)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after document", domain.ErrMalformedData)
	}

	if doc.Format != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format %d", domain.ErrMalformedData, doc.Format)
	}

	entries, err := fromRecords(doc.Entries, "", make(map[string]struct{}))
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.Entry{}
	}

	return &domain.Snapshot{
		RootPath:  doc.RootPath,
		CreatedAt: doc.CreatedAt,
		Version:   doc.Version,
		Entries:   entries,
	}, nil
}

// Save writes s to path atomically using temp file + rename
func Save(path string, s *domain.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	encErr := Encode(f, s)
	closeErr := f.Close()
	if encErr != nil {
		os.Remove(tempPath)
		return encErr
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}
	return nil
}

// Load reads a snapshot file.
// A missing or unreadable file yields domain.ErrSourceUnavailable.
func Load(path string) (*domain.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer f.Close()

	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func toRecords(entries []domain.Entry) []record {
	if len(entries) == 0 {
		return nil
	}
	out := make([]record, len(entries))
	for i, e := range entries {
		out[i] = record{
			Name:         e.Name,
			FullPath:     e.FullPath,
			RelativePath: e.RelativePath,
			IsDirectory:  e.IsDir,
			Size:         e.Size,
			LastModified: e.ModTime,
			Note:         e.Note,
			Children:     toRecords(e.Children),
		}
	}
	return out
}

// fromRecords converts and validates records whose parent path is parent.
// seen collects every path of the document.
func fromRecords(records []record, parent string, seen map[string]struct{}) ([]domain.Entry, error) {
	if len(records) == 0 {
		return nil, nil
	}
	out := make([]domain.Entry, len(records))
	for i, r := range records {
		if err := validate(r, parent); err != nil {
			return nil, err
		}
		if _, dup := seen[r.RelativePath]; dup {
			return nil, fmt.Errorf("%w: duplicate path %q", domain.ErrMalformedData, r.RelativePath)
		}
		seen[r.RelativePath] = struct{}{}

		children, err := fromRecords(r.Children, r.RelativePath, seen)
		if err != nil {
			return nil, err
		}

		name := r.Name
		if name == "" {
			name = domain.BaseName(r.RelativePath)
		}

		out[i] = domain.Entry{
			Name:         name,
			FullPath:     r.FullPath,
			RelativePath: r.RelativePath,
			IsDir:        r.IsDirectory,
			Size:         r.Size,
			ModTime:      r.LastModified,
			Children:     children,
			Note:         r.Note,
		}
	}
	return out, nil
}

func validate(r record, parent string) error {
	switch {
	case r.RelativePath == "":
		return fmt.Errorf("%w: entry %q has no relative path", domain.ErrMalformedData, r.Name)
	case domain.NormalizePath(r.RelativePath) != r.RelativePath:
		return fmt.Errorf("%w: %q is not a normalized relative path", domain.ErrMalformedData, r.RelativePath)
	case hasDotSegment(r.RelativePath):
		return fmt.Errorf("%w: %q contains a dot segment", domain.ErrMalformedData, r.RelativePath)
	case r.Size < 0:
		return fmt.Errorf("%w: %q has negative size", domain.ErrMalformedData, r.RelativePath)
	case !r.IsDirectory && len(r.Children) > 0:
		return fmt.Errorf("%w: file %q has children", domain.ErrMalformedData, r.RelativePath)
	case parent != "" && domain.ParentPath(r.RelativePath) != parent:
		return fmt.Errorf("%w: %q is not a child of %q", domain.ErrMalformedData, r.RelativePath, parent)
	}
	return nil
}

func hasDotSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." || seg == "" {
			return true
		}
	}
	return false
}

