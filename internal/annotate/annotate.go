// Package annotate attaches free-text notes to snapshot entries from CSV.
package annotate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Ning0612/snapdiff/internal/domain"
)

// Note is one row of an annotation file
type Note struct {
	Path string
	Text string
}

// Report summarizes an Apply call
type Report struct {
	Applied int
	// Unknown lists note paths that matched no entry, in file order
	Unknown []string
}

// Read parses CSV rows of the form relative_path,note.
// A first row whose first column is "relative_path" is treated as a header.
// Paths are normalized; rows with an empty path are rejected.
func Read(r io.Reader) ([]Note, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var notes []Note
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedData, err)
		}
		line++

		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "relative_path") {
			continue
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("%w: line %d: expected relative_path,note", domain.ErrMalformedData, line)
		}

		path := domain.NormalizePath(strings.TrimSpace(rec[0]))
		if path == "" {
			return nil, fmt.Errorf("%w: line %d: empty path", domain.ErrMalformedData, line)
		}
		notes = append(notes, Note{Path: path, Text: rec[1]})
	}
	return notes, nil
}

// ReadFile parses an annotation file
func ReadFile(path string) ([]Note, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer f.Close()
	return Read(f)
}

// Apply returns a copy of s with notes attached to matching entries.
// When a path appears more than once the last note wins. s is not modified.
func Apply(s *domain.Snapshot, notes []Note) (*domain.Snapshot, Report, error) {
	var report Report
	if s == nil {
		return nil, report, fmt.Errorf("%w: snapshot is nil", domain.ErrInvalidInput)
	}

	byPath := make(map[string]string, len(notes))
	for _, n := range notes {
		byPath[n.Path] = n.Text
	}

	out := *s
	out.Entries = make([]domain.Entry, len(s.Entries))
	matched := make(map[string]bool, len(byPath))

	var walk func(entries []domain.Entry)
	walk = func(entries []domain.Entry) {
		for i := range entries {
			if text, ok := byPath[entries[i].RelativePath]; ok {
				entries[i].Note = text
				matched[entries[i].RelativePath] = true
			}
			walk(entries[i].Children)
		}
	}
	for i := range s.Entries {
		out.Entries[i] = s.Entries[i].Clone()
	}
	walk(out.Entries)

	seen := make(map[string]bool, len(notes))
	for _, n := range notes {
		if seen[n.Path] {
			continue
		}
		seen[n.Path] = true
		if matched[n.Path] {
			report.Applied++
		} else {
			report.Unknown = append(report.Unknown, n.Path)
		}
	}

	return &out, report, nil
}

// Write emits notes for every annotated entry of s as CSV with a header
func Write(w io.Writer, s *domain.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"relative_path", "note"}); err != nil {
		return err
	}

	var walk func(entries []domain.Entry) error
	walk = func(entries []domain.Entry) error {
		for _, e := range entries {
			if e.Note != "" {
				if err := cw.Write([]string{e.RelativePath, e.Note}); err != nil {
					return err
				}
			}
			if err := walk(e.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if s != nil {
		if err := walk(s.Entries); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
