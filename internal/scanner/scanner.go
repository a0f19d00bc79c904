// Package scanner walks an adapter recursively and records a snapshot.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Ning0612/snapdiff/internal/adapter"
	"github.com/Ning0612/snapdiff/internal/adapter/local"
	"github.com/Ning0612/snapdiff/internal/domain"
	"github.com/Ning0612/snapdiff/internal/logger"
	"github.com/Ning0612/snapdiff/internal/progress"
)

// Options configures a Scanner
type Options struct {
	// Ignore holds doublestar patterns matched against relative paths.
	// A pattern without a slash also matches any single path segment.
	Ignore []string

	// Version is stored as the snapshot's release label
	Version string

	// Reporter receives scan events (NullReporter when nil)
	Reporter progress.Reporter

	// Log receives warnings about skipped subtrees (NullLogger when nil)
	Log logger.Logger

	// Now returns the snapshot creation time (time.Now when nil)
	Now func() time.Time
}

// Scanner records snapshots from adapters
type Scanner struct {
	ignore   []string
	version  string
	reporter progress.Reporter
	log      logger.Logger
	now      func() time.Time
}

// New creates a scanner, rejecting malformed ignore patterns
func New(opts Options) (*Scanner, error) {
	ignore := make([]string, 0, len(opts.Ignore))
	for _, p := range opts.Ignore {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: bad ignore pattern %q", domain.ErrInvalidInput, p)
		}
		ignore = append(ignore, domain.NormalizePath(p))
	}

	s := &Scanner{
		ignore:   ignore,
		version:  opts.Version,
		reporter: opts.Reporter,
		log:      opts.Log,
		now:      opts.Now,
	}
	if s.reporter == nil {
		s.reporter = progress.NullReporter{}
	}
	if s.log == nil {
		s.log = &logger.NullLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// ScanDir is a shorthand that scans a local directory
func ScanDir(ctx context.Context, root string, opts Options) (*domain.Snapshot, error) {
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	a, err := local.New(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, root, err)
	}
	defer a.Close()
	return s.Scan(ctx, a)
}

// Scan lists the adapter's root recursively.
//
// At every level directories come before files, each group ordered by
// name. Subtrees that cannot be read or vanish mid-scan are left out and
// reported as skips. Only an unreadable root fails the scan.
func (s *Scanner) Scan(ctx context.Context, a adapter.Adapter) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{
		RootPath:  a.Root(),
		CreatedAt: s.now(),
		Version:   s.version,
	}

	s.reporter.EnterDir("")
	children, err := a.List(ctx, "")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, a.Root(), err)
	}

	entries, err := s.collect(ctx, a, children)
	if err != nil {
		return nil, err
	}
	snap.Entries = entries

	s.reporter.Done()

	files, dirs := snap.Count()
	s.log.Info("scan complete",
		"root", snap.RootPath,
		"files", files,
		"dirs", dirs,
	)

	return snap, nil
}

// collect filters, orders and descends into one directory's listing
func (s *Scanner) collect(ctx context.Context, a adapter.Adapter, listing []domain.Entry) ([]domain.Entry, error) {
	kept := make([]domain.Entry, 0, len(listing))
	for _, e := range listing {
		if s.ignored(e.RelativePath) {
			s.log.Debug("ignored", "path", e.RelativePath)
			continue
		}
		kept = append(kept, e)
	}
	sortEntries(kept)

	for i := range kept {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e := &kept[i]
		s.reporter.Entry(e.RelativePath, e.IsDir, e.Size)
		if !e.IsDir {
			continue
		}

		s.reporter.EnterDir(e.RelativePath)
		children, err := a.List(ctx, e.RelativePath)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !skippable(err) {
				return nil, fmt.Errorf("listing %s: %w", e.RelativePath, err)
			}
			s.log.Warn("skipping unreadable directory", "path", e.RelativePath, "error", err)
			s.reporter.Skip(e.RelativePath, err)
			continue
		}

		sub, err := s.collect(ctx, a, children)
		if err != nil {
			return nil, err
		}
		if len(sub) > 0 {
			e.Children = sub
		}
	}

	return kept, nil
}

// ignored reports whether path matches an ignore pattern
func (s *Scanner) ignored(path string) bool {
	base := domain.BaseName(path)
	for _, p := range s.ignore {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
		if !strings.Contains(p, "/") {
			if ok, _ := doublestar.Match(p, base); ok {
				return true
			}
		}
	}
	return false
}

// skippable reports whether a listing error only affects its own subtree
func skippable(err error) bool {
	return errors.Is(err, domain.ErrPermissionDenied) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrNotDirectory)
}

// sortEntries puts directories before files, each ordered by name
func sortEntries(entries []domain.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
}
