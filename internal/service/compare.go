package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ning0612/snapdiff/internal/adapter"
	"github.com/Ning0612/snapdiff/internal/annotate"
	"github.com/Ning0612/snapdiff/internal/config"
	"github.com/Ning0612/snapdiff/internal/core/diff"
	"github.com/Ning0612/snapdiff/internal/core/union"
	"github.com/Ning0612/snapdiff/internal/domain"
	"github.com/Ning0612/snapdiff/internal/lock"
	"github.com/Ning0612/snapdiff/internal/logger"
	"github.com/Ning0612/snapdiff/internal/progress"
	"github.com/Ning0612/snapdiff/internal/scanner"
	"github.com/Ning0612/snapdiff/internal/snapshotio"
	"github.com/Ning0612/snapdiff/internal/state"
)

// RefKind tells where a resolved snapshot came from
type RefKind string

const (
	RefSource RefKind = "source"
	RefDir    RefKind = "dir"
	RefFile   RefKind = "file"
	RefStored RefKind = "id"
)

// Resolved is a snapshot obtained from a reference
type Resolved struct {
	Ref      string
	Kind     RefKind
	Label    string
	Snapshot *domain.Snapshot

	// Record is set when the snapshot lives in the store
	Record *state.SnapshotRecord
	// Reused is true when a fresh scan matched the latest stored snapshot
	Reused bool
}

// Comparison bundles the outputs of one compare run
type Comparison struct {
	Old       *Resolved
	New       *Resolved
	Result    *domain.ComparisonResult
	Union     *domain.UnionTrees
	HistoryID int64
}

// Options configures a CompareService
type Options struct {
	// Version is stored on scanned snapshots
	Version string

	// NoRecord disables storing scans and comparison history
	NoRecord bool
}

// Opener creates an adapter for a transport, adapter.Open by default
type Opener func(ctx context.Context, transport domain.Transport, root string) (adapter.Adapter, error)

// CompareService resolves snapshot references and compares them
type CompareService struct {
	config   *config.Config
	store    *state.Manager
	lock     *lock.StoreLock
	opts     Options
	adapters map[string]adapter.Adapter
	reporter progress.Reporter
	opener   Opener
}

// NewCompareService creates a service. store may be nil, in which case
// nothing is recorded and stored ids cannot be resolved.
func NewCompareService(cfg *config.Config, store *state.Manager, opts Options) (*CompareService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	s := &CompareService{
		config:   cfg,
		store:    store,
		opts:     opts,
		adapters: make(map[string]adapter.Adapter),
		opener:   adapter.Open,
	}

	if store != nil && cfg.StoreDir() != "" {
		l, err := lock.New(cfg.StoreDir())
		if err != nil {
			return nil, fmt.Errorf("failed to create store lock: %w", err)
		}
		s.lock = l
	}
	return s, nil
}

// SetProgressReporter sets the reporter used by scans
func (s *CompareService) SetProgressReporter(reporter progress.Reporter) {
	s.reporter = reporter
}

// SetOpener replaces the adapter factory
func (s *CompareService) SetOpener(o Opener) {
	s.opener = o
}

func (s *CompareService) getReporter() progress.Reporter {
	if s.reporter != nil {
		return s.reporter
	}
	return progress.NullReporter{}
}

func (s *CompareService) recording() bool {
	return s.store != nil && !s.opts.NoRecord
}

// getAdapter returns or opens the adapter for a configured source
func (s *CompareService) getAdapter(ctx context.Context, src *domain.Source) (adapter.Adapter, error) {
	if a, ok := s.adapters[src.Name]; ok {
		return a, nil
	}

	transport, err := s.config.GetTransport(src.Transport)
	if err != nil {
		return nil, err
	}

	a, err := s.opener(ctx, *transport, src.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: source %s: %v", domain.ErrSourceUnavailable, src.Name, err)
	}

	s.adapters[src.Name] = a
	return a, nil
}

// Resolve turns a reference into a snapshot.
//
// A reference may carry an explicit kind prefix (source:, dir:, file:,
// id:). Without one it is tried in order as a configured source name, an
// existing directory, an existing snapshot file and a stored snapshot id.
// Sources and directories are scanned and, when recording, stored.
func (s *CompareService) Resolve(ctx context.Context, ref string) (*Resolved, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("%w: empty snapshot reference", domain.ErrInvalidInput)
	}

	if kind, rest, ok := splitRef(ref); ok {
		switch kind {
		case RefSource:
			src, err := s.config.GetSource(rest)
			if err != nil {
				return nil, err
			}
			return s.scanSource(ctx, ref, src)
		case RefDir:
			return s.scanDir(ctx, ref, rest)
		case RefFile:
			return s.loadFile(ref, rest)
		case RefStored:
			return s.loadStored(ctx, ref, rest)
		}
	}

	if src, err := s.config.GetSource(ref); err == nil {
		return s.scanSource(ctx, ref, src)
	}

	if info, err := os.Stat(config.ExpandPath(ref)); err == nil {
		if info.IsDir() {
			return s.scanDir(ctx, ref, ref)
		}
		return s.loadFile(ref, ref)
	}

	if s.store != nil {
		return s.loadStored(ctx, ref, ref)
	}

	return nil, fmt.Errorf("%w: %s is not a source, directory or snapshot file", domain.ErrSourceUnavailable, ref)
}

func splitRef(ref string) (RefKind, string, bool) {
	i := strings.Index(ref, ":")
	if i <= 0 {
		return "", "", false
	}
	kind := RefKind(ref[:i])
	switch kind {
	case RefSource, RefDir, RefFile, RefStored:
		return kind, ref[i+1:], true
	}
	return "", "", false
}

func (s *CompareService) scanSource(ctx context.Context, ref string, src *domain.Source) (*Resolved, error) {
	a, err := s.getAdapter(ctx, src)
	if err != nil {
		logger.Get().Error("failed to open source", "source", src.Name, "error", err)
		return nil, err
	}
	ignore := append(append([]string{}, s.config.Scan.Ignore...), src.Ignore...)
	return s.scan(ctx, ref, src.Name, RefSource, a, ignore)
}

func (s *CompareService) scanDir(ctx context.Context, ref, dir string) (*Resolved, error) {
	abs, err := filepath.Abs(config.ExpandPath(dir))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, dir, err)
	}
	a, err := s.opener(ctx, domain.Transport{Type: domain.TransportLocal}, abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, dir, err)
	}
	defer a.Close()
	return s.scan(ctx, ref, abs, RefDir, a, s.config.Scan.Ignore)
}

func (s *CompareService) scan(ctx context.Context, ref, label string, kind RefKind, a adapter.Adapter, ignore []string) (*Resolved, error) {
	log := logger.With("label", label)
	log.Info("scanning", "root", a.Root())

	sc, err := scanner.New(scanner.Options{
		Ignore:   ignore,
		Version:  s.opts.Version,
		Reporter: s.getReporter(),
		Log:      log,
	})
	if err != nil {
		return nil, err
	}

	snap, err := sc.Scan(ctx, a)
	if err != nil {
		log.Error("scan failed", "error", err)
		return nil, err
	}

	r := &Resolved{Ref: ref, Kind: kind, Label: label, Snapshot: snap}
	if !s.recording() {
		return r, nil
	}

	if err := s.withLock(fmt.Sprintf("scan %s", label), func() error {
		rec, existed, err := s.store.SaveSnapshot(ctx, label, snap)
		if err != nil {
			return err
		}
		r.Record = &rec
		r.Reused = existed
		return nil
	}); err != nil {
		log.Error("failed to store snapshot", "error", err)
		return nil, err
	}

	log.Info("scan stored", "id", r.Record.ID, "reused", r.Reused)
	return r, nil
}

func (s *CompareService) loadFile(ref, path string) (*Resolved, error) {
	path = config.ExpandPath(path)
	snap, err := snapshotio.Load(path)
	if err != nil {
		logger.Get().Error("failed to load snapshot file", "path", path, "error", err)
		return nil, err
	}
	return &Resolved{Ref: ref, Kind: RefFile, Label: path, Snapshot: snap}, nil
}

func (s *CompareService) loadStored(ctx context.Context, ref, id string) (*Resolved, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: no snapshot store for %s", domain.ErrSourceUnavailable, id)
	}
	snap, rec, err := s.store.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Resolved{Ref: ref, Kind: RefStored, Label: rec.Label, Snapshot: snap, Record: &rec}, nil
}

// Scan resolves ref, which must name a source or directory
func (s *CompareService) Scan(ctx context.Context, ref string) (*Resolved, error) {
	r, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if r.Kind != RefSource && r.Kind != RefDir {
		return nil, fmt.Errorf("%w: %s is a %s, not a scannable source", domain.ErrInvalidInput, ref, r.Kind)
	}
	return r, nil
}

// Compare resolves both references, one after the other, then classifies
// every path and builds the aligned union trees. When both snapshots are
// stored the comparison is added to the history.
func (s *CompareService) Compare(ctx context.Context, oldRef, newRef string) (*Comparison, error) {
	logger.Get().Debug("comparing", "old", oldRef, "new", newRef)

	oldRes, err := s.Resolve(ctx, oldRef)
	if err != nil {
		return nil, fmt.Errorf("old snapshot: %w", err)
	}
	newRes, err := s.Resolve(ctx, newRef)
	if err != nil {
		return nil, fmt.Errorf("new snapshot: %w", err)
	}

	engine := diff.NewEngine()
	engine.Log = logger.With("component", "diff")
	result, err := engine.Compare(oldRes.Snapshot, newRes.Snapshot)
	if err != nil {
		return nil, err
	}

	reconciler := union.NewReconciler()
	reconciler.Log = logger.With("component", "union")
	trees, err := reconciler.CreateUnionStructure(oldRes.Snapshot, newRes.Snapshot)
	if err != nil {
		return nil, err
	}

	c := &Comparison{Old: oldRes, New: newRes, Result: result, Union: trees}

	if s.recording() && oldRes.Record != nil && newRes.Record != nil {
		rec := state.NewComparisonRecord(*oldRes.Record, *newRes.Record, result)
		if err := s.withLock("compare", func() error {
			id, err := s.store.RecordComparison(ctx, rec)
			c.HistoryID = id
			return err
		}); err != nil {
			logger.Get().Error("failed to record comparison", "error", err)
			return nil, err
		}
	}

	logger.Get().Info("comparison finished",
		"old", oldRes.Label,
		"new", newRes.Label,
		"added", len(result.Added),
		"deleted", len(result.Deleted),
		"modified", len(result.Modified),
	)
	return c, nil
}

// Annotate applies notes to the snapshot behind ref. Stored and scanned
// snapshots are stored again with the notes under the same label.
func (s *CompareService) Annotate(ctx context.Context, ref string, notes []annotate.Note) (*Resolved, annotate.Report, error) {
	r, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, annotate.Report{}, err
	}

	annotated, report, err := annotate.Apply(r.Snapshot, notes)
	if err != nil {
		return nil, annotate.Report{}, err
	}
	for _, p := range report.Unknown {
		logger.Get().Warn("note for unknown path", "path", p)
	}

	out := &Resolved{Ref: r.Ref, Kind: r.Kind, Label: r.Label, Snapshot: annotated}
	if !s.recording() || r.Record == nil {
		return out, report, nil
	}

	if err := s.withLock("annotate "+r.Label, func() error {
		rec, existed, err := s.store.SaveSnapshot(ctx, r.Label, annotated)
		if err != nil {
			return err
		}
		out.Record = &rec
		out.Reused = existed
		return nil
	}); err != nil {
		return nil, annotate.Report{}, err
	}
	return out, report, nil
}

// withLock runs fn while holding the store lock
func (s *CompareService) withLock(operation string, fn func() error) error {
	if s.lock == nil {
		return fn()
	}
	if err := s.lock.Acquire(operation); err != nil {
		return err
	}
	err := fn()
	if rerr := s.lock.Release(); rerr != nil {
		logger.Get().Warn("failed to release store lock", "error", rerr)
	}
	return err
}

// Close releases all adapters
func (s *CompareService) Close() error {
	var errs []error
	for name, a := range s.adapters {
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(s.adapters, name)
	}
	return errors.Join(errs...)
}

var _ io.Closer = (*CompareService)(nil)
