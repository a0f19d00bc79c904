package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ning0612/snapdiff/internal/adapter"
	"github.com/Ning0612/snapdiff/internal/annotate"
	"github.com/Ning0612/snapdiff/internal/config"
	"github.com/Ning0612/snapdiff/internal/domain"
	"github.com/Ning0612/snapdiff/internal/lock"
	"github.com/Ning0612/snapdiff/internal/snapshotio"
	"github.com/Ning0612/snapdiff/internal/state"
	"github.com/Ning0612/snapdiff/internal/testutil"
)

var mtime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	testutil.WriteTree(t, dir, files, mtime)
}

func testConfig(storeDir string) *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Dir: storeDir},
		Transports: []domain.Transport{
			{Name: "disk", Type: domain.TransportLocal},
		},
	}
}

type fixture struct {
	oldDir string
	newDir string
	store  *state.Manager
	cfg    *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	f := &fixture{
		oldDir: filepath.Join(root, "v1"),
		newDir: filepath.Join(root, "v2"),
		cfg:    testConfig(filepath.Join(root, "store")),
	}
	writeTree(t, f.oldDir, map[string]string{
		"a.txt":       "hello",
		"b.txt":       "gone soon",
		"docs/readme": "docs",
	})
	writeTree(t, f.newDir, map[string]string{
		"a.txt":       "hello world",
		"c.txt":       "new",
		"docs/readme": "docs",
	})

	store, err := state.NewManager(f.cfg.StoreDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	f.store = store
	return f
}

func (f *fixture) service(t *testing.T, opts Options) *CompareService {
	t.Helper()
	svc, err := NewCompareService(f.cfg, f.store, opts)
	if err != nil {
		t.Fatalf("NewCompareService failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestNewCompareService_NilConfig(t *testing.T) {
	if _, err := NewCompareService(nil, nil, Options{}); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestCompare_Directories(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, Options{Version: "2.0"})
	ctx := context.Background()

	c, err := svc.Compare(ctx, f.oldDir, f.newDir)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if c.Old.Kind != RefDir || c.New.Kind != RefDir {
		t.Errorf("expected dir refs, got %s and %s", c.Old.Kind, c.New.Kind)
	}
	if c.New.Snapshot.Version != "2.0" {
		t.Errorf("expected version 2.0, got %q", c.New.Snapshot.Version)
	}

	assertPaths(t, "added", c.Result.Added, []string{"c.txt"})
	assertPaths(t, "deleted", c.Result.Deleted, []string{"b.txt"})
	assertPaths(t, "modified", c.Result.Modified, []string{"a.txt"})
	if c.Result.Stats.UnchangedFiles != 1 {
		t.Errorf("expected 1 unchanged file, got %d", c.Result.Stats.UnchangedFiles)
	}

	if c.Union == nil || c.Union.Old.Len() != c.Union.New.Len() {
		t.Fatal("union trees missing or misaligned")
	}

	if c.Old.Record == nil || c.New.Record == nil {
		t.Fatal("scanned snapshots should be stored")
	}
	if c.HistoryID == 0 {
		t.Error("comparison should be recorded")
	}

	history, err := f.store.GetHistory(ctx, 10)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(history))
	}
	h := history[0]
	if h.Added != 1 || h.Deleted != 1 || h.Modified != 1 || h.Unchanged != 1 {
		t.Errorf("unexpected history counts: %+v", h)
	}
}

func assertPaths(t *testing.T, what string, entries []domain.Entry, want []string) {
	t.Helper()
	got := testutil.PathsOf(entries)
	if len(got) != len(want) {
		t.Errorf("%s: got %v, want %v", what, got, want)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s: got %v, want %v", what, got, want)
			return
		}
	}
}

func TestScan_ReusesUnchangedSnapshot(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, Options{})
	ctx := context.Background()

	first, err := svc.Scan(ctx, f.oldDir)
	if err != nil {
		t.Fatalf("first Scan failed: %v", err)
	}
	if first.Reused {
		t.Error("first scan cannot be reused")
	}

	second, err := svc.Scan(ctx, f.oldDir)
	if err != nil {
		t.Fatalf("second Scan failed: %v", err)
	}
	if !second.Reused {
		t.Error("unchanged tree should reuse the stored snapshot")
	}
	if second.Record.ID != first.Record.ID {
		t.Errorf("expected id %s, got %s", first.Record.ID, second.Record.ID)
	}
}

func TestScan_RejectsNonScannable(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, Options{})

	path := filepath.Join(t.TempDir(), "snap.json")
	if err := snapshotio.Save(path, testutil.Snap(testutil.File("x", 1, mtime))); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err := svc.Scan(context.Background(), path)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestResolve_SnapshotFile(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, Options{})
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "old.json")
	snap := testutil.Snap(testutil.File("a.txt", 5, mtime))
	if err := snapshotio.Save(path, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	c, err := svc.Compare(ctx, path, f.newDir)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if c.Old.Kind != RefFile || c.Old.Record != nil {
		t.Errorf("expected unstored file ref, got %+v", c.Old)
	}
	if c.HistoryID != 0 {
		t.Error("a comparison with an unstored side is not recorded")
	}
	assertPaths(t, "added", c.Result.Added, []string{"c.txt", "docs", "docs/readme"})
	assertPaths(t, "modified", c.Result.Modified, []string{"a.txt"})
}

func TestCompare_ForeignJSONFile(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, Options{})

	path := testutil.CreateTestFile(t, t.TempDir(), "package.json",
		[]byte(`{"name": "my-app", "dependencies": {"left-pad": "1.0.0"}}`))

	_, err := svc.Compare(context.Background(), path, f.newDir)
	if !errors.Is(err, domain.ErrMalformedData) {
		t.Fatalf("expected ErrMalformedData, got %v", err)
	}
	if !strings.Contains(err.Error(), "old snapshot") {
		t.Errorf("error should name the old side: %v", err)
	}
}

func TestResolve_StoredID(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, Options{})
	ctx := context.Background()

	scanned, err := svc.Scan(ctx, f.oldDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	for _, ref := range []string{scanned.Record.ID, scanned.Record.ID[:8], "id:" + scanned.Record.ID} {
		r, err := svc.Resolve(ctx, ref)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", ref, err)
		}
		if r.Kind != RefStored {
			t.Errorf("Resolve(%q): expected stored kind, got %s", ref, r.Kind)
		}
		if r.Record.ID != scanned.Record.ID {
			t.Errorf("Resolve(%q): got id %s", ref, r.Record.ID)
		}
		files, dirs := r.Snapshot.Count()
		if files != 3 || dirs != 1 {
			t.Errorf("Resolve(%q): got %d files, %d dirs", ref, files, dirs)
		}
	}
}

func TestResolve_Source(t *testing.T) {
	f := newFixture(t)
	f.cfg.Scan.Ignore = []string{"b.txt"}
	f.cfg.Sources = []domain.Source{
		{Name: "release", Transport: "disk", Root: f.oldDir, Ignore: []string{"docs"}},
	}
	svc := f.service(t, Options{})

	for _, ref := range []string{"release", "source:release"} {
		r, err := svc.Resolve(context.Background(), ref)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", ref, err)
		}
		if r.Kind != RefSource || r.Label != "release" {
			t.Errorf("Resolve(%q): got kind %s label %s", ref, r.Kind, r.Label)
		}
		paths := testutil.PathsOf(r.Snapshot.Entries)
		if len(paths) != 1 || paths[0] != "a.txt" {
			t.Errorf("Resolve(%q): ignores not applied, got %v", ref, paths)
		}
	}

	if _, err := svc.Resolve(context.Background(), "source:missing"); !errors.Is(err, domain.ErrSourceNotFound) {
		t.Errorf("expected ErrSourceNotFound, got %v", err)
	}
}

type countingAdapter struct {
	adapter.Adapter
	closed *int
}

func (c countingAdapter) Close() error {
	*c.closed++
	return c.Adapter.Close()
}

func TestSourceAdapterIsCachedAndClosed(t *testing.T) {
	f := newFixture(t)
	f.cfg.Sources = []domain.Source{{Name: "release", Transport: "disk", Root: f.oldDir}}

	svc, err := NewCompareService(f.cfg, f.store, Options{NoRecord: true})
	if err != nil {
		t.Fatalf("NewCompareService failed: %v", err)
	}

	opened, closed := 0, 0
	svc.SetOpener(func(ctx context.Context, tr domain.Transport, root string) (adapter.Adapter, error) {
		opened++
		a, err := adapter.Open(ctx, tr, root)
		if err != nil {
			return nil, err
		}
		return countingAdapter{Adapter: a, closed: &closed}, nil
	})

	for i := 0; i < 2; i++ {
		if _, err := svc.Resolve(context.Background(), "release"); err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
	}
	if opened != 1 {
		t.Errorf("expected 1 adapter to be opened, got %d", opened)
	}

	if err := svc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if closed != 1 {
		t.Errorf("expected 1 adapter to be closed, got %d", closed)
	}
}

func TestResolve_Errors(t *testing.T) {
	f := newFixture(t)
	withStore := f.service(t, Options{})
	noStore, err := NewCompareService(f.cfg, nil, Options{})
	if err != nil {
		t.Fatalf("NewCompareService failed: %v", err)
	}

	tests := []struct {
		name string
		svc  *CompareService
		ref  string
		want error
	}{
		{"empty", withStore, "  ", domain.ErrInvalidInput},
		{"unknown without store", noStore, "nothing-here", domain.ErrSourceUnavailable},
		{"unknown id", withStore, "nothing-here", domain.ErrSourceUnavailable},
		{"id without store", noStore, "id:abcdef", domain.ErrSourceUnavailable},
		{"missing file", withStore, "file:" + filepath.Join(t.TempDir(), "none.json"), domain.ErrSourceUnavailable},
		{"missing dir", withStore, "dir:" + filepath.Join(t.TempDir(), "none"), domain.ErrSourceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.Resolve(context.Background(), tt.ref)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCompare_NoRecord(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, Options{NoRecord: true})
	ctx := context.Background()

	c, err := svc.Compare(ctx, f.oldDir, f.newDir)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if c.Old.Record != nil || c.HistoryID != 0 {
		t.Error("nothing should be stored")
	}

	recs, err := f.store.ListSnapshots(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected empty store, got %d snapshots", len(recs))
	}
}

func TestCompare_ErrorNamesSide(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, Options{})

	_, err := svc.Compare(context.Background(), f.oldDir, "dir:"+filepath.Join(t.TempDir(), "none"))
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if got := err.Error(); len(got) < 4 || got[:4] != "new " {
		t.Errorf("error should name the new side: %q", got)
	}
}

func TestAnnotate_StoresNotes(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, Options{})
	ctx := context.Background()

	scanned, err := svc.Scan(ctx, f.oldDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	notes := []annotate.Note{
		{Path: "a.txt", Text: "greeting"},
		{Path: "zzz", Text: "nobody"},
	}
	out, report, err := svc.Annotate(ctx, scanned.Record.ID, notes)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if report.Applied != 1 || len(report.Unknown) != 1 || report.Unknown[0] != "zzz" {
		t.Errorf("unexpected report: %+v", report)
	}
	if out.Record == nil || out.Record.ID == scanned.Record.ID {
		t.Fatal("annotated snapshot should be stored as a new record")
	}
	if out.Record.Label != scanned.Record.Label {
		t.Errorf("expected label %s, got %s", scanned.Record.Label, out.Record.Label)
	}

	snap, _, err := f.store.LoadSnapshot(ctx, out.Record.ID)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	for _, e := range snap.Entries {
		if e.RelativePath == "a.txt" && e.Note != "greeting" {
			t.Errorf("note not stored, got %q", e.Note)
		}
	}
}

func TestScan_StoreLocked(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, Options{})

	other, err := lock.New(f.cfg.StoreDir())
	if err != nil {
		t.Fatalf("lock.New failed: %v", err)
	}
	if err := other.Acquire("scan elsewhere"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer other.Release()

	_, err = svc.Scan(context.Background(), f.oldDir)
	if !lock.IsLockError(err) {
		t.Errorf("expected LockError, got %v", err)
	}
}
