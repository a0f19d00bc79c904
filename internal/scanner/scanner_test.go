package scanner

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/Ning0612/snapdiff/internal/core/flatten"
	"github.com/Ning0612/snapdiff/internal/domain"
	"github.com/Ning0612/snapdiff/internal/progress"
	"github.com/Ning0612/snapdiff/internal/testutil"
)

// memAdapter serves listings from memory
type memAdapter struct {
	dirs map[string][]domain.Entry
	errs map[string]error
}

func (m *memAdapter) List(ctx context.Context, path string) ([]domain.Entry, error) {
	if err := m.errs[path]; err != nil {
		return nil, err
	}
	entries, ok := m.dirs[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]domain.Entry(nil), entries...), nil
}

func (m *memAdapter) Stat(ctx context.Context, path string) (domain.Entry, error) {
	return domain.Entry{}, domain.ErrNotFound
}

func (m *memAdapter) Root() string { return "mem:/" }
func (m *memAdapter) Close() error { return nil }

func memFile(path string, size int64) domain.Entry {
	return domain.Entry{Name: domain.BaseName(path), RelativePath: path, Size: size, ModTime: testutil.T0}
}

func memDir(path string) domain.Entry {
	return domain.Entry{Name: domain.BaseName(path), RelativePath: path, IsDir: true, ModTime: testutil.T0}
}

func newScanner(t *testing.T, opts Options) *Scanner {
	t.Helper()
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestScan_DirectoriesFirstThenName(t *testing.T) {
	a := &memAdapter{dirs: map[string][]domain.Entry{
		"":  {memFile("b.txt", 1), memDir("z"), memFile("a.txt", 2), memDir("m")},
		"z": {memFile("z/1", 1)},
		"m": {},
	}}

	snap, err := newScanner(t, Options{}).Scan(context.Background(), a)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []string{"m", "z", "z/1", "a.txt", "b.txt"}
	if got := flatten.Snapshot(snap).Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
	if snap.RootPath != "mem:/" {
		t.Errorf("RootPath = %q", snap.RootPath)
	}
	if snap.Entries[0].Children != nil {
		t.Error("empty directory should have no children slice")
	}
}

func TestScan_SkipsUnreadableSubtree(t *testing.T) {
	a := &memAdapter{
		dirs: map[string][]domain.Entry{
			"":     {memDir("open"), memDir("lock"), memDir("gone")},
			"open": {memFile("open/f", 1)},
		},
		errs: map[string]error{"lock": domain.ErrPermissionDenied},
	}

	var skipped []string
	reporter := progress.NewCallbackReporter(func(u progress.Update) {
		if u.Type == progress.UpdateSkip {
			skipped = append(skipped, u.CurrentPath)
		}
	})

	snap, err := newScanner(t, Options{Reporter: reporter}).Scan(context.Background(), a)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if got := flatten.Snapshot(snap).Paths(); !reflect.DeepEqual(got, []string{"gone", "lock", "open", "open/f"}) {
		t.Errorf("paths = %v", got)
	}
	if !reflect.DeepEqual(skipped, []string{"gone", "lock"}) {
		t.Errorf("skipped = %v", skipped)
	}
}

func TestScan_OtherListingErrorsFail(t *testing.T) {
	boom := errors.New("backend exploded")
	a := &memAdapter{
		dirs: map[string][]domain.Entry{"": {memDir("d")}},
		errs: map[string]error{"d": boom},
	}
	if _, err := newScanner(t, Options{}).Scan(context.Background(), a); !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
}

func TestScan_RootUnavailable(t *testing.T) {
	a := &memAdapter{errs: map[string]error{"": domain.ErrPermissionDenied}}
	if _, err := newScanner(t, Options{}).Scan(context.Background(), a); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Errorf("got %v", err)
	}
}

func TestScan_Cancelled(t *testing.T) {
	a := &memAdapter{dirs: map[string][]domain.Entry{"": {memFile("f", 1)}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newScanner(t, Options{}).Scan(ctx, a); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v", err)
	}
}

func TestScan_Ignore(t *testing.T) {
	a := &memAdapter{dirs: map[string][]domain.Entry{
		"":                 {memDir(".git"), memDir("src"), memFile("notes.tmp", 1)},
		"src":              {memDir("src/node_modules"), memFile("src/main.go", 1), memFile("src/x.tmp", 1)},
		"src/node_modules": {memFile("src/node_modules/pkg.js", 1)},
	}}

	s := newScanner(t, Options{Ignore: []string{".git", "**/node_modules", "*.tmp"}})
	snap, err := s.Scan(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if got := flatten.Snapshot(snap).Paths(); !reflect.DeepEqual(got, []string{"src", "src/main.go"}) {
		t.Errorf("paths = %v", got)
	}
}

func TestNew_BadPattern(t *testing.T) {
	if _, err := New(Options{Ignore: []string{"[unclosed"}}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("got %v", err)
	}
}

func TestScanDir_Local(t *testing.T) {
	dir := t.TempDir()
	testutil.CreateTestFile(t, dir, "docs/readme.md", []byte("hello"))
	testutil.CreateTestFile(t, dir, "main.go", []byte("package main"))
	testutil.CreateTestDir(t, dir, "empty")

	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	snap, err := ScanDir(context.Background(), dir, Options{
		Version: "v2",
		Now:     func() time.Time { return fixed },
	})
	if err != nil {
		t.Fatalf("ScanDir() error = %v", err)
	}

	if !snap.CreatedAt.Equal(fixed) || snap.Version != "v2" {
		t.Errorf("metadata = %v %q", snap.CreatedAt, snap.Version)
	}
	want := []string{"docs", "docs/readme.md", "empty", "main.go"}
	if got := flatten.Snapshot(snap).Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
	files, dirs := snap.Count()
	if files != 2 || dirs != 2 || snap.TotalSize() != 17 {
		t.Errorf("counts = %d files, %d dirs, %d bytes", files, dirs, snap.TotalSize())
	}
}

func TestScanDir_MissingRoot(t *testing.T) {
	_, err := ScanDir(context.Background(), t.TempDir()+"/nope", Options{})
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Errorf("got %v", err)
	}
}
