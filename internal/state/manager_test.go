package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ning0612/snapdiff/internal/checksum"
	"github.com/Ning0612/snapdiff/internal/core/diff"
	"github.com/Ning0612/snapdiff/internal/domain"
	tu "github.com/Ning0612/snapdiff/internal/testutil"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	t.Cleanup(func() { manager.Close() })
	return manager
}

func snapAt(created time.Time, entries ...domain.Entry) *domain.Snapshot {
	s := tu.Snap(entries...)
	s.CreatedAt = created
	return s
}

func TestNewManager(t *testing.T) {
	tmpDir := t.TempDir()

	manager, err := NewManager(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer manager.Close()

	if manager.db == nil {
		t.Error("Database connection is nil")
	}

	dbPath := filepath.Join(tmpDir, DBFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNewManager_EmptyDir(t *testing.T) {
	if _, err := NewManager(""); err == nil {
		t.Error("Expected error for empty directory, got nil")
	}
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	orig := snapAt(tu.T0,
		tu.Dir("docs", tu.File("docs/a.md", 10, tu.T0)),
		tu.File("README", 5, tu.T0),
	)
	orig.Version = "v1"

	rec, existed, err := manager.SaveSnapshot(ctx, "site", orig)
	if err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if existed {
		t.Error("first save reported an existing snapshot")
	}
	if len(rec.ID) != 36 || rec.Files != 2 || rec.Dirs != 1 || rec.TotalBytes != 15 {
		t.Errorf("record = %+v", rec)
	}

	loaded, got, err := manager.LoadSnapshot(ctx, rec.ID[:8])
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if got.ID != rec.ID || got.Label != "site" || got.Version != "v1" || !got.CreatedAt.Equal(tu.T0) {
		t.Errorf("loaded record = %+v", got)
	}

	result, err := diff.Compare(orig, loaded)
	if err != nil {
		t.Fatal(err)
	}
	if result.HasChanges() {
		t.Errorf("stored snapshot differs from original: %+v", result)
	}
}

func TestSaveSnapshot_DetectsUnchangedContent(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	first, _, err := manager.SaveSnapshot(ctx, "site", snapAt(tu.T0, tu.File("a", 1, tu.T0)))
	if err != nil {
		t.Fatal(err)
	}

	// Same content scanned later
	again, existed, err := manager.SaveSnapshot(ctx, "site", snapAt(tu.T0.Add(time.Hour), tu.File("a", 1, tu.T0)))
	if err != nil {
		t.Fatal(err)
	}
	if !existed || again.ID != first.ID {
		t.Errorf("expected existing record %s, got %s (existed=%v)", first.ID, again.ID, existed)
	}

	// Changed content
	changed, existed, err := manager.SaveSnapshot(ctx, "site", snapAt(tu.T0.Add(2*time.Hour), tu.File("a", 2, tu.T0)))
	if err != nil {
		t.Fatal(err)
	}
	if existed || changed.ID == first.ID {
		t.Error("changed content should be stored as a new snapshot")
	}
}

func TestSaveSnapshot_FingerprintAlgorithm(t *testing.T) {
	manager := newTestManager(t)
	manager.Fingerprint = checksum.XXH3

	rec, _, err := manager.SaveSnapshot(context.Background(), "x", snapAt(tu.T0, tu.File("a", 1, tu.T0)))
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Fingerprint) != 16 {
		t.Errorf("xxh3 fingerprint = %q", rec.Fingerprint)
	}
}

func TestSaveSnapshot_DefaultLabel(t *testing.T) {
	manager := newTestManager(t)
	rec, _, err := manager.SaveSnapshot(context.Background(), "", snapAt(tu.T0))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Label != "/fixture" {
		t.Errorf("Label = %q", rec.Label)
	}
}

func TestSaveSnapshot_Nil(t *testing.T) {
	manager := newTestManager(t)
	if _, _, err := manager.SaveSnapshot(context.Background(), "x", nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("got %v", err)
	}
}

func TestListSnapshotsAndLatest(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s := snapAt(tu.T0.Add(time.Duration(i)*time.Hour), tu.File("f", int64(i), tu.T0))
		if _, _, err := manager.SaveSnapshot(ctx, "a", s); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := manager.SaveSnapshot(ctx, "b", snapAt(tu.T0)); err != nil {
		t.Fatal(err)
	}

	all, err := manager.ListSnapshots(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 snapshots, got %d", len(all))
	}

	onlyA, err := manager.ListSnapshots(ctx, "a", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyA) != 2 || !onlyA[0].CreatedAt.After(onlyA[1].CreatedAt) {
		t.Errorf("expected 2 newest-first records, got %+v", onlyA)
	}

	latest, err := manager.Latest(ctx, "a")
	if err != nil || latest == nil {
		t.Fatalf("Latest() = %v, %v", latest, err)
	}
	if !latest.CreatedAt.Equal(tu.T0.Add(2 * time.Hour)) {
		t.Errorf("Latest() = %+v", latest)
	}

	none, err := manager.Latest(ctx, "nothing")
	if err != nil || none != nil {
		t.Errorf("Latest(unknown) = %v, %v", none, err)
	}

	if _, err := manager.ListSnapshots(ctx, "", 0); err == nil {
		t.Error("expected error for non-positive limit")
	}
}

func TestLookupErrors(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	if _, _, err := manager.LoadSnapshot(ctx, "abc"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("short prefix: got %v", err)
	}
	if _, _, err := manager.LoadSnapshot(ctx, "ffffffff"); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Errorf("unknown id: got %v", err)
	}
}

func TestLookup_WildcardsAreLiteral(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	rec, _, err := manager.SaveSnapshot(ctx, "only", tu.Snap(tu.File("a.txt", 1, time.Now())))
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	for _, ref := range []string{"____", "%%%%", rec.ID[:4] + "%", rec.ID[:7] + "_"} {
		if _, err := manager.GetSnapshot(ctx, ref); !errors.Is(err, domain.ErrSourceUnavailable) {
			t.Errorf("GetSnapshot(%q) error = %v, want ErrSourceUnavailable", ref, err)
		}
	}
	if err := manager.DeleteSnapshot(ctx, "________"); err == nil {
		t.Error("DeleteSnapshot with wildcard ref should fail")
	}
	if _, err := manager.GetSnapshot(ctx, rec.ID[:8]); err != nil {
		t.Errorf("snapshot should survive: %v", err)
	}
}

func TestComparisonHistory(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	oldSnap := snapAt(tu.T0, tu.File("a", 1, tu.T0), tu.File("keep", 1, tu.T0))
	newSnap := snapAt(tu.T0.Add(time.Hour), tu.File("b", 1, tu.T0), tu.File("keep", 1, tu.T0))

	oldRec, _, err := manager.SaveSnapshot(ctx, "site", oldSnap)
	if err != nil {
		t.Fatal(err)
	}
	newRec, _, err := manager.SaveSnapshot(ctx, "site", newSnap)
	if err != nil {
		t.Fatal(err)
	}

	result, err := diff.Compare(oldSnap, newSnap)
	if err != nil {
		t.Fatal(err)
	}

	id, err := manager.RecordComparison(ctx, NewComparisonRecord(oldRec, newRec, result))
	if err != nil {
		t.Fatalf("RecordComparison() error = %v", err)
	}
	if id <= 0 {
		t.Errorf("id = %d", id)
	}

	history, err := manager.GetHistory(ctx, 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(history))
	}
	h := history[0]
	if h.OldID != oldRec.ID || h.NewLabel != "site" || h.Added != 1 || h.Deleted != 1 || h.Unchanged != 1 {
		t.Errorf("history = %+v", h)
	}

	// Deleting a snapshot drops the comparisons that reference it
	if err := manager.DeleteSnapshot(ctx, oldRec.ID); err != nil {
		t.Fatalf("DeleteSnapshot() error = %v", err)
	}
	history, err = manager.GetHistory(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Errorf("expected history to be empty, got %d", len(history))
	}
	if _, err := manager.GetSnapshot(ctx, oldRec.ID); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Errorf("deleted snapshot still found: %v", err)
	}
}

func TestRecordComparison_MissingIDs(t *testing.T) {
	manager := newTestManager(t)
	if _, err := manager.RecordComparison(context.Background(), ComparisonRecord{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("got %v", err)
	}
}

func TestGetHistory_InvalidLimit(t *testing.T) {
	manager := newTestManager(t)
	if _, err := manager.GetHistory(context.Background(), 0); err == nil {
		t.Error("Expected error for zero limit, got nil")
	}
}
