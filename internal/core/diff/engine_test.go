package diff

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/Ning0612/snapdiff/internal/core/flatten"
	"github.com/Ning0612/snapdiff/internal/domain"
	tu "github.com/Ning0612/snapdiff/internal/testutil"
)

var t1 = tu.T0.Add(time.Hour)

func sample() *domain.Snapshot {
	return tu.Snap(
		tu.Dir("docs",
			tu.File("docs/a.md", 10, tu.T0),
			tu.File("docs/b.md", 20, tu.T0),
		),
		tu.Dir("src",
			tu.Dir("src/pkg", tu.File("src/pkg/x.go", 30, tu.T0)),
		),
		tu.File("README", 5, tu.T0),
	)
}

func TestCompare_Identity(t *testing.T) {
	s := sample()
	result, err := Compare(s, s)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.HasChanges() {
		t.Errorf("identical snapshots reported changes: %+v", result)
	}
	if result.Stats.UnchangedFiles != 4 {
		t.Errorf("UnchangedFiles = %d, want 4", result.Stats.UnchangedFiles)
	}
}

func TestCompare_ScenarioModifiedSize(t *testing.T) {
	oldSnap := tu.Snap(tu.Dir("a", tu.File("a/b.txt", 10, tu.T0)))
	newSnap := tu.Snap(tu.Dir("a", tu.File("a/b.txt", 20, tu.T0)))

	result, err := Compare(oldSnap, newSnap)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Modified) != 1 || result.Modified[0].RelativePath != "a/b.txt" {
		t.Fatalf("Modified = %v", tu.PathsOf(result.Modified))
	}
	if len(result.Added) != 0 || len(result.Deleted) != 0 {
		t.Error("unexpected added or deleted entries")
	}
	if result.Modified[0].Status != domain.Modified || result.Modified[0].Size != 20 {
		t.Errorf("modified entry should be the new side: %+v", result.Modified[0])
	}
}

func TestCompare_ScenarioDeletedSubtree(t *testing.T) {
	oldSnap := tu.Snap(tu.Dir("x", tu.File("x/f.txt", 1, tu.T0)))
	newSnap := tu.Snap()

	result, err := Compare(oldSnap, newSnap)
	if err != nil {
		t.Fatal(err)
	}
	if got := tu.PathsOf(result.Deleted); !reflect.DeepEqual(got, []string{"x", "x/f.txt"}) {
		t.Errorf("Deleted = %v", got)
	}
	for _, e := range result.Deleted {
		if e.Children != nil {
			t.Errorf("%s: result entries must be flat", e.RelativePath)
		}
	}
	if result.Stats.DeletedDirs != 1 || result.Stats.DeletedFiles != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
}

func TestCompare_ScenarioAddedToEmpty(t *testing.T) {
	result, err := Compare(tu.Snap(), tu.Snap(tu.File("n.txt", 3, tu.T0)))
	if err != nil {
		t.Fatal(err)
	}
	if got := tu.PathsOf(result.Added); !reflect.DeepEqual(got, []string{"n.txt"}) {
		t.Errorf("Added = %v", got)
	}
	if result.Stats.AddedFiles != 1 || result.Stats.AddedDirs != 0 {
		t.Errorf("stats = %+v", result.Stats)
	}
}

func TestCompare_ScenarioFileBecameDir(t *testing.T) {
	oldSnap := tu.Snap(tu.Dir("a", tu.File("a/b.txt", 10, tu.T0)))
	newSnap := tu.Snap(tu.Dir("a", tu.Dir("a/b.txt", tu.File("a/b.txt/c", 1, tu.T0))))

	result, err := Compare(oldSnap, newSnap)
	if err != nil {
		t.Fatal(err)
	}
	if got := tu.PathsOf(result.Modified); !reflect.DeepEqual(got, []string{"a/b.txt"}) {
		t.Errorf("Modified = %v", got)
	}
	if got := tu.PathsOf(result.Added); !reflect.DeepEqual(got, []string{"a/b.txt/c"}) {
		t.Errorf("Added = %v", got)
	}
	if result.Stats.ModifiedDirs != 1 {
		t.Errorf("type change should be counted by its new kind: %+v", result.Stats)
	}
}

func TestCompare_PartitionAndDuality(t *testing.T) {
	oldSnap := sample()
	newSnap := tu.Snap(
		tu.Dir("docs",
			tu.File("docs/a.md", 11, tu.T0),
			tu.File("docs/c.md", 1, tu.T0),
		),
		tu.File("README", 5, t1),
		tu.File("LICENSE", 1, tu.T0),
	)

	forward, err := Compare(oldSnap, newSnap)
	if err != nil {
		t.Fatal(err)
	}
	backward, err := Compare(newSnap, oldSnap)
	if err != nil {
		t.Fatal(err)
	}

	// Partition: every union path in exactly one category
	oldMap, newMap := flatten.Snapshot(oldSnap), flatten.Snapshot(newSnap)
	counts := make(map[string]int)
	for _, e := range forward.Changes() {
		counts[e.RelativePath]++
	}
	for _, p := range newMap.Paths() {
		if oldMap.Has(p) && counts[p] == 0 {
			counts[p]++
		}
	}
	for _, m := range []*flatten.Map{oldMap, newMap} {
		for _, p := range m.Paths() {
			if counts[p] != 1 {
				t.Errorf("path %s appears in %d categories", p, counts[p])
			}
		}
	}

	// Duality
	if !reflect.DeepEqual(tu.PathsOf(forward.Added), tu.PathsOf(backward.Deleted)) {
		t.Errorf("added %v != reverse deleted %v", tu.PathsOf(forward.Added), tu.PathsOf(backward.Deleted))
	}
	if !reflect.DeepEqual(tu.PathsOf(forward.Deleted), tu.PathsOf(backward.Added)) {
		t.Errorf("deleted %v != reverse added %v", tu.PathsOf(forward.Deleted), tu.PathsOf(backward.Added))
	}
	if !reflect.DeepEqual(tu.PathsOf(forward.Modified), tu.PathsOf(backward.Modified)) {
		t.Errorf("modified sets differ: %v vs %v", tu.PathsOf(forward.Modified), tu.PathsOf(backward.Modified))
	}

	wantAdded := []string{"LICENSE", "docs/c.md"}
	wantDeleted := []string{"docs/b.md", "src", "src/pkg", "src/pkg/x.go"}
	wantModified := []string{"README", "docs/a.md"}
	if got := tu.PathsOf(forward.Added); !reflect.DeepEqual(got, wantAdded) {
		t.Errorf("Added = %v, want %v", got, wantAdded)
	}
	if got := tu.PathsOf(forward.Deleted); !reflect.DeepEqual(got, wantDeleted) {
		t.Errorf("Deleted = %v, want %v", got, wantDeleted)
	}
	if got := tu.PathsOf(forward.Modified); !reflect.DeepEqual(got, wantModified) {
		t.Errorf("Modified = %v, want %v", got, wantModified)
	}
}

func TestCompare_DoesNotMutateInputs(t *testing.T) {
	oldSnap := sample()
	newSnap := tu.Snap(tu.File("README", 6, tu.T0))
	before := oldSnap.Entries[0].Clone()

	result, err := Compare(oldSnap, newSnap)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(oldSnap.Entries[0], before) {
		t.Error("old snapshot was modified")
	}
	if oldSnap.Entries[0].Status != domain.None {
		t.Error("input entries must not be tagged")
	}

	result.Deleted[0].Name = "mutated"
	if oldSnap.Entries[0].Name == "mutated" {
		t.Error("result aliases the input snapshot")
	}
}

func TestCompare_NilInput(t *testing.T) {
	if _, err := Compare(nil, tu.Snap()); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("nil old: got %v", err)
	}
	if _, err := Compare(tu.Snap(), nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("nil new: got %v", err)
	}
}

func TestCompare_EmptySnapshots(t *testing.T) {
	result, err := Compare(tu.Snap(), tu.Snap())
	if err != nil {
		t.Fatal(err)
	}
	if result.HasChanges() || result.Stats.Total() != 0 {
		t.Errorf("empty comparison = %+v", result)
	}
	if result.Added == nil || result.Deleted == nil || result.Modified == nil {
		t.Error("lists should be empty, not nil")
	}
}
