package export

import (
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Ning0612/snapdiff/internal/state"
)

// shortID is the id prefix shown in listings
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// WriteSnapshots lists stored snapshots
func WriteSnapshots(w io.Writer, records []state.SnapshotRecord, format Format) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"ID", "Label", "Version", "Created", "Files", "Dirs", "Size"})
	for _, r := range records {
		id, sz := shortID(r.ID), humanize.IBytes(uint64(r.TotalBytes))
		if format == FormatCSV {
			id, sz = r.ID, strconv.FormatInt(r.TotalBytes, 10)
		}
		t.AppendRow(table.Row{
			id,
			r.Label,
			r.Version,
			timestamp(r.CreatedAt, Options{Format: format}),
			r.Files,
			r.Dirs,
			sz,
		})
	}
	return render(w, t, format)
}

// WriteHistory lists recorded comparisons
func WriteHistory(w io.Writer, records []state.ComparisonRecord, format Format) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Compared", "Old", "New", "Added", "Deleted", "Modified", "Unchanged"})
	for _, r := range records {
		oldRef := r.OldLabel + "@" + shortID(r.OldID)
		newRef := r.NewLabel + "@" + shortID(r.NewID)
		t.AppendRow(table.Row{
			timestamp(r.ComparedAt, Options{Format: format}),
			oldRef,
			newRef,
			r.Added,
			r.Deleted,
			r.Modified,
			r.Unchanged,
		})
	}
	return render(w, t, format)
}
