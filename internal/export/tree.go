package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Ning0612/snapdiff/internal/domain"
)

// TreeOptions configures the side-by-side view
type TreeOptions struct {
	// Color enables ANSI colours per classification
	Color bool

	// ChangesOnly hides unchanged rows that have no changed descendant
	ChangesOnly bool

	// OldTitle and NewTitle head the two columns
	OldTitle string
	NewTitle string
}

// palette holds one printer per classification
type palette struct {
	enabled                                          bool
	added, deleted, modified, unchanged, placeholder *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		enabled:     enabled,
		added:       color.New(color.FgGreen),
		deleted:     color.New(color.FgRed),
		modified:    color.New(color.FgYellow),
		unchanged:   color.New(color.Reset),
		placeholder: color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{p.added, p.deleted, p.modified, p.unchanged, p.placeholder} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) forStatus(s domain.Classification) *color.Color {
	switch s {
	case domain.Added:
		return p.added
	case domain.Deleted:
		return p.deleted
	case domain.Modified:
		return p.modified
	default:
		return p.unchanged
	}
}

// marker is the one-character status column
func marker(s domain.Classification) string {
	switch s {
	case domain.Added:
		return "+"
	case domain.Deleted:
		return "-"
	case domain.Modified:
		return "~"
	default:
		return ""
	}
}

// WriteSideBySide renders the union trees as two aligned columns.
// Every row holds the same path on both sides; a side that lacks the
// path shows a greyed placeholder.
func WriteSideBySide(w io.Writer, u *domain.UnionTrees, opts TreeOptions) error {
	if u == nil || u.Old == nil || u.New == nil {
		return fmt.Errorf("%w: union trees are nil", domain.ErrInvalidInput)
	}

	oldTitle, newTitle := opts.OldTitle, opts.NewTitle
	if oldTitle == "" {
		oldTitle = "old"
	}
	if newTitle == "" {
		newTitle = "new"
	}

	rows := u.Rows()
	var keep []bool
	if opts.ChangesOnly {
		keep = changedSubtrees(u, rows)
	}

	pal := newPalette(opts.Color)

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{oldTitle, "", newTitle})
	for i, r := range rows {
		if keep != nil && !keep[i] {
			continue
		}
		c := pal.forStatus(r.Status())
		t.AppendRow(table.Row{
			cell(r.Old.Entry, r.Depth, c, pal),
			c.Sprint(marker(r.Status())),
			cell(r.New.Entry, r.Depth, c, pal),
		})
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// cell renders one side of a row indented by depth. Without colour a
// placeholder is left blank so the missing side stays recognisable.
func cell(e domain.Entry, depth int, c *color.Color, pal palette) string {
	name := e.Name
	if e.IsDir {
		name += "/"
	}
	if e.IsPlaceholder() {
		if !pal.enabled {
			return ""
		}
		return strings.Repeat("  ", depth) + pal.placeholder.Sprint(name)
	}
	return strings.Repeat("  ", depth) + c.Sprint(name)
}

// changedSubtrees marks rows that are changed or have a changed descendant.
// Rows are in preorder, so each node is marked from its own status and its
// descendants' marks propagate to ancestors through parent ids.
func changedSubtrees(u *domain.UnionTrees, rows []domain.Row) []bool {
	marked := make(map[domain.NodeID]bool, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		if r.Status() != domain.Unchanged || marked[r.Old.ID] {
			marked[r.Old.ID] = true
			if r.Old.Parent != domain.NoParent {
				marked[r.Old.Parent] = true
			}
		}
	}
	keep := make([]bool, len(rows))
	for i, r := range rows {
		keep[i] = marked[r.Old.ID]
	}
	return keep
}
