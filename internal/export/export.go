// Package export renders comparison results and union trees as text
// tables, CSV and Markdown.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Ning0612/snapdiff/internal/domain"
)

// Format selects the output encoding
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat parses a format name (case-insensitive; "md" is accepted)
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt", "table":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", domain.ErrInvalidInput, s)
}

// TimeLayout is used for timestamps in text and Markdown output
const TimeLayout = "2006-01-02 15:04:05"

// Options configures report rendering
type Options struct {
	Format Format

	// Summary appends the statistics table after the change list
	Summary bool

	// Location converts timestamps before printing (UTC when nil)
	Location *time.Location

	// Statuses restricts the change list to these classifications (all when empty)
	Statuses []domain.Classification

	// MaxDepth drops paths with more segments than MaxDepth (0 means no limit)
	MaxDepth int
}

// include reports whether e passes the status and depth filters
func (o Options) include(e domain.Entry) bool {
	if o.MaxDepth > 0 && domain.Depth(e.RelativePath) >= o.MaxDepth {
		return false
	}
	if len(o.Statuses) == 0 {
		return true
	}
	for _, s := range o.Statuses {
		if e.Status == s {
			return true
		}
	}
	return false
}

// WriteReport renders the flat change list of a comparison: added,
// deleted, then modified entries, each group ordered by path. The summary
// always covers the whole comparison, whatever the filters drop.
func WriteReport(w io.Writer, result *domain.ComparisonResult, opts Options) error {
	if result == nil {
		return fmt.Errorf("%w: comparison result is nil", domain.ErrInvalidInput)
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Status", "Path", "Type", "Size", "Modified", "Note"})
	for _, e := range result.Changes() {
		if !opts.include(e) {
			continue
		}
		t.AppendRow(table.Row{
			e.Status.String(),
			e.RelativePath,
			kind(e),
			size(e, opts.Format),
			timestamp(e.ModTime, opts),
			e.Note,
		})
	}

	if err := render(w, t, opts.Format); err != nil {
		return err
	}

	if opts.Summary {
		if opts.Format != FormatCSV {
			fmt.Fprintln(w)
		}
		return WriteSummary(w, result.Stats, opts.Format)
	}
	return nil
}

// WriteSummary renders the statistics of a comparison
func WriteSummary(w io.Writer, stats domain.ComparisonStats, format Format) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Category", "Files", "Directories"})
	t.AppendRows([]table.Row{
		{"added", stats.AddedFiles, stats.AddedDirs},
		{"deleted", stats.DeletedFiles, stats.DeletedDirs},
		{"modified", stats.ModifiedFiles, stats.ModifiedDirs},
		{"unchanged", stats.UnchangedFiles, ""},
	})
	if format == FormatText {
		t.AppendFooter(table.Row{"total changes", stats.AddedFiles + stats.DeletedFiles + stats.ModifiedFiles,
			stats.AddedDirs + stats.DeletedDirs + stats.ModifiedDirs})
	}
	return render(w, t, format)
}

// render writes t in the requested format followed by a newline
func render(w io.Writer, t table.Writer, format Format) error {
	var out string
	switch format {
	case FormatCSV:
		out = t.RenderCSV()
	case FormatMarkdown:
		out = t.RenderMarkdown()
	case FormatText, "":
		t.SetStyle(table.StyleLight)
		out = t.Render()
	default:
		return fmt.Errorf("%w: unknown export format %q", domain.ErrInvalidInput, format)
	}
	_, err := fmt.Fprintln(w, out)
	return err
}

func kind(e domain.Entry) string {
	if e.IsDir {
		return "dir"
	}
	return "file"
}

// size is exact in CSV and human-readable elsewhere; directories have none
func size(e domain.Entry, format Format) string {
	if e.IsDir {
		return ""
	}
	if format == FormatCSV {
		return fmt.Sprintf("%d", e.Size)
	}
	return humanize.IBytes(uint64(e.Size))
}

// timestamp is RFC 3339 in CSV and TimeLayout elsewhere; zero is blank
func timestamp(t time.Time, opts Options) string {
	if t.IsZero() {
		return ""
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	if opts.Format == FormatCSV {
		return t.Format(time.RFC3339Nano)
	}
	return t.Format(TimeLayout)
}
