package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Reporter receives events while a directory tree is scanned
type Reporter interface {
	// EnterDir is called before a directory's children are listed
	EnterDir(path string)
	// Entry is called once for every recorded file or directory
	Entry(path string, isDir bool, size int64)
	// Skip reports a subtree that could not be read and was left out
	Skip(path string, err error)
	// Done marks the end of the scan
	Done()
}

// Callback is a function that receives progress updates
type Callback func(update Update)

// Update represents a progress update
type Update struct {
	Type             UpdateType
	CurrentPath      string
	DirsScanned      int
	FilesSeen        int
	BytesSeen        int64
	Skipped          int
	Elapsed          time.Duration
	EntriesPerSecond float64
	Error            error
}

// UpdateType indicates the type of progress update
type UpdateType int

const (
	UpdateDir UpdateType = iota
	UpdateEntry
	UpdateSkip
	UpdateDone
)

// String returns the string representation of the update type
func (t UpdateType) String() string {
	switch t {
	case UpdateDir:
		return "dir"
	case UpdateEntry:
		return "entry"
	case UpdateSkip:
		return "skip"
	case UpdateDone:
		return "done"
	default:
		return "unknown"
	}
}

// CallbackReporter implements Reporter with a callback function
type CallbackReporter struct {
	callback  Callback
	mu        sync.Mutex
	dirs      int
	files     int
	bytes     int64
	skipped   int
	startTime time.Time
}

// NewCallbackReporter creates a new CallbackReporter
func NewCallbackReporter(callback Callback) *CallbackReporter {
	return &CallbackReporter{
		callback:  callback,
		startTime: time.Now(),
	}
}

// snapshot builds an update from the current counters. Caller holds mu.
func (r *CallbackReporter) snapshot(t UpdateType, path string, err error) Update {
	elapsed := time.Since(r.startTime)
	var rate float64
	if s := elapsed.Seconds(); s > 0 {
		rate = float64(r.dirs+r.files) / s
	}
	return Update{
		Type:             t,
		CurrentPath:      path,
		DirsScanned:      r.dirs,
		FilesSeen:        r.files,
		BytesSeen:        r.bytes,
		Skipped:          r.skipped,
		Elapsed:          elapsed,
		EntriesPerSecond: rate,
		Error:            err,
	}
}

// emit delivers an update outside the lock to prevent deadlock
func (r *CallbackReporter) emit(u Update) {
	if r.callback != nil {
		r.callback(u)
	}
}

// EnterDir reports a directory about to be listed
func (r *CallbackReporter) EnterDir(path string) {
	r.mu.Lock()
	u := r.snapshot(UpdateDir, path, nil)
	r.mu.Unlock()
	r.emit(u)
}

// Entry counts a recorded entry
func (r *CallbackReporter) Entry(path string, isDir bool, size int64) {
	r.mu.Lock()
	if isDir {
		r.dirs++
	} else {
		r.files++
		r.bytes += size
	}
	u := r.snapshot(UpdateEntry, path, nil)
	r.mu.Unlock()
	r.emit(u)
}

// Skip counts a subtree left out of the scan
func (r *CallbackReporter) Skip(path string, err error) {
	r.mu.Lock()
	r.skipped++
	u := r.snapshot(UpdateSkip, path, err)
	r.mu.Unlock()
	r.emit(u)
}

// Done reports the final counters
func (r *CallbackReporter) Done() {
	r.mu.Lock()
	u := r.snapshot(UpdateDone, "", nil)
	r.mu.Unlock()
	r.emit(u)
}

// NullReporter is a no-op reporter
type NullReporter struct{}

func (NullReporter) EnterDir(path string)                      {}
func (NullReporter) Entry(path string, isDir bool, size int64) {}
func (NullReporter) Skip(path string, err error)               {}
func (NullReporter) Done()                                     {}

// NewWriterReporter returns a reporter that prints a status line to w at
// most once per interval, plus every skip and a final summary.
func NewWriterReporter(w io.Writer, interval time.Duration) *CallbackReporter {
	var last time.Time
	return NewCallbackReporter(func(u Update) {
		switch u.Type {
		case UpdateSkip:
			fmt.Fprintf(w, "\rskipped %s: %v\n", u.CurrentPath, u.Error)
		case UpdateDone:
			fmt.Fprintf(w, "\r%s\n", FormatUpdate(u))
		default:
			if time.Since(last) < interval {
				return
			}
			last = time.Now()
			fmt.Fprintf(w, "\r%s", FormatUpdate(u))
		}
	})
}

// FormatUpdate returns a one-line human-readable summary of an update
func FormatUpdate(u Update) string {
	line := fmt.Sprintf("%s dirs, %s files, %s",
		humanize.Comma(int64(u.DirsScanned)),
		humanize.Comma(int64(u.FilesSeen)),
		humanize.IBytes(uint64(u.BytesSeen)),
	)
	if u.Skipped > 0 {
		line += fmt.Sprintf(", %d skipped", u.Skipped)
	}
	if u.Type == UpdateDone {
		line += fmt.Sprintf(" in %s", u.Elapsed.Round(time.Millisecond))
	}
	return line
}
