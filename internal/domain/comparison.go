package domain

// ComparisonResult is the flat outcome of comparing two snapshots.
// Every entry in the lists is a children-stripped copy; the result never
// aliases the snapshots it was computed from.
type ComparisonResult struct {
	Added    []Entry
	Deleted  []Entry
	Modified []Entry
	Stats    ComparisonStats
}

// HasChanges reports whether any path was added, deleted or modified
func (r *ComparisonResult) HasChanges() bool {
	return len(r.Added) > 0 || len(r.Deleted) > 0 || len(r.Modified) > 0
}

// Changes returns all categorized entries in one slice: added, deleted, then modified
func (r *ComparisonResult) Changes() []Entry {
	all := make([]Entry, 0, len(r.Added)+len(r.Deleted)+len(r.Modified))
	all = append(all, r.Added...)
	all = append(all, r.Deleted...)
	all = append(all, r.Modified...)
	return all
}

// ComparisonStats provides summary counts for a comparison
type ComparisonStats struct {
	AddedFiles     int
	AddedDirs      int
	DeletedFiles   int
	DeletedDirs    int
	ModifiedFiles  int
	ModifiedDirs   int
	UnchangedFiles int
}

// Total returns the sum of all counts
func (s ComparisonStats) Total() int {
	return s.AddedFiles + s.AddedDirs +
		s.DeletedFiles + s.DeletedDirs +
		s.ModifiedFiles + s.ModifiedDirs +
		s.UnchangedFiles
}
