package domain

// UnionTrees is a pair of path-synchronized trees built from two snapshots.
// Both trees hold the same paths in the same arena positions, so node i of
// Old and node i of New always describe the same relative path.
type UnionTrees struct {
	Old *Tree
	New *Tree
}

// Row is one aligned line of a side-by-side view
type Row struct {
	Depth int
	Old   TreeNode
	New   TreeNode
}

// Status returns the classification of the row
func (r Row) Status() Classification {
	return r.New.Entry.Status
}

// Path returns the relative path of the row
func (r Row) Path() string {
	return r.New.Entry.RelativePath
}

// Rows walks both trees in lockstep and returns one row per path
func (u *UnionTrees) Rows() []Row {
	if u == nil || u.Old == nil || u.New == nil {
		return nil
	}
	rows := make([]Row, 0, u.Old.Len())
	u.Old.Walk(func(n TreeNode, depth int) bool {
		rows = append(rows, Row{
			Depth: depth,
			Old:   n,
			New:   u.New.Node(n.ID),
		})
		return true
	})
	return rows
}
