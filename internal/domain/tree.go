package domain

// NodeID addresses a node inside a Tree arena
type NodeID int

// NoParent is the parent id of root nodes
const NoParent NodeID = -1

// TreeNode is one entry of a Tree. Its Entry never carries children;
// hierarchy is expressed only through Parent and Children ids.
type TreeNode struct {
	ID       NodeID
	Parent   NodeID
	Entry    Entry
	Children []NodeID
}

// Tree is an arena of entries addressed by stable integer ids.
// Nodes are stored in insertion order and never move.
type Tree struct {
	nodes []TreeNode
	roots []NodeID
}

// NewTree creates an empty tree with room for n nodes
func NewTree(n int) *Tree {
	return &Tree{nodes: make([]TreeNode, 0, n)}
}

// Add stores a children-stripped copy of e as a detached node and returns its id
func (t *Tree) Add(e Entry) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, TreeNode{
		ID:     id,
		Parent: NoParent,
		Entry:  e.Shallow(),
	})
	return id
}

// Attach links child under parent, or makes it a root when parent is NoParent.
// Attaching a node to itself makes it a root.
func (t *Tree) Attach(child, parent NodeID) {
	if parent == NoParent || parent == child {
		t.nodes[child].Parent = NoParent
		t.roots = append(t.roots, child)
		return
	}
	t.nodes[child].Parent = parent
	t.nodes[parent].Children = append(t.nodes[parent].Children, child)
}

// Len returns the number of nodes
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// Node returns the node with the given id
func (t *Tree) Node(id NodeID) TreeNode {
	return t.nodes[id]
}

// Roots returns the ids of root nodes in order
func (t *Tree) Roots() []NodeID {
	if t == nil {
		return nil
	}
	return append([]NodeID(nil), t.roots...)
}

// Children returns the child ids of a node in order
func (t *Tree) Children(id NodeID) []NodeID {
	return append([]NodeID(nil), t.nodes[id].Children...)
}

// Walk visits nodes depth-first, parent before children, in child order.
// Returning false from fn skips the node's subtree.
func (t *Tree) Walk(fn func(n TreeNode, depth int) bool) {
	if t == nil {
		return
	}
	type frame struct {
		id    NodeID
		depth int
	}
	stack := make([]frame, 0, len(t.roots))
	for i := len(t.roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{t.roots[i], 0})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.nodes[f.id]
		if !fn(n, f.depth) {
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{n.Children[i], f.depth + 1})
		}
	}
}

// Paths returns the relative paths of all nodes in walk order
func (t *Tree) Paths() []string {
	paths := make([]string, 0, t.Len())
	t.Walk(func(n TreeNode, _ int) bool {
		paths = append(paths, n.Entry.RelativePath)
		return true
	})
	return paths
}

// Entries materializes the tree into freshly allocated recursive entries
func (t *Tree) Entries() []Entry {
	if t == nil {
		return nil
	}
	var build func(id NodeID) Entry
	build = func(id NodeID) Entry {
		n := t.nodes[id]
		e := n.Entry
		if len(n.Children) > 0 {
			e.Children = make([]Entry, len(n.Children))
			for i, c := range n.Children {
				e.Children[i] = build(c)
			}
		}
		return e
	}
	out := make([]Entry, len(t.roots))
	for i, r := range t.roots {
		out[i] = build(r)
	}
	return out
}
