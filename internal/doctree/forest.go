package doctree

import "errors"

// ErrFrozen is returned when appending to a frozen forest.
var ErrFrozen = errors.New("forest is frozen")

// Forest is the ordered set of document roots of one run, backed by one
// arena. After Freeze it is read-only and safe for concurrent readers.
type Forest struct {
	nodes  []Node
	roots  []NodeID
	frozen bool
}

// NewForest creates an empty forest.
func NewForest() *Forest {
	return &Forest{}
}

// Append adds a tree as the next root and returns the root's id. The tree's
// nodes are copied into the forest arena with ids rebased.
func (f *Forest) Append(t *Tree) (NodeID, error) {
	if f.frozen {
		return NoNode, ErrFrozen
	}
	offset := NodeID(len(f.nodes))
	for i := range t.nodes {
		n := t.nodes[i]
		n.ID += offset
		n.Root = offset
		if n.Parent != NoNode {
			n.Parent += offset
		}
		if len(n.Children) > 0 {
			children := make([]NodeID, len(n.Children))
			for j, c := range n.Children {
				children[j] = c + offset
			}
			n.Children = children
		}
		f.nodes = append(f.nodes, n)
	}
	f.roots = append(f.roots, offset)
	return offset, nil
}

// Freeze marks the forest read-only.
func (f *Forest) Freeze() { f.frozen = true }

// Frozen reports whether Freeze has been called.
func (f *Forest) Frozen() bool { return f.frozen }

// Roots returns the document roots in forest order. The slice must not be
// modified.
func (f *Forest) Roots() []NodeID { return f.roots }

// Len returns the total number of nodes.
func (f *Forest) Len() int { return len(f.nodes) }

// Node returns the node with the given id. Callers must treat the result as
// read-only.
func (f *Forest) Node(id NodeID) *Node { return &f.nodes[id] }

// Valid reports whether id addresses a node of this forest.
func (f *Forest) Valid(id NodeID) bool { return id >= 0 && int(id) < len(f.nodes) }

// RootByPath returns the root of the document parsed from path.
func (f *Forest) RootByPath(path string) (NodeID, bool) {
	for _, r := range f.roots {
		if f.nodes[r].Path == path {
			return r, true
		}
	}
	return NoNode, false
}

// Walk visits the subtree of start in depth-first preorder, including start
// itself. Returning false from fn stops the walk.
func (f *Forest) Walk(start NodeID, fn func(n *Node) bool) {
	stack := []NodeID{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &f.nodes[id]
		if !fn(n) {
			return
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// WalkAll visits every node in forest order, each root's subtree in
// depth-first preorder.
func (f *Forest) WalkAll(fn func(n *Node) bool) {
	stopped := false
	for _, r := range f.roots {
		f.Walk(r, func(n *Node) bool {
			if !fn(n) {
				stopped = true
				return false
			}
			return true
		})
		if stopped {
			return
		}
	}
}

// Subtree returns the ids of start's subtree in depth-first preorder.
func (f *Forest) Subtree(start NodeID) []NodeID {
	var out []NodeID
	f.Walk(start, func(n *Node) bool {
		out = append(out, n.ID)
		return true
	})
	return out
}

// Ancestors returns the chain from id's parent up to its root.
func (f *Forest) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	for p := f.nodes[id].Parent; p != NoNode; p = f.nodes[p].Parent {
		out = append(out, p)
	}
	return out
}

// InSubtree reports whether id lies within the subtree of scope, inclusive.
func (f *Forest) InSubtree(scope, id NodeID) bool {
	if f.nodes[scope].Root != f.nodes[id].Root {
		return false
	}
	for cur := id; cur != NoNode; cur = f.nodes[cur].Parent {
		if cur == scope {
			return true
		}
		if f.nodes[cur].Depth < f.nodes[scope].Depth {
			return false
		}
	}
	return false
}
