// Package doctree is the canonical in-memory document model shared by every
// file handler.
//
// Nodes live in a single arena and are addressed by NodeID. Handlers build
// one Tree per file with a Builder; trees are appended to a Forest, which is
// frozen before any search or tag scan runs. Traversal is iterative so deep
// documents cannot exhaust the goroutine stack.
package doctree

import (
	"errors"
	"fmt"
)

// NodeID addresses a node inside a Tree or Forest arena.
type NodeID int32

// NoNode is the parent of a root.
const NoNode NodeID = -1

// Role is the structural role of a node as declared by its source format.
type Role uint8

const (
	// RoleLeaf marks a node with no structural children.
	RoleLeaf Role = iota
	// RoleInterior marks a node that groups other nodes.
	RoleInterior
)

// String returns the role name.
func (r Role) String() string {
	if r == RoleInterior {
		return "interior"
	}
	return "leaf"
}

// Node is one element of a document tree.
type Node struct {
	ID     NodeID
	Parent NodeID
	Root   NodeID
	Depth  int

	// Key is the identifier the source format uses for this node
	// (a Freeplane ID, a heading anchor). Empty for file-level roots.
	Key string

	Text string

	// RichContent is passed through unmodified.
	RichContent string

	// Tags are attached explicitly by the handler.
	Tags []string

	// Path is the origin file, shared by every node of a tree.
	Path string

	// Line is the 1-based source line, or 0 if unknown.
	Line int

	Role     Role
	Children []NodeID
}

// IsRoot reports whether n is the root of its tree.
func (n *Node) IsRoot() bool { return n.Parent == NoNode }

// ErrNoRoot is returned when a Builder is finished without a root.
var ErrNoRoot = errors.New("document has no root node")

// Tree is a single parsed file. IDs are local to the tree until it is
// appended to a Forest.
type Tree struct {
	path  string
	nodes []Node
}

// Path returns the origin file of the tree.
func (t *Tree) Path() string { return t.path }

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Root returns the root node.
func (t *Tree) Root() *Node { return &t.nodes[0] }

// Node returns the node with a tree-local id.
func (t *Tree) Node(id NodeID) *Node { return &t.nodes[id] }

// Builder assembles a Tree. It is not safe for concurrent use; each handler
// invocation owns its own Builder.
type Builder struct {
	path  string
	nodes []Node
	role  []bool // role set explicitly by the handler
}

// NewBuilder starts a tree for the file at path.
func NewBuilder(path string) *Builder {
	return &Builder{path: path}
}

// Path returns the origin file.
func (b *Builder) Path() string { return b.path }

// Len returns the number of nodes added so far.
func (b *Builder) Len() int { return len(b.nodes) }

// HasRoot reports whether SetRoot has been called.
func (b *Builder) HasRoot() bool { return len(b.nodes) > 0 }

// SetRoot creates the root node. A tree has exactly one root; calling SetRoot
// twice panics.
func (b *Builder) SetRoot(text string) NodeID {
	if len(b.nodes) > 0 {
		panic("doctree: root already set")
	}
	b.nodes = append(b.nodes, Node{
		ID:     0,
		Parent: NoNode,
		Root:   0,
		Text:   text,
		Path:   b.path,
		Role:   RoleLeaf,
	})
	b.role = append(b.role, false)
	return 0
}

// AddChild appends a child to parent and returns its id. The parent becomes
// interior unless the handler set its role explicitly.
func (b *Builder) AddChild(parent NodeID, text string) NodeID {
	if int(parent) < 0 || int(parent) >= len(b.nodes) {
		panic(fmt.Sprintf("doctree: parent %d out of range", parent))
	}
	id := NodeID(len(b.nodes))
	b.nodes = append(b.nodes, Node{
		ID:     id,
		Parent: parent,
		Root:   0,
		Depth:  b.nodes[parent].Depth + 1,
		Text:   text,
		Path:   b.path,
		Role:   RoleLeaf,
	})
	b.role = append(b.role, false)
	p := &b.nodes[parent]
	p.Children = append(p.Children, id)
	if !b.role[parent] {
		p.Role = RoleInterior
	}
	return id
}

// Node returns a mutable node while building.
func (b *Builder) Node(id NodeID) *Node { return &b.nodes[id] }

// SetKey sets the source identifier of a node.
func (b *Builder) SetKey(id NodeID, key string) { b.nodes[id].Key = key }

// SetLine records the source line of a node.
func (b *Builder) SetLine(id NodeID, line int) { b.nodes[id].Line = line }

// SetText replaces the display text of a node.
func (b *Builder) SetText(id NodeID, text string) { b.nodes[id].Text = text }

// SetRichContent sets the opaque rich-content payload of a node.
func (b *Builder) SetRichContent(id NodeID, content string) { b.nodes[id].RichContent = content }

// AppendRichContent appends text to the rich content, space separated.
func (b *Builder) AppendRichContent(id NodeID, text string) {
	n := &b.nodes[id]
	if n.RichContent == "" {
		n.RichContent = text
		return
	}
	n.RichContent += " " + text
}

// AddTags attaches explicit tags to a node.
func (b *Builder) AddTags(id NodeID, tags ...string) {
	n := &b.nodes[id]
	n.Tags = append(n.Tags, tags...)
}

// SetRole fixes the role of a node regardless of its children.
func (b *Builder) SetRole(id NodeID, role Role) {
	b.nodes[id].Role = role
	b.role[id] = true
}

// Build finishes the tree. The Builder must not be used afterwards.
func (b *Builder) Build() (*Tree, error) {
	if len(b.nodes) == 0 {
		return nil, ErrNoRoot
	}
	t := &Tree{path: b.path, nodes: b.nodes}
	b.nodes = nil
	b.role = nil
	return t, nil
}
