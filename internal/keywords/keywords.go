// Package keywords parses keyword files into pattern trees.
//
// A keyword file is an indented outline. Interior lines are grouping labels;
// lines without deeper children are leaf patterns whose text is split on ':'
// into a sequence of regular-expression terms.
package keywords

import (
	"github.com/Aman-CERP/kbi/internal/doctree"
)

// Pattern is one leaf search definition.
type Pattern struct {
	// Terms are the regular expressions, in search order.
	Terms []string

	// Name is the display name: the leaf line as written.
	Name string

	// File and Line locate the declaration for diagnostics.
	File string
	Line int

	// Order is the declaration index within File.
	Order int
}

// Entry is a node of a pattern tree. Interior entries group other entries;
// leaf entries hold exactly one Pattern.
type Entry struct {
	Label    string
	Line     int
	Order    int
	Depth    int
	Children []*Entry

	// Pattern is nil for grouping entries.
	Pattern *Pattern

	// Matches is attached once by the search engine, in discovery order.
	Matches []doctree.NodeID
}

// IsLeaf reports whether e is a leaf pattern.
func (e *Entry) IsLeaf() bool { return e.Pattern != nil }

// Tree is the parsed form of one keyword file.
type Tree struct {
	File    string
	Entries []*Entry
}

// Walk visits every entry in declaration order (depth-first preorder).
// Returning false from fn skips the entry's children.
func (t *Tree) Walk(fn func(e *Entry) bool) {
	stack := make([]*Entry, 0, len(t.Entries))
	for i := len(t.Entries) - 1; i >= 0; i-- {
		stack = append(stack, t.Entries[i])
	}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(e) {
			continue
		}
		for i := len(e.Children) - 1; i >= 0; i-- {
			stack = append(stack, e.Children[i])
		}
	}
}

// Leaves returns the leaf entries in declaration order.
func (t *Tree) Leaves() []*Entry {
	var out []*Entry
	t.Walk(func(e *Entry) bool {
		if e.IsLeaf() {
			out = append(out, e)
		}
		return true
	})
	return out
}

// PatternCount returns the number of leaf patterns.
func (t *Tree) PatternCount() int {
	return len(t.Leaves())
}
