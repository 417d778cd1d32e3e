// Package outline defines the assembled index tree handed to serializers.
//
// Outline nodes never copy document content they point at: a node that
// stands for a document node carries its doctree.NodeID in Ref, so every
// branch of the index refers to the same underlying node.
package outline

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Aman-CERP/kbi/internal/doctree"
)

// Kind classifies outline nodes for serializers.
type Kind uint8

const (
	KindRoot Kind = iota
	KindBranch
	KindGroup
	KindPattern
	KindDirectory
	KindDocument
	KindMatch
	KindTag
)

var kindNames = [...]string{"root", "branch", "group", "pattern", "directory", "document", "match", "tag"}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Attr is a named attribute rendered with the node.
type Attr struct {
	Name  string
	Value string
}

// Node is one element of the assembled index.
type Node struct {
	// ID is stable across runs for identical inputs; see AssignIDs.
	ID   string
	Kind Kind
	Text string

	// Link overrides the link a serializer derives from Ref.
	Link        string
	RichContent string
	Attrs       []Attr

	// Ref is the referenced document node, or doctree.NoNode.
	Ref      doctree.NodeID
	Children []*Node
}

// New creates a node that does not reference a document.
func New(kind Kind, text string) *Node {
	return &Node{Kind: kind, Text: text, Ref: doctree.NoNode}
}

// DefaultMaxText is the display length of referenced node text.
const DefaultMaxText = 100

// Reference creates a node pointing at document node id. Its text is the
// document node's text, or its rich content when the text is empty,
// truncated to maxText runes.
func Reference(kind Kind, f *doctree.Forest, id doctree.NodeID, maxText int) *Node {
	dn := f.Node(id)
	text := dn.Text
	if strings.TrimSpace(text) == "" {
		text = dn.RichContent
	}
	return &Node{Kind: kind, Text: Truncate(text, maxText), Ref: id}
}

// Truncate shortens s to max runes followed by "...". max <= 0 disables it.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

// Add appends children and returns n.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// SetAttr sets or replaces an attribute.
func (n *Node) SetAttr(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// Attr returns the value of an attribute.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first direct child with the given text.
func (n *Node) Child(text string) *Node {
	for _, c := range n.Children {
		if c.Text == text {
			return c
		}
	}
	return nil
}

// Walk visits n and its descendants in depth-first preorder. depth is 0 for
// n. Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	type item struct {
		node  *Node
		depth int
	}
	stack := []item{{n, 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(it.node, it.depth) {
			continue
		}
		for i := len(it.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{it.node.Children[i], it.depth + 1})
		}
	}
}

// Count returns the number of nodes in the tree rooted at n.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node, int) bool {
		count++
		return true
	})
	return count
}

// namespace scopes generated node IDs.
var namespace = uuid.MustParse("6f1c3a52-8d0e-4c59-9b7a-2f4d6e8a1b3c")

// AssignIDs gives every node an ID derived from its position and text, so
// identical trees always get identical IDs. IDs have the Freeplane form
// "ID_" followed by hex digits.
func AssignIDs(root *Node) {
	type item struct {
		node *Node
		path string
	}
	stack := []item{{root, "0"}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		sum := uuid.NewSHA1(namespace, []byte(it.path+"\x00"+it.node.Text))
		it.node.ID = "ID_" + strings.ToUpper(strings.ReplaceAll(sum.String(), "-", "")[:12])
		for i := len(it.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{it.node.Children[i], it.path + "." + strconv.Itoa(i)})
		}
	}
}
