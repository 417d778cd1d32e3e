package doctree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSample creates:
//
//	root
//	├── a
//	│   ├── a1
//	│   └── a2
//	└── b
func buildSample(t *testing.T, path string) *Tree {
	t.Helper()
	b := NewBuilder(path)
	root := b.SetRoot("root")
	a := b.AddChild(root, "a")
	b.AddChild(a, "a1")
	b.AddChild(a, "a2")
	b.AddChild(root, "b")
	tree, err := b.Build()
	require.NoError(t, err)
	return tree
}

func texts(f *Forest, ids []NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = f.Node(id).Text
	}
	return out
}

func TestBuilder_RolesAndDepth(t *testing.T) {
	b := NewBuilder("doc.md")
	root := b.SetRoot("doc.md")
	h := b.AddChild(root, "heading")
	item := b.AddChild(h, "item")
	fixed := b.AddChild(root, "declared leaf")
	b.SetRole(fixed, RoleLeaf)
	b.AddChild(fixed, "child")

	tree, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, RoleInterior, tree.Node(root).Role)
	assert.Equal(t, RoleInterior, tree.Node(h).Role)
	assert.Equal(t, RoleLeaf, tree.Node(item).Role)
	assert.Equal(t, RoleLeaf, tree.Node(fixed).Role, "explicit role wins over children")
	assert.Equal(t, 2, tree.Node(item).Depth)
	assert.Equal(t, "doc.md", tree.Node(item).Path)
	assert.True(t, tree.Root().IsRoot())
}

func TestBuilder_NoRoot(t *testing.T) {
	_, err := NewBuilder("empty.md").Build()
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestBuilder_SecondRootPanics(t *testing.T) {
	b := NewBuilder("x")
	b.SetRoot("one")
	assert.Panics(t, func() { b.SetRoot("two") })
}

func TestForest_AppendRebasesIDs(t *testing.T) {
	// Given: two trees built independently
	f := NewForest()
	r1, err := f.Append(buildSample(t, "one.md"))
	require.NoError(t, err)
	r2, err := f.Append(buildSample(t, "two.md"))
	require.NoError(t, err)

	// Then: ids are unique and links point inside the right tree
	assert.Equal(t, NodeID(0), r1)
	assert.Equal(t, NodeID(5), r2)
	assert.Equal(t, []NodeID{r1, r2}, f.Roots())
	assert.Equal(t, 10, f.Len())

	second := f.Node(r2)
	require.Len(t, second.Children, 2)
	a := f.Node(second.Children[0])
	assert.Equal(t, "a", a.Text)
	assert.Equal(t, r2, a.Parent)
	assert.Equal(t, r2, a.Root)
	assert.Equal(t, "two.md", a.Path)
}

func TestForest_FrozenRejectsAppend(t *testing.T) {
	f := NewForest()
	f.Freeze()
	_, err := f.Append(buildSample(t, "x.md"))
	assert.ErrorIs(t, err, ErrFrozen)
	assert.True(t, f.Frozen())
}

func TestForest_WalkPreorder(t *testing.T) {
	f := NewForest()
	_, _ = f.Append(buildSample(t, "one.md"))
	_, _ = f.Append(buildSample(t, "two.md"))

	var all []string
	f.WalkAll(func(n *Node) bool {
		all = append(all, n.Text)
		return true
	})

	assert.Equal(t, []string{"root", "a", "a1", "a2", "b", "root", "a", "a1", "a2", "b"}, all)
	assert.Equal(t, []string{"a", "a1", "a2"}, texts(f, f.Subtree(1)))
}

func TestForest_WalkStops(t *testing.T) {
	f := NewForest()
	_, _ = f.Append(buildSample(t, "one.md"))
	_, _ = f.Append(buildSample(t, "two.md"))

	count := 0
	f.WalkAll(func(n *Node) bool {
		count++
		return n.Text != "a1"
	})
	assert.Equal(t, 3, count)
}

func TestForest_DeepTreeIsIterative(t *testing.T) {
	// Given: a chain far deeper than typical recursion limits
	b := NewBuilder("deep.mm")
	cur := b.SetRoot("0")
	for i := 0; i < 200000; i++ {
		cur = b.AddChild(cur, "n")
	}
	tree, err := b.Build()
	require.NoError(t, err)

	f := NewForest()
	_, err = f.Append(tree)
	require.NoError(t, err)

	// Then: walking and ancestry do not overflow
	assert.Len(t, f.Subtree(0), 200001)
	assert.True(t, f.InSubtree(0, cur))
	assert.Len(t, f.Ancestors(cur), 200000)
}

func TestForest_InSubtree(t *testing.T) {
	f := NewForest()
	_, _ = f.Append(buildSample(t, "one.md"))
	r2, _ := f.Append(buildSample(t, "two.md"))

	assert.True(t, f.InSubtree(1, 1), "scope is inclusive")
	assert.True(t, f.InSubtree(1, 3))
	assert.False(t, f.InSubtree(1, 4), "sibling is outside")
	assert.False(t, f.InSubtree(0, r2+1), "other document is outside")
	assert.Equal(t, []NodeID{1, 0}, f.Ancestors(2))
}

func TestForest_RootByPath(t *testing.T) {
	f := NewForest()
	_, _ = f.Append(buildSample(t, "one.md"))
	r2, _ := f.Append(buildSample(t, "two.md"))

	id, ok := f.RootByPath("two.md")
	assert.True(t, ok)
	assert.Equal(t, r2, id)

	_, ok = f.RootByPath("missing.md")
	assert.False(t, ok)
	assert.True(t, f.Valid(r2))
	assert.False(t, f.Valid(NodeID(f.Len())))
}
