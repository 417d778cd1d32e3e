package assemble

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/cases"

	"github.com/Aman-CERP/kbi/internal/doctree"
	"github.com/Aman-CERP/kbi/internal/fsindex"
	"github.com/Aman-CERP/kbi/internal/keywords"
	"github.com/Aman-CERP/kbi/internal/outline"
	"github.com/Aman-CERP/kbi/internal/search"
	"github.com/Aman-CERP/kbi/internal/tags"
)

// testForest holds three documents:
//
//	b/guide.md: Guide > API Gateway > reference guide, #Testing
//	a/notes.md: Notes > api reference #python
//	c/Zeta.md:  Zeta  #python
func testForest(t *testing.T) *doctree.Forest {
	t.Helper()
	f := doctree.NewForest()
	add := func(path string, build func(b *doctree.Builder, root doctree.NodeID)) {
		b := doctree.NewBuilder(path)
		root := b.SetRoot(path[strings.LastIndex(path, "/")+1:])
		build(b, root)
		tree, err := b.Build()
		require.NoError(t, err)
		_, err = f.Append(tree)
		require.NoError(t, err)
	}
	add("b/guide.md", func(b *doctree.Builder, root doctree.NodeID) {
		g := b.AddChild(root, "Guide")
		api := b.AddChild(g, "API Gateway")
		b.AddChild(api, "reference guide #Testing")
	})
	add("a/notes.md", func(b *doctree.Builder, root doctree.NodeID) {
		n := b.AddChild(root, "Notes")
		b.AddChild(n, "api reference #python")
	})
	add("c/Zeta.md", func(b *doctree.Builder, root doctree.NodeID) {
		b.AddChild(root, "Zeta #python")
	})
	f.Freeze()
	return f
}

func parseKeywords(t *testing.T, name, content string) *keywords.Tree {
	t.Helper()
	tree, _, err := keywords.Parse(name, strings.NewReader(content), keywords.Options{})
	require.NoError(t, err)
	return tree
}

func assembleAll(t *testing.T, f *doctree.Forest, trees ...*keywords.Tree) *outline.Node {
	t.Helper()
	compiler, err := search.NewRegexCompiler()
	require.NoError(t, err)
	_, err = search.NewEngine(f, compiler).SearchTrees(context.Background(), trees)
	require.NoError(t, err)

	idx, err := tags.NewExtractor().BuildIndex(context.Background(), f)
	require.NoError(t, err)

	return Assemble(Input{
		Forest:     f,
		FileSystem: fsindex.Build(f, fsindex.Options{}),
		Keywords:   trees,
		Tags:       idx,
		Options:    Options{MaxText: 100},
	})
}

func childTexts(n *outline.Node) []string {
	out := make([]string, len(n.Children))
	for i, c := range n.Children {
		out[i] = c.Text
	}
	return out
}

func TestAssemble_ThreeBranches(t *testing.T) {
	f := testForest(t)
	kw := parseKeywords(t, "kw.txt", "Docs\n\tapi:reference\n")

	root := assembleAll(t, f, kw)

	assert.Equal(t, "Navigation Index", root.Text)
	assert.Equal(t, []string{"File System Index", "Keyword Index", "Tag Index"}, childTexts(root))
}

func TestAssemble_KeywordBranchSortedWithTies(t *testing.T) {
	// Given: groups and leaves declared out of order, with case variants
	content := "zeta group\n\tb\n\tA\n\ta\n" +
		"Alpha\n\tguide\n" +
		"alpha\n\tnotes\n"
	f := testForest(t)
	kw := parseKeywords(t, "kw.txt", content)

	// When: assembling
	root := assembleAll(t, f, kw)
	branch := root.Child("Keyword Index")
	require.NotNil(t, branch)

	// Then: folded alphabetical order, ties in declaration order
	assert.Equal(t, []string{"Alpha", "alpha", "zeta group"}, childTexts(branch))
	assert.Equal(t, []string{"guide"}, childTexts(branch.Children[0]))
	assert.Equal(t, []string{"notes"}, childTexts(branch.Children[1]))
	assert.Equal(t, []string{"A", "a", "b"}, childTexts(branch.Children[2]))
}

func TestAssemble_ScenarioA_MatchesAttached(t *testing.T) {
	f := testForest(t)
	kw := parseKeywords(t, "kw.txt", "Docs\n\tapi:reference\n")

	root := assembleAll(t, f, kw)

	leaf := root.Child("Keyword Index").Child("Docs").Child("api:reference")
	require.NotNil(t, leaf)
	assert.Equal(t, outline.KindPattern, leaf.Kind)
	// Discovery order follows the forest, not the alphabet.
	assert.Equal(t, []string{"reference guide #Testing", "api reference #python"}, childTexts(leaf))
	for _, m := range leaf.Children {
		assert.Equal(t, outline.KindMatch, m.Kind)
		assert.True(t, f.Valid(m.Ref))
	}
}

func TestAssemble_ScenarioB_EmptyLeafKept(t *testing.T) {
	f := testForest(t)
	kw := parseKeywords(t, "kw.txt", "Empty\n\tfoo:bar\n")

	root := assembleAll(t, f, kw)

	leaf := root.Child("Keyword Index").Child("Empty").Child("foo:bar")
	require.NotNil(t, leaf)
	assert.Empty(t, leaf.Children)
}

func TestAssemble_CompletenessAcrossFiles(t *testing.T) {
	// Every declared pattern appears exactly once, from every keyword file.
	f := testForest(t)
	one := parseKeywords(t, "one.txt", "G\n\tapi\n\tnothing\n")
	two := parseKeywords(t, "two.txt", "G\n\tzeta\nsolo:x\n")

	root := assembleAll(t, f, one, two)

	counts := map[string]int{}
	root.Child("Keyword Index").Walk(func(n *outline.Node, _ int) bool {
		if n.Kind == outline.KindPattern {
			counts[n.Text]++
		}
		return true
	})
	assert.Equal(t, map[string]int{"api": 1, "nothing": 1, "zeta": 1, "solo:x": 1}, counts)
	assert.Equal(t, []string{"G", "G", "solo:x"}, childTexts(root.Child("Keyword Index")),
		"groups from different files stay separate, file order breaks the tie")
}

func TestAssemble_ScenarioC_TagBranch(t *testing.T) {
	f := testForest(t)

	root := assembleAll(t, f)

	branch := root.Child("Tag Index")
	require.NotNil(t, branch)
	assert.Equal(t, []string{"python", "testing"}, childTexts(branch))
	assert.Equal(t, []string{"a/notes.md", "c/Zeta.md"}, childTexts(branch.Child("python")))
	assert.Equal(t, []string{"b/guide.md"}, childTexts(branch.Child("testing")))

	doc := branch.Child("testing").Children[0]
	assert.Equal(t, f.Roots()[0], doc.Ref, "tag children reference the document root")
}

func TestAssemble_OmitsEmptyBranches(t *testing.T) {
	f := doctree.NewForest()
	f.Freeze()

	root := Assemble(Input{
		Forest:     f,
		FileSystem: fsindex.Build(f, fsindex.Options{}),
		Tags:       tags.NewIndex(),
	})

	assert.Equal(t, []string{"File System Index"}, childTexts(root))
}

func TestAssemble_AlphabeticalInvariant(t *testing.T) {
	f := testForest(t)
	kw := parseKeywords(t, "kw.txt", keywords.SampleContent())
	root := assembleAll(t, f, kw)
	fold := cases.Fold()

	for _, title := range []string{"Keyword Index", "Tag Index"} {
		root.Child(title).Walk(func(n *outline.Node, _ int) bool {
			if n.Kind == outline.KindPattern {
				return false // match lists keep discovery order
			}
			for i := 1; i < len(n.Children); i++ {
				prev, cur := fold.String(n.Children[i-1].Text), fold.String(n.Children[i].Text)
				assert.LessOrEqual(t, prev, cur, "under %q", n.Text)
			}
			return true
		})
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	render := func() []string {
		f := testForest(t)
		kw := parseKeywords(t, "kw.txt", keywords.SampleContent()+"Docs\n\tapi:reference\n")
		root := assembleAll(t, f, kw)
		outline.AssignIDs(root)
		var lines []string
		root.Walk(func(n *outline.Node, depth int) bool {
			lines = append(lines, strings.Repeat(" ", depth)+n.ID+" "+n.Text)
			return true
		})
		return lines
	}

	assert.Equal(t, render(), render())
}

func TestAssemble_ReferencesNotCopies(t *testing.T) {
	// The same document node is reachable from several branches by id.
	f := testForest(t)
	kw := parseKeywords(t, "kw.txt", "python\n")

	compiler, err := search.NewRegexCompiler()
	require.NoError(t, err)
	_, err = search.NewEngine(f, compiler).SearchTrees(context.Background(), []*keywords.Tree{kw})
	require.NoError(t, err)

	root := Assemble(Input{
		Forest:     f,
		FileSystem: fsindex.Build(f, fsindex.Options{ExpandDocuments: true}),
		Keywords:   []*keywords.Tree{kw},
	})

	refs := map[doctree.NodeID]int{}
	root.Walk(func(n *outline.Node, _ int) bool {
		if n.Ref != doctree.NoNode && n.Kind == outline.KindMatch {
			refs[n.Ref]++
		}
		return true
	})
	target := f.Node(f.Roots()[1]).Children[0]
	target = f.Node(target).Children[0] // "api reference #python"
	assert.Equal(t, 2, refs[target], "once in the file-system branch, once under the pattern")
}
