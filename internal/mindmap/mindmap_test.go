package mindmap

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/kbi/internal/doctree"
	"github.com/Aman-CERP/kbi/internal/errors"
	"github.com/Aman-CERP/kbi/internal/outline"
)

// testForest holds docs/a.md with a root and one keyed heading.
func testForest(t *testing.T) (*doctree.Forest, doctree.NodeID, doctree.NodeID) {
	t.Helper()
	b := doctree.NewBuilder("docs/a.md")
	root := b.SetRoot("a.md")
	intro := b.AddChild(root, "Intro")
	b.SetKey(intro, "intro")
	tree, err := b.Build()
	require.NoError(t, err)

	f := doctree.NewForest()
	r, err := f.Append(tree)
	require.NoError(t, err)
	f.Freeze()
	return f, r, r + intro
}

func testOutline(f *doctree.Forest, root, intro doctree.NodeID) *outline.Node {
	top := outline.New(outline.KindRoot, "Index & <More>")
	branch := outline.New(outline.KindBranch, "B")
	branch.SetAttr("count", "2")
	branch.Add(
		outline.Reference(outline.KindDocument, f, root, 100),
		outline.Reference(outline.KindMatch, f, intro, 100),
	)
	note := outline.New(outline.KindGroup, "note")
	note.RichContent = "x < y"
	top.Add(branch, note)
	return top
}

func TestEncode_Format(t *testing.T) {
	// Given: an outline with fixed IDs, an attribute, references and a note
	f, root, intro := testForest(t)
	top := testOutline(f, root, intro)
	ids := []string{"ID_R", "ID_B", "ID_D", "ID_M", "ID_N"}
	i := 0
	top.Walk(func(n *outline.Node, _ int) bool {
		n.ID = ids[i]
		i++
		return true
	})

	// When: encoding with the output one directory below the base
	var buf bytes.Buffer
	err := Encode(&buf, top, f, Options{BaseDir: "/kb", OutputDir: "/kb/out"})

	// Then: the map is rendered exactly
	require.NoError(t, err)
	want := `<map version="freeplane 1.12.1">
  <node ID="ID_R" TEXT="Index &amp; &lt;More&gt;">
    <node ID="ID_B" TEXT="B">
      <attribute NAME="count" VALUE="2"/>
      <node ID="ID_D" TEXT="a.md" LINK="../docs/a.md"/>
      <node ID="ID_M" TEXT="Intro" LINK="../docs/a.md#intro"/>
    </node>
    <node ID="ID_N" TEXT="note">
      <richcontent TYPE="NOTE" CONTENT-TYPE="xml/"><html><head/><body><p>x &lt; y</p></body></html></richcontent>
    </node>
  </node>
</map>
`
	assert.Equal(t, want, buf.String())
}

func TestEncode_Deterministic(t *testing.T) {
	// Given: two identical outlines without IDs
	f, root, intro := testForest(t)

	// When: encoding both
	var a, b bytes.Buffer
	require.NoError(t, Encode(&a, testOutline(f, root, intro), f, Options{}))
	require.NoError(t, Encode(&b, testOutline(f, root, intro), f, Options{}))

	// Then: output is byte-identical and IDs were generated
	assert.Equal(t, a.String(), b.String())
	assert.Contains(t, a.String(), `<node ID="ID_`)
	assert.NotContains(t, a.String(), `ID=""`)
	assert.Contains(t, a.String(), `LINK="docs/a.md#intro"`)
}

func TestEncode_ExplicitLinkWins(t *testing.T) {
	top := outline.New(outline.KindRoot, "r")
	top.Link = "https://example.com/a?b=c&d"
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, top, nil, Options{}))
	assert.Contains(t, buf.String(), `LINK="https://example.com/a?b=c&amp;d"`)
}

func TestRelativeLink(t *testing.T) {
	tests := []struct {
		name, base, out, doc, want string
	}{
		{"same dir", "/kb", "/kb", "a.md", "a.md"},
		{"output below base", "/kb", "/kb/out", "x/a.md", "../x/a.md"},
		{"output above base", "/kb/notes", "/kb", "a.md", "notes/a.md"},
		{"no dirs", "", "", "x/a.md", "x/a.md"},
		{"absolute doc", "/kb", "/kb", "/other/a.md", "../other/a.md"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RelativeLink(tt.base, tt.out, tt.doc))
		})
	}
}

func TestWriteFile(t *testing.T) {
	f, root, intro := testForest(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "index.mm")

	t.Run("writes atomically", func(t *testing.T) {
		// Given: an existing stale output
		require.NoError(t, os.WriteFile(out, []byte("stale"), 0o644))

		// When: writing the map
		err := WriteFile(out, testOutline(f, root, intro), f, Options{BaseDir: dir})

		// Then: the file is replaced and no temporary or lock files remain
		require.NoError(t, err)
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), `<map version="freeplane 1.12.1">`))
		assert.Contains(t, string(data), `LINK="docs/a.md#intro"`)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "index.mm", entries[0].Name())
	})

	t.Run("creates the output directory", func(t *testing.T) {
		nested := filepath.Join(dir, "out", "maps", "index.mm")

		err := WriteFile(nested, testOutline(f, root, intro), f, Options{BaseDir: dir})

		require.NoError(t, err)
		data, err := os.ReadFile(nested)
		require.NoError(t, err)
		assert.Contains(t, string(data), `LINK="../../docs/a.md#intro"`)
	})

	t.Run("locked by another writer", func(t *testing.T) {
		// Given: the output lock held elsewhere
		other := NewOutputLock(out)
		ok, err := other.TryLock()
		require.NoError(t, err)
		require.True(t, ok)
		defer other.Unlock()

		// When: writing
		err = WriteFile(out, testOutline(f, root, intro), f, Options{})

		// Then: the write is refused
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeOutputLocked, errors.GetCode(err))
	})
}
