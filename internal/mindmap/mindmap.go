// Package mindmap serializes an assembled outline as a Freeplane mind map.
//
// Output is byte-for-byte deterministic for identical inputs: node IDs are
// derived from outline position, attributes are written in a fixed order,
// and no timestamps are emitted.
package mindmap

import (
	"bufio"
	"encoding/xml"
	"io"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/kbi/internal/doctree"
	"github.com/Aman-CERP/kbi/internal/outline"
)

// DefaultVersion is written to the map element.
const DefaultVersion = "freeplane 1.12.1"

// Options configures Encode.
type Options struct {
	// BaseDir is the directory document paths are relative to.
	BaseDir string

	// OutputDir is the directory links are made relative to, normally the
	// directory of the output file.
	OutputDir string

	// Version overrides DefaultVersion.
	Version string
}

// Encode writes root as a Freeplane map. Nodes without an ID get one from
// outline.AssignIDs. Links of reference nodes point at the referenced
// document, with the node key as fragment for non-root nodes.
func Encode(w io.Writer, root *outline.Node, f *doctree.Forest, opts Options) error {
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if root.ID == "" {
		outline.AssignIDs(root)
	}

	bw := bufio.NewWriter(w)
	e := &encoder{w: bw, forest: f, opts: opts}
	e.raw(`<map version="`)
	e.attr(opts.Version)
	e.raw("\">\n")

	type item struct {
		node  *outline.Node
		depth int
		close bool
	}
	stack := []item{{node: root, depth: 1}}
	for len(stack) > 0 && e.err == nil {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.close {
			e.indent(it.depth)
			e.raw("</node>\n")
			continue
		}
		n := it.node
		empty := len(n.Children) == 0 && len(n.Attrs) == 0 && n.RichContent == ""
		e.open(n, it.depth, empty)
		if empty {
			continue
		}
		e.body(n, it.depth+1)
		stack = append(stack, item{node: n, depth: it.depth, close: true})
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{node: n.Children[i], depth: it.depth + 1})
		}
	}
	e.raw("</map>\n")
	if e.err != nil {
		return e.err
	}
	return bw.Flush()
}

type encoder struct {
	w      *bufio.Writer
	forest *doctree.Forest
	opts   Options
	err    error
}

func (e *encoder) raw(s string) {
	if e.err == nil {
		_, e.err = e.w.WriteString(s)
	}
}

func (e *encoder) attr(s string) {
	if e.err == nil {
		e.err = xml.EscapeText(e.w, []byte(s))
	}
}

func (e *encoder) indent(depth int) {
	e.raw(strings.Repeat("  ", depth))
}

func (e *encoder) open(n *outline.Node, depth int, selfClose bool) {
	e.indent(depth)
	e.raw(`<node ID="`)
	e.attr(n.ID)
	e.raw(`" TEXT="`)
	e.attr(n.Text)
	e.raw(`"`)
	if link := e.link(n); link != "" {
		e.raw(` LINK="`)
		e.attr(link)
		e.raw(`"`)
	}
	if selfClose {
		e.raw("/>\n")
	} else {
		e.raw(">\n")
	}
}

func (e *encoder) body(n *outline.Node, depth int) {
	for _, a := range n.Attrs {
		e.indent(depth)
		e.raw(`<attribute NAME="`)
		e.attr(a.Name)
		e.raw(`" VALUE="`)
		e.attr(a.Value)
		e.raw("\"/>\n")
	}
	if n.RichContent != "" {
		e.indent(depth)
		e.raw(`<richcontent TYPE="NOTE" CONTENT-TYPE="xml/"><html><head/><body><p>`)
		e.attr(n.RichContent)
		e.raw("</p></body></html></richcontent>\n")
	}
}

func (e *encoder) link(n *outline.Node) string {
	if n.Link != "" {
		return n.Link
	}
	if n.Ref == doctree.NoNode || e.forest == nil || !e.forest.Valid(n.Ref) {
		return ""
	}
	dn := e.forest.Node(n.Ref)
	link := RelativeLink(e.opts.BaseDir, e.opts.OutputDir, dn.Path)
	if !dn.IsRoot() && dn.Key != "" {
		link += "#" + dn.Key
	}
	return link
}

// RelativeLink returns docPath, taken relative to baseDir, as a slash
// separated path relative to outputDir. When no relative form exists the
// joined path is returned as is.
func RelativeLink(baseDir, outputDir, docPath string) string {
	target := filepath.FromSlash(docPath)
	if baseDir != "" && !filepath.IsAbs(target) {
		target = filepath.Join(baseDir, target)
	}
	if outputDir != "" {
		if rel, err := filepath.Rel(outputDir, target); err == nil {
			target = rel
		}
	}
	return filepath.ToSlash(target)
}
