// Package fsindex builds the file-system branch of the index: directories
// and files mirroring where each parsed document lives.
package fsindex

import (
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Aman-CERP/kbi/internal/doctree"
	"github.com/Aman-CERP/kbi/internal/outline"
)

// DefaultTitle is the text of the branch node.
const DefaultTitle = "File System Index"

// Options configures Build.
type Options struct {
	Title string

	// ExpandDocuments mirrors each document's nodes under its file node.
	ExpandDocuments bool

	// MaxText truncates mirrored node text.
	MaxText int
}

type dir struct {
	dirs  map[string]*dir
	files []file
}

type file struct {
	name string
	path string
	root doctree.NodeID
}

func newDir() *dir {
	return &dir{dirs: make(map[string]*dir)}
}

// Build returns the file-system branch for every root of f. Directory
// components shared by all documents are dropped. At each level directories
// come first, then files, each sorted by name.
func Build(f *doctree.Forest, opts Options) *outline.Node {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	branch := outline.New(outline.KindBranch, opts.Title)

	roots := f.Roots()
	if len(roots) == 0 {
		return branch
	}

	parts := make([][]string, len(roots))
	for i, r := range roots {
		parts[i] = splitPath(f.Node(r).Path)
	}
	prefix := commonDirPrefix(parts)

	top := newDir()
	for i, r := range roots {
		p := parts[i][prefix:]
		cur := top
		for _, name := range p[:len(p)-1] {
			next, ok := cur.dirs[name]
			if !ok {
				next = newDir()
				cur.dirs[name] = next
			}
			cur = next
		}
		cur.files = append(cur.files, file{name: p[len(p)-1], path: f.Node(r).Path, root: r})
	}

	type item struct {
		d   *dir
		out *outline.Node
	}
	stack := []item{{top, branch}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		names := make([]string, 0, len(it.d.dirs))
		for name := range it.d.dirs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			child := outline.New(outline.KindDirectory, name)
			it.out.Add(child)
			stack = append(stack, item{it.d.dirs[name], child})
		}

		sort.SliceStable(it.d.files, func(i, j int) bool {
			if it.d.files[i].name != it.d.files[j].name {
				return it.d.files[i].name < it.d.files[j].name
			}
			return it.d.files[i].path < it.d.files[j].path
		})
		for _, fl := range it.d.files {
			it.out.Add(fileNode(f, fl, opts))
		}
	}
	return branch
}

func fileNode(f *doctree.Forest, fl file, opts Options) *outline.Node {
	node := outline.New(outline.KindDocument, fl.name)
	node.Ref = fl.root
	if !opts.ExpandDocuments {
		return node
	}

	root := f.Node(fl.root)
	// A file-level root (no source key) is the file node itself; a keyed
	// root such as a mind-map center is shown below it.
	var top []doctree.NodeID
	if root.Key == "" {
		top = root.Children
	} else {
		top = []doctree.NodeID{fl.root}
	}
	mirror(f, node, top, opts.MaxText)
	return node
}

// mirror appends reference nodes for ids and their descendants under parent.
func mirror(f *doctree.Forest, parent *outline.Node, ids []doctree.NodeID, maxText int) {
	type item struct {
		id     doctree.NodeID
		parent *outline.Node
	}
	stack := make([]item, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		stack = append(stack, item{ids[i], parent})
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ref := outline.Reference(outline.KindMatch, f, it.id, maxText)
		it.parent.Add(ref)
		children := f.Node(it.id).Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, item{children[i], ref})
		}
	}
}

func splitPath(p string) []string {
	p = path.Clean(filepath.ToSlash(p))
	p = strings.TrimPrefix(p, "./")
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	if strings.HasPrefix(p, "/") {
		parts[0] = "/" + parts[0]
	}
	return parts
}

// commonDirPrefix returns how many leading directory components all paths
// share. File names never count.
func commonDirPrefix(paths [][]string) int {
	n := len(paths[0]) - 1
	for _, p := range paths[1:] {
		if len(p)-1 < n {
			n = len(p) - 1
		}
	}
	for i := 0; i < n; i++ {
		for _, p := range paths[1:] {
			if p[i] != paths[0][i] {
				return i
			}
		}
	}
	return n
}
