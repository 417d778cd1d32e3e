// Package assemble merges the file-system tree, the searched keyword
// patterns, and the tag index into the final index outline.
//
// Output is deterministic: the keyword and tag branches are ordered by
// case-folded display name with ties kept in declaration order, and nothing
// in the outline depends on timing or map iteration.
package assemble

import (
	"sort"

	"golang.org/x/text/cases"

	"github.com/Aman-CERP/kbi/internal/doctree"
	"github.com/Aman-CERP/kbi/internal/keywords"
	"github.com/Aman-CERP/kbi/internal/outline"
	"github.com/Aman-CERP/kbi/internal/tags"
)

// Default branch titles.
const (
	DefaultTitle        = "Navigation Index"
	DefaultKeywordTitle = "Keyword Index"
	DefaultTagTitle     = "Tag Index"
)

// Options configures Assemble.
type Options struct {
	Title        string
	KeywordTitle string
	TagTitle     string

	// MaxText truncates the text of match nodes.
	MaxText int
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	if o.KeywordTitle == "" {
		o.KeywordTitle = DefaultKeywordTitle
	}
	if o.TagTitle == "" {
		o.TagTitle = DefaultTagTitle
	}
	return o
}

// Input is everything the assembler merges. Forest must be frozen and every
// keyword leaf must already carry its matches.
type Input struct {
	Forest *doctree.Forest

	// FileSystem is inserted as is. Nil omits the branch.
	FileSystem *outline.Node

	// Keywords are the successfully parsed keyword files in configuration
	// order. Empty omits the branch.
	Keywords []*keywords.Tree

	// Tags may be nil. An empty index omits the branch.
	Tags *tags.Index

	Options Options
}

// Assemble builds the index outline. The result is not modified afterwards.
func Assemble(in Input) *outline.Node {
	opts := in.Options.withDefaults()
	root := outline.New(outline.KindRoot, opts.Title)

	if in.FileSystem != nil {
		root.Add(in.FileSystem)
	}
	if len(in.Keywords) > 0 {
		root.Add(keywordBranch(in.Forest, in.Keywords, opts))
	}
	if in.Tags != nil && in.Tags.Len() > 0 {
		root.Add(tagBranch(in.Forest, in.Tags, opts))
	}
	return root
}

// sorter orders display names case-insensitively. A cases.Caser is not safe
// for concurrent use, so each assembly owns one.
type sorter struct {
	fold cases.Caser
}

func newSorter() *sorter {
	return &sorter{fold: cases.Fold()}
}

func (s *sorter) key(name string) string {
	return s.fold.String(name)
}

// sortEntries stably sorts entries by folded label.
func (s *sorter) sortEntries(entries []*keywords.Entry) []*keywords.Entry {
	out := append([]*keywords.Entry(nil), entries...)
	keys := make(map[*keywords.Entry]string, len(out))
	for _, e := range out {
		keys[e] = s.key(e.Label)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return keys[out[i]] < keys[out[j]]
	})
	return out
}

func keywordBranch(f *doctree.Forest, trees []*keywords.Tree, opts Options) *outline.Node {
	s := newSorter()
	branch := outline.New(outline.KindBranch, opts.KeywordTitle)

	var top []*keywords.Entry
	for _, t := range trees {
		top = append(top, t.Entries...)
	}

	type item struct {
		entries []*keywords.Entry
		parent  *outline.Node
	}
	stack := []item{{top, branch}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, e := range s.sortEntries(it.entries) {
			if e.IsLeaf() {
				it.parent.Add(patternNode(f, e, opts))
				continue
			}
			group := outline.New(outline.KindGroup, e.Label)
			it.parent.Add(group)
			stack = append(stack, item{e.Children, group})
		}
	}
	return branch
}

// patternNode renders a leaf pattern with its matches in discovery order.
func patternNode(f *doctree.Forest, e *keywords.Entry, opts Options) *outline.Node {
	node := outline.New(outline.KindPattern, e.Pattern.Name)
	for _, id := range e.Matches {
		node.Add(outline.Reference(outline.KindMatch, f, id, opts.MaxText))
	}
	return node
}

func tagBranch(f *doctree.Forest, idx *tags.Index, opts Options) *outline.Node {
	s := newSorter()
	branch := outline.New(outline.KindBranch, opts.TagTitle)

	names := idx.Tags()
	sort.SliceStable(names, func(i, j int) bool {
		ki, kj := s.key(names[i]), s.key(names[j])
		if ki != kj {
			return ki < kj
		}
		return names[i] < names[j]
	})

	for _, tag := range names {
		tagNode := outline.New(outline.KindTag, tag)
		roots := idx.Roots(tag)
		paths := make(map[doctree.NodeID]string, len(roots))
		for _, r := range roots {
			paths[r] = f.Node(r).Path
		}
		sort.SliceStable(roots, func(i, j int) bool {
			pi, pj := paths[roots[i]], paths[roots[j]]
			if ki, kj := s.key(pi), s.key(pj); ki != kj {
				return ki < kj
			}
			return pi < pj
		})
		for _, r := range roots {
			doc := outline.New(outline.KindDocument, paths[r])
			doc.Ref = r
			tagNode.Add(doc)
		}
		branch.Add(tagNode)
	}
	return branch
}
