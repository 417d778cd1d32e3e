// Package tags finds tag markers in documents and groups documents by tag.
package tags

import (
	"context"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Aman-CERP/kbi/internal/doctree"
)

var (
	// hashtagPattern matches "#token" at the start of text or after whitespace.
	hashtagPattern = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_-]+)`)

	// inlineCodePattern matches `code` spans, which never carry tags.
	inlineCodePattern = regexp.MustCompile("`[^`\n]+`")

	digitsPattern = regexp.MustCompile(`^\d+$`)
)

// DefaultExcluded are markers that look like tags but are C preprocessor
// directives.
var DefaultExcluded = []string{
	"define", "include", "ifndef", "endif", "pragma", "undef",
	"if", "else", "error", "warning", "line",
}

// Extractor collects tags from document trees.
type Extractor struct {
	excluded map[string]struct{}
	workers  int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithExcluded replaces the excluded marker list.
func WithExcluded(words []string) Option {
	return func(x *Extractor) {
		x.excluded = make(map[string]struct{}, len(words))
		for _, w := range words {
			x.excluded[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithWorkers bounds the number of roots scanned concurrently.
func WithWorkers(n int) Option {
	return func(x *Extractor) {
		x.workers = n
	}
}

// NewExtractor creates an Extractor with DefaultExcluded.
func NewExtractor(opts ...Option) *Extractor {
	x := &Extractor{}
	WithExcluded(DefaultExcluded)(x)
	for _, opt := range opts {
		opt(x)
	}
	if x.workers < 1 {
		x.workers = runtime.NumCPU()
	}
	return x
}

// Markers returns the hashtag markers found in text, in order of
// appearance, without the leading '#'. Inline code is ignored.
func (x *Extractor) Markers(text string) []string {
	if !strings.Contains(text, "#") {
		return nil
	}
	text = inlineCodePattern.ReplaceAllString(text, "")
	var out []string
	for _, m := range hashtagPattern.FindAllStringSubmatch(text, -1) {
		tok := m[1]
		if digitsPattern.MatchString(tok) {
			continue
		}
		if _, skip := x.excluded[strings.ToLower(tok)]; skip {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Extract returns the distinct lowercase tags of the document rooted at
// root, in discovery order.
func (x *Extractor) Extract(f *doctree.Forest, root doctree.NodeID) []string {
	lower := cases.Lower(language.Und)
	seen := make(map[string]struct{})
	var out []string
	add := func(raw string) {
		tag := lower.String(strings.TrimPrefix(strings.TrimSpace(raw), "#"))
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	f.Walk(root, func(n *doctree.Node) bool {
		for _, t := range n.Tags {
			add(t)
		}
		for _, t := range x.Markers(n.Text) {
			add(t)
		}
		for _, t := range x.Markers(n.RichContent) {
			add(t)
		}
		return true
	})
	return out
}

// BuildIndex scans every root of f concurrently and returns the tag index.
// Roots are recorded in forest order regardless of scan timing.
func (x *Extractor) BuildIndex(ctx context.Context, f *doctree.Forest) (*Index, error) {
	roots := f.Roots()
	perRoot := make([][]string, len(roots))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(x.workers)
	for i, root := range roots {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			perRoot[i] = x.Extract(f, root)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := NewIndex()
	for i, root := range roots {
		for _, tag := range perRoot[i] {
			idx.Add(tag, root)
		}
	}
	return idx, nil
}

// Index maps a lowercase tag to the distinct document roots carrying it.
type Index struct {
	roots map[string][]doctree.NodeID
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{roots: make(map[string][]doctree.NodeID)}
}

// Add records that root carries tag. Duplicates are ignored.
func (idx *Index) Add(tag string, root doctree.NodeID) {
	for _, r := range idx.roots[tag] {
		if r == root {
			return
		}
	}
	idx.roots[tag] = append(idx.roots[tag], root)
}

// Len returns the number of distinct tags.
func (idx *Index) Len() int { return len(idx.roots) }

// Tags returns every tag in sorted order.
func (idx *Index) Tags() []string {
	out := make([]string, 0, len(idx.roots))
	for tag := range idx.roots {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Roots returns the roots carrying tag in the order they were added.
func (idx *Index) Roots(tag string) []doctree.NodeID {
	return append([]doctree.NodeID(nil), idx.roots[tag]...)
}
