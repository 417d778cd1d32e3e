// Package search evaluates keyword patterns against a document forest.
//
// A pattern [t1 ... tn] is evaluated by scope narrowing: t1 is matched over
// the whole forest in depth-first preorder, each match opens a scope equal to
// its own subtree (the node included), and every later term is matched only
// inside the scopes opened by the previous term. The result is the set of
// nodes matching tn, deduplicated, in first-discovered order.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/kbi/internal/doctree"
	"github.com/Aman-CERP/kbi/internal/errors"
	"github.com/Aman-CERP/kbi/internal/keywords"
)

// Engine runs patterns against a frozen forest. It is safe for concurrent
// use once constructed.
type Engine struct {
	forest      *doctree.Forest
	compiler    Compiler
	workers     int
	richContent bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the number of patterns evaluated concurrently.
// Values below 1 mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithRichContent also matches terms against node rich content.
func WithRichContent(enabled bool) Option {
	return func(e *Engine) {
		e.richContent = enabled
	}
}

// NewEngine creates an engine over forest.
func NewEngine(forest *doctree.Forest, compiler Compiler, opts ...Option) *Engine {
	e := &Engine{forest: forest, compiler: compiler}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	return e
}

func (e *Engine) text(n *doctree.Node) string {
	if e.richContent && n.RichContent != "" {
		return n.Text + " " + n.RichContent
	}
	return n.Text
}

// Search evaluates one term sequence and returns the matching nodes.
// An empty result is not an error.
func (e *Engine) Search(terms []string) ([]doctree.NodeID, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	matchers := make([]Matcher, len(terms))
	for i, term := range terms {
		m, err := e.compiler.Compile(term)
		if err != nil {
			return nil, errors.New(errors.ErrCodeSearchFailed,
				fmt.Sprintf("compile term %q: %v", term, err), err)
		}
		matchers[i] = m
	}

	scopes := e.forest.Roots()
	n := e.forest.Len()
	for _, m := range matchers {
		// walked marks nodes already covered by an earlier scope of this
		// term; a scope inside one of them can only rediscover the same
		// matches. added deduplicates the matches themselves.
		walked := make([]bool, n)
		added := make([]bool, n)
		var next []doctree.NodeID

		for _, scope := range scopes {
			if walked[scope] {
				continue
			}
			e.forest.Walk(scope, func(node *doctree.Node) bool {
				walked[node.ID] = true
				if !added[node.ID] && m.Match(e.text(node)) {
					added[node.ID] = true
					next = append(next, node.ID)
				}
				return true
			})
		}
		if len(next) == 0 {
			return nil, nil
		}
		scopes = next
	}
	return scopes, nil
}

// Stats summarizes a SearchTrees call.
type Stats struct {
	Patterns int
	Matched  int
	Empty    int
}

// SearchTrees evaluates every leaf pattern of trees on a bounded worker pool
// and attaches the results to the leaves. It returns once every leaf has its
// match list.
func (e *Engine) SearchTrees(ctx context.Context, trees []*keywords.Tree) (Stats, error) {
	var leaves []*keywords.Entry
	for _, t := range trees {
		leaves = append(leaves, t.Leaves()...)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, leaf := range leaves {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			matches, err := e.Search(leaf.Pattern.Terms)
			if err != nil {
				if ke, ok := errors.As(err); ok {
					ke.At(leaf.Pattern.File, leaf.Pattern.Line)
				}
				return err
			}
			// Each leaf is written only by its own goroutine.
			leaf.Matches = matches
			slog.Debug("pattern_searched",
				slog.String("pattern", leaf.Pattern.Name),
				slog.Int("matches", len(matches)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats := Stats{Patterns: len(leaves)}
	for _, leaf := range leaves {
		stats.Matched += len(leaf.Matches)
		if len(leaf.Matches) == 0 {
			stats.Empty++
		}
	}
	return stats, nil
}
