package keywords

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/Aman-CERP/kbi/internal/errors"
)

// DefaultIndentWidth is the number of spaces equivalent to one tab.
const DefaultIndentWidth = 4

// CompileFunc checks that a term is a valid pattern.
type CompileFunc func(term string) error

// Options configures parsing.
type Options struct {
	// IndentWidth is the number of spaces that make one level.
	IndentWidth int

	// Compile validates each leaf term. Defaults to CheckTerm.
	Compile CompileFunc
}

func (o Options) withDefaults() Options {
	if o.IndentWidth <= 0 {
		o.IndentWidth = DefaultIndentWidth
	}
	if o.Compile == nil {
		o.Compile = CheckTerm
	}
	return o
}

// CheckTerm reports whether term is a valid regular expression on its own.
// Terms are checked before any flags or anchors are wrapped around them, so
// unbalanced groups such as "foo)|(bar" are rejected.
func CheckTerm(term string) error {
	_, err := regexp.Compile(term)
	return err
}

// line is one non-comment line of a keyword file.
type line struct {
	num   int
	depth int
	text  string
}

// ParseFile reads and parses the keyword file at path.
// An unreadable file is fatal and reported with ErrCodeKeywordsMissing.
func ParseFile(path string, opts Options) (*Tree, []*errors.KBIError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.New(errors.ErrCodeKeywordsMissing,
			fmt.Sprintf("cannot read keyword file: %v", err), err).At(path, 0)
	}
	defer f.Close()
	return Parse(path, f, opts)
}

// Parse reads a keyword file from r. name is used in diagnostics.
//
// A structural error (an indentation jump of more than one level) rejects
// the whole file: the returned error is a KBIError with
// ErrCodeKeywordStructure and the tree is nil. Terms that fail to compile
// drop only their own leaf and are returned as warnings.
func Parse(name string, r io.Reader, opts Options) (*Tree, []*errors.KBIError, error) {
	opts = opts.withDefaults()

	lines, err := readLines(r, opts.IndentWidth)
	if err != nil {
		return nil, nil, errors.New(errors.ErrCodeKeywordsMissing,
			fmt.Sprintf("cannot read keyword file: %v", err), err).At(name, 0)
	}

	tree := &Tree{File: name}
	var stack []*Entry
	prev := -1
	for i, ln := range lines {
		if ln.depth > prev+1 {
			return nil, nil, errors.StructuralParse(name, ln.num, ln.depth, prev)
		}
		e := &Entry{Label: ln.text, Line: ln.num, Order: i, Depth: ln.depth}
		stack = stack[:ln.depth]
		if ln.depth == 0 {
			tree.Entries = append(tree.Entries, e)
		} else {
			parent := stack[ln.depth-1]
			parent.Children = append(parent.Children, e)
		}
		stack = append(stack, e)
		prev = ln.depth
	}

	warnings := attachPatterns(tree, opts.Compile)
	return tree, warnings, nil
}

// readLines returns content lines with their depth, skipping blanks and
// comments.
func readLines(r io.Reader, indentWidth int) ([]line, error) {
	var out []line
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	num := 0
	for sc.Scan() {
		num++
		raw := sc.Text()
		if num == 1 {
			raw = strings.TrimPrefix(raw, "\ufeff")
		}
		raw = strings.TrimRight(raw, " \t\r")

		cols := 0
		i := 0
		for ; i < len(raw); i++ {
			switch raw[i] {
			case '\t':
				cols += indentWidth
				continue
			case ' ':
				cols++
				continue
			}
			break
		}
		text := raw[i:]
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		out = append(out, line{num: num, depth: cols / indentWidth, text: text})
	}
	return out, sc.Err()
}

// attachPatterns turns childless entries into leaf patterns. Leaves with a
// term that does not compile are removed from their parent.
func attachPatterns(t *Tree, compile CompileFunc) []*errors.KBIError {
	var warnings []*errors.KBIError
	keep := func(e *Entry) bool {
		if len(e.Children) > 0 {
			return true
		}
		terms := SplitTerms(e.Label)
		if len(terms) == 0 {
			warnings = append(warnings, errors.New(errors.ErrCodeKeywordValidation,
				fmt.Sprintf("leaf %q has no search terms", e.Label), nil).At(t.File, e.Line))
			return false
		}
		for _, term := range terms {
			if err := compile(term); err != nil {
				warnings = append(warnings, errors.PatternCompile(t.File, e.Line, term, err))
				return false
			}
		}
		e.Pattern = &Pattern{
			Terms: terms,
			Name:  e.Label,
			File:  t.File,
			Line:  e.Line,
			Order: e.Order,
		}
		return true
	}

	t.Entries = filterEntries(t.Entries, keep)
	t.Walk(func(e *Entry) bool {
		e.Children = filterEntries(e.Children, keep)
		return true
	})
	return warnings
}

func filterEntries(entries []*Entry, keep func(*Entry) bool) []*Entry {
	out := entries[:0]
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// SplitTerms splits a leaf line on ':' and drops empty terms.
func SplitTerms(s string) []string {
	parts := strings.Split(s, ":")
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			terms = append(terms, p)
		}
	}
	return terms
}
