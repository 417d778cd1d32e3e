// Package markdown parses Markdown documents into document trees.
//
// Headings nest by level and list items nest by indentation below the
// nearest heading. Paragraph text is attached to the enclosing heading as
// rich content so that hashtags in prose are visible to tag extraction.
package markdown

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/kbi/internal/doctree"
)

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	listRe    = regexp.MustCompile(`^(\s*)([-*+]|\d+\.)\s+(.+)$`)
	closingRe = regexp.MustCompile(`\s+#+$`)
)

const maxLineSize = 4 * 1024 * 1024

// Handler parses .md files.
type Handler struct{}

// New creates a Markdown handler.
func New() *Handler { return &Handler{} }

// Name implements handler.Handler.
func (h *Handler) Name() string { return "markdown" }

type frontmatter struct {
	Title string `yaml:"title"`
	Tags  any    `yaml:"tags"`
	Tag   any    `yaml:"tag"`
}

type listFrame struct {
	level int
	id    doctree.NodeID
}

type headingFrame struct {
	level int
	id    doctree.NodeID
}

// Parse implements handler.Handler.
func (h *Handler) Parse(ctx context.Context, r io.Reader, b *doctree.Builder) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	root := b.SetRoot(filepath.Base(b.Path()))
	b.SetRole(root, doctree.RoleInterior)

	body, fm, fmLines, err := splitFrontmatter(data)
	if err != nil {
		return err
	}
	if fm != nil {
		if fm.Title != "" {
			b.SetRichContent(root, fm.Title)
		}
		b.AddTags(root, tagList(fm.Tags)...)
		b.AddTags(root, tagList(fm.Tag)...)
	}

	var (
		headings []headingFrame
		lists    []listFrame
		anchors  = make(map[string]int)
		inFence  bool
		fence    string
		lineNo   = fmLines
	)

	current := func() doctree.NodeID {
		if len(headings) == 0 {
			return root
		}
		return headings[len(headings)-1].id
	}

	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		lineNo++
		if lineNo%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		raw := strings.TrimRight(sc.Text(), " \t\r")
		trimmed := strings.TrimSpace(raw)

		if inFence {
			if strings.HasPrefix(trimmed, fence) {
				inFence = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = true
			fence = trimmed[:3]
			continue
		}
		if trimmed == "" {
			continue
		}

		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			level := len(m[1])
			text := strings.TrimSpace(closingRe.ReplaceAllString(m[2], ""))
			for len(headings) > 0 && headings[len(headings)-1].level >= level {
				headings = headings[:len(headings)-1]
			}
			id := b.AddChild(current(), text)
			b.SetKey(id, uniqueAnchor(anchors, text))
			b.SetLine(id, lineNo)
			headings = append(headings, headingFrame{level: level, id: id})
			lists = lists[:0]
			continue
		}

		if m := listRe.FindStringSubmatch(raw); m != nil {
			level := indentWidth(m[1]) / 2
			for len(lists) > 0 && lists[len(lists)-1].level >= level {
				lists = lists[:len(lists)-1]
			}
			parent := current()
			if len(lists) > 0 {
				parent = lists[len(lists)-1].id
			}
			id := b.AddChild(parent, strings.TrimSpace(m[3]))
			b.SetKey(id, "L"+strconv.Itoa(lineNo))
			b.SetLine(id, lineNo)
			lists = append(lists, listFrame{level: level, id: id})
			continue
		}

		lists = lists[:0]
		b.AppendRichContent(current(), trimmed)
	}
	return sc.Err()
}

// splitFrontmatter separates a leading YAML block fenced by "---" lines.
// It returns the remaining body and the number of lines consumed.
func splitFrontmatter(data []byte) ([]byte, *frontmatter, int, error) {
	if !bytes.HasPrefix(data, []byte("---\n")) && !bytes.HasPrefix(data, []byte("---\r\n")) {
		return data, nil, 0, nil
	}
	lines := bytes.SplitAfter(data, []byte("\n"))
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(string(lines[i]), " \t\r\n") != "---" {
			continue
		}
		block := bytes.Join(lines[1:i], nil)
		var fm frontmatter
		if err := yaml.Unmarshal(block, &fm); err != nil {
			return nil, nil, 0, fmt.Errorf("frontmatter: %w", err)
		}
		return bytes.Join(lines[i+1:], nil), &fm, i + 1, nil
	}
	// No closing fence: treat the whole file as body.
	return data, nil, 0, nil
}

func tagList(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(t, ",")
	case []any:
		for _, item := range t {
			raw = append(raw, fmt.Sprint(item))
		}
	default:
		raw = []string{fmt.Sprint(t)}
	}
	out := raw[:0]
	for _, s := range raw {
		s = strings.TrimPrefix(strings.TrimSpace(s), "#")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func indentWidth(s string) int {
	n := 0
	for _, r := range s {
		if r == '\t' {
			n += 4
		} else {
			n++
		}
	}
	return n
}

// Anchor returns the GitHub-style anchor for a heading.
func Anchor(text string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
			sb.WriteRune(r)
		case r == ' ':
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

func uniqueAnchor(seen map[string]int, text string) string {
	base := Anchor(text)
	n, ok := seen[base]
	seen[base] = n + 1
	if !ok {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}
