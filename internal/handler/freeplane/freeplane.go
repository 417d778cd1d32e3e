// Package freeplane parses Freeplane and FreeMind .mm mind maps into
// document trees.
package freeplane

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/kbi/internal/doctree"
)

// ErrNoRoot is returned for a map without a top-level node.
var ErrNoRoot = errors.New("map has no root node")

// Handler parses .mm files.
type Handler struct{}

// New creates a Freeplane handler.
func New() *Handler { return &Handler{} }

// Name implements handler.Handler.
func (h *Handler) Name() string { return "freeplane" }

type mapDoc struct {
	XMLName xml.Name  `xml:"map"`
	Nodes   []mapNode `xml:"node"`
}

type mapNode struct {
	ID         string         `xml:"ID,attr"`
	Text       string         `xml:"TEXT,attr"`
	Tags       string         `xml:"TAGS,attr"`
	Rich       []richContent  `xml:"richcontent"`
	Attributes []mapAttribute `xml:"attribute"`
	Nodes      []mapNode      `xml:"node"`
}

type richContent struct {
	Type  string `xml:"TYPE,attr"`
	Inner string `xml:",innerxml"`
}

type mapAttribute struct {
	Name  string `xml:"NAME,attr"`
	Value string `xml:"VALUE,attr"`
}

type pending struct {
	node   *mapNode
	parent doctree.NodeID
}

// Parse implements handler.Handler.
func (h *Handler) Parse(ctx context.Context, r io.Reader, b *doctree.Builder) error {
	var doc mapDoc
	dec := xml.NewDecoder(r)
	dec.Entity = xml.HTMLEntity
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode map: %w", err)
	}
	if len(doc.Nodes) == 0 {
		return ErrNoRoot
	}

	stack := []pending{{node: &doc.Nodes[0], parent: doctree.NoNode}}
	visited := 0
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		visited++
		if visited%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		id := h.addNode(b, top)
		// Push in reverse so children are added in document order.
		for i := len(top.node.Nodes) - 1; i >= 0; i-- {
			stack = append(stack, pending{node: &top.node.Nodes[i], parent: id})
		}
	}
	return nil
}

func (h *Handler) addNode(b *doctree.Builder, p pending) doctree.NodeID {
	n := p.node
	text := n.Text
	var rich []string
	for _, rc := range n.Rich {
		plain := HTMLText(rc.Inner)
		if plain == "" {
			continue
		}
		if strings.EqualFold(rc.Type, "NODE") && text == "" {
			text = plain
			continue
		}
		rich = append(rich, plain)
	}

	var id doctree.NodeID
	if p.parent == doctree.NoNode {
		id = b.SetRoot(text)
	} else {
		id = b.AddChild(p.parent, text)
	}
	b.SetKey(id, n.ID)
	if len(rich) > 0 {
		b.SetRichContent(id, strings.Join(rich, " "))
	}
	b.AddTags(id, strings.Fields(n.Tags)...)
	for _, a := range n.Attributes {
		if strings.EqualFold(a.Name, "tags") || strings.EqualFold(a.Name, "tag") {
			b.AddTags(id, splitTagValue(a.Value)...)
		}
	}
	return id
}

func splitTagValue(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
}

// HTMLText flattens an HTML fragment to its character data, joining text
// runs with single spaces. Malformed markup yields whatever text was read
// before the error.
func HTMLText(fragment string) string {
	dec := xml.NewDecoder(strings.NewReader(fragment))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	var parts []string
	skip := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "head" || t.Name.Local == "style" || t.Name.Local == "script" {
				skip++
			}
		case xml.EndElement:
			if (t.Name.Local == "head" || t.Name.Local == "style" || t.Name.Local == "script") && skip > 0 {
				skip--
			}
		case xml.CharData:
			if skip > 0 {
				continue
			}
			if s := strings.Join(strings.Fields(string(t)), " "); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, " ")
}
