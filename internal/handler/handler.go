// Package handler defines the contract between file-format parsers and the
// indexing pipeline, and a registry that selects a parser by extension.
package handler

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Aman-CERP/kbi/internal/doctree"
	"github.com/Aman-CERP/kbi/internal/errors"
	"github.com/Aman-CERP/kbi/internal/handler/freeplane"
	"github.com/Aman-CERP/kbi/internal/handler/markdown"
)

// Handler parses one file format into a document tree.
//
// Parse must create exactly one root in b. It may return a partial tree
// together with an error; the pipeline discards the tree in that case.
type Handler interface {
	Name() string
	Parse(ctx context.Context, r io.Reader, b *doctree.Builder) error
}

// Registry maps lowercase extensions (with the leading dot) to handlers.
type Registry struct {
	byExt map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Handler)}
}

// Register binds h to the given extensions, replacing earlier bindings.
func (r *Registry) Register(h Handler, exts ...string) {
	for _, ext := range exts {
		r.byExt[normalizeExt(ext)] = h
	}
}

// For returns the handler for path's extension.
func (r *Registry) For(path string) (Handler, bool) {
	h, ok := r.byExt[normalizeExt(filepath.Ext(path))]
	return h, ok
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// FileType binds a handler name to extensions, as in the file_types config
// section.
type FileType struct {
	Extensions []string
	Handler    string
}

// New returns the built-in handler with the given name. Both the short
// names ("markdown") and the class-style names ("MarkdownHandler") are
// accepted.
func New(name string) (Handler, error) {
	switch strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "Handler")) {
	case "markdown", "md":
		return markdown.New(), nil
	case "freeplane", "mm", "mindmap":
		return freeplane.New(), nil
	default:
		return nil, fmt.Errorf("unknown handler %q", name)
	}
}

// FromFileTypes builds a registry from configured file types. Types are
// applied in name order so that overlapping extensions resolve the same
// way on every run.
func FromFileTypes(types map[string]FileType) (*Registry, error) {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	r := NewRegistry()
	for _, name := range names {
		ft := types[name]
		handlerName := ft.Handler
		if handlerName == "" {
			handlerName = name
		}
		h, err := New(handlerName)
		if err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("file_types.%s: %v", name, err), err)
		}
		r.Register(h, ft.Extensions...)
	}
	return r, nil
}

// Default returns a registry with the built-in handlers.
func Default() *Registry {
	r := NewRegistry()
	r.Register(markdown.New(), ".md", ".markdown")
	r.Register(freeplane.New(), ".mm")
	return r
}

// ParseFile parses the file at absPath with the handler registered for its
// extension. displayPath becomes the Path of every node. Failures are
// returned as UnsupportedFileType or HandlerParse errors.
func (r *Registry) ParseFile(ctx context.Context, absPath, displayPath string) (*doctree.Tree, error) {
	h, ok := r.For(absPath)
	if !ok {
		return nil, errors.UnsupportedFileType(displayPath, strings.ToLower(filepath.Ext(absPath)))
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, errors.HandlerParse(displayPath, h.Name(), err)
	}
	defer f.Close()

	b := doctree.NewBuilder(displayPath)
	if err := h.Parse(ctx, f, b); err != nil {
		return nil, errors.HandlerParse(displayPath, h.Name(), err)
	}
	tree, err := b.Build()
	if err != nil {
		return nil, errors.HandlerParse(displayPath, h.Name(), err)
	}
	return tree, nil
}
