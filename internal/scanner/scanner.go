package scanner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/kbi/internal/errors"
	"github.com/Aman-CERP/kbi/internal/gitignore"
)

// gitignoreCacheSize bounds the number of parsed .gitignore files kept.
const gitignoreCacheSize = 1000

// alwaysExcluded directories are never scanned.
var alwaysExcluded = []string{".git", ".hg", ".svn"}

// Scanner discovers documents. A Scanner may be reused across scans; parsed
// .gitignore files are cached by directory.
type Scanner struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
}

// New creates a Scanner.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitignore cache: %w", err)
	}
	return &Scanner{gitignoreCache: cache}, nil
}

type scanRoot struct {
	arg    string
	abs    string
	isFile bool
}

type walkState struct {
	opts    Options
	result  *Result
	exclude *gitignore.Matcher
	exts    map[string]bool
	skip    map[string]bool
	seen    map[string]bool
	visited map[string]bool // real paths of followed directories
	maxSize int64
}

// Scan walks every root in order. Files come out in lexical depth-first
// order per root, so identical trees always yield identical results.
//
// A root that does not exist is a warning. A root that exists but cannot
// be read, or having no readable root at all, is fatal.
func (s *Scanner) Scan(ctx context.Context, opts Options) (*Result, error) {
	st := &walkState{
		opts:    opts,
		result:  &Result{},
		exclude: gitignore.New(),
		exts:    make(map[string]bool, len(opts.Extensions)),
		skip:    make(map[string]bool, len(opts.Skip)),
		seen:    make(map[string]bool),
		visited: make(map[string]bool),
		maxSize: opts.MaxFileSize,
	}
	if st.maxSize <= 0 {
		st.maxSize = DefaultMaxFileSize
	}
	st.exclude.AddPatterns(alwaysExcluded)
	st.exclude.AddPatterns(opts.Exclude)
	for _, ext := range opts.Extensions {
		st.exts[strings.ToLower(ext)] = true
	}
	for _, p := range opts.Skip {
		if abs, err := filepath.Abs(p); err == nil {
			st.skip[abs] = true
		}
	}

	var roots []scanRoot
	for _, r := range opts.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, errors.New(errors.ErrCodeRootUnreadable, "invalid include path", err).At(r, 0)
		}
		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				st.warn(errors.New(errors.ErrCodeFileNotFound, "include path does not exist, skipped", nil).At(r, 0))
				continue
			}
			return nil, errors.New(errors.ErrCodeRootUnreadable, "cannot read include path", err).At(r, 0)
		}
		roots = append(roots, scanRoot{arg: r, abs: abs, isFile: !info.IsDir()})
	}
	if len(roots) == 0 {
		return nil, errors.New(errors.ErrCodeRootUnreadable, "no readable include path", nil).
			WithDetail("include", strings.Join(opts.Roots, ", ")).
			WithSuggestion("Check paths.include in the config or pass --root")
	}
	st.result.Base = commonBase(roots)

	for _, r := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.isFile {
			info, err := os.Stat(r.abs)
			if err != nil {
				return nil, errors.New(errors.ErrCodeRootUnreadable, "cannot read include path", err).At(r.arg, 0)
			}
			st.add(r.abs, r.abs, info)
			continue
		}
		if err := s.walk(ctx, st, r); err != nil {
			return nil, err
		}
	}

	slog.Debug("scan_complete",
		slog.String("base", st.result.Base),
		slog.Int("files", len(st.result.Files)),
		slog.Int("warnings", len(st.result.Warnings)))
	return st.result, nil
}

type entry struct {
	abs   string
	rel   string // slash path relative to the walk root
	isDir bool
}

// walk visits root in lexical preorder with an explicit stack.
func (s *Scanner) walk(ctx context.Context, st *walkState, root scanRoot) error {
	children, err := os.ReadDir(root.abs)
	if err != nil {
		return errors.New(errors.ErrCodeRootUnreadable, "cannot read include path", err).At(root.arg, 0)
	}
	if real, err := filepath.EvalSymlinks(root.abs); err == nil {
		st.visited[real] = true
	}

	var stack []entry
	push := func(dirAbs, dirRel string, list []os.DirEntry) {
		for i := len(list) - 1; i >= 0; i-- {
			e, ok := s.resolve(st, dirAbs, dirRel, list[i])
			if ok {
				stack = append(stack, e)
			}
		}
	}
	push(root.abs, "", children)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if st.exclude.Match(e.rel, e.isDir) || (st.opts.RespectGitignore && s.isGitignored(root.abs, e.rel, e.isDir)) {
			continue
		}

		if e.isDir {
			if real, err := filepath.EvalSymlinks(e.abs); err == nil {
				if st.visited[real] {
					continue
				}
				st.visited[real] = true
			}
			list, err := os.ReadDir(e.abs)
			if err != nil {
				st.warn(errors.New(errors.ErrCodeFilePermission, "cannot read directory, skipped", err).At(e.abs, 0))
				continue
			}
			push(e.abs, e.rel, list)
			continue
		}

		if len(st.exts) > 0 && !st.exts[strings.ToLower(filepath.Ext(e.abs))] {
			continue
		}
		info, err := os.Stat(e.abs)
		if err != nil {
			st.warn(errors.New(errors.ErrCodeFilePermission, "cannot stat file, skipped", err).At(e.abs, 0))
			continue
		}
		st.add(e.abs, root.abs, info)
	}
	return nil
}

// resolve turns a directory entry into a stack entry, following symlinks
// when enabled.
func (s *Scanner) resolve(st *walkState, dirAbs, dirRel string, d os.DirEntry) (entry, bool) {
	e := entry{abs: filepath.Join(dirAbs, d.Name())}
	if dirRel == "" {
		e.rel = d.Name()
	} else {
		e.rel = dirRel + "/" + d.Name()
	}

	if d.Type()&os.ModeSymlink != 0 {
		if !st.opts.FollowSymlinks {
			return entry{}, false
		}
		info, err := os.Stat(e.abs)
		if err != nil {
			// Dangling link.
			return entry{}, false
		}
		e.isDir = info.IsDir()
		return e, true
	}
	if !d.IsDir() && !d.Type().IsRegular() {
		return entry{}, false
	}
	e.isDir = d.IsDir()
	return e, true
}

func (st *walkState) add(abs, root string, info os.FileInfo) {
	if st.seen[abs] || st.skip[abs] {
		return
	}
	st.seen[abs] = true

	if info.Size() > st.maxSize {
		st.warn(errors.New(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("file larger than %d bytes, skipped", st.maxSize), nil).At(abs, 0))
		return
	}
	if isBinaryFile(abs) {
		slog.Debug("skipping binary file", slog.String("path", abs))
		return
	}

	rel, err := filepath.Rel(st.result.Base, abs)
	if err != nil {
		rel = abs
	}
	st.result.Files = append(st.result.Files, File{
		Path:    filepath.ToSlash(rel),
		AbsPath: abs,
		Root:    root,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	})
}

func (st *walkState) warn(err *errors.KBIError) {
	err.Severity = errors.SeverityWarning
	st.result.Warnings = append(st.result.Warnings, err)
}

// isBinaryFile checks the first 512 bytes for NUL.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	return bytes.IndexByte(buf[:n], 0) >= 0
}

// isGitignored applies the .gitignore of rootAbs and of every directory
// between it and rel.
func (s *Scanner) isGitignored(rootAbs, rel string, isDir bool) bool {
	dirRel := ""
	rest := rel
	for {
		if m := s.gitignoreMatcher(filepath.Join(rootAbs, filepath.FromSlash(dirRel))); m != nil {
			if m.Match(rest, isDir) {
				return true
			}
		}
		i := strings.IndexByte(rest, '/')
		if i < 0 {
			return false
		}
		if dirRel == "" {
			dirRel = rest[:i]
		} else {
			dirRel += "/" + rest[:i]
		}
		rest = rest[i+1:]
	}
}

// gitignoreMatcher returns the parsed .gitignore of dir, or nil.
func (s *Scanner) gitignoreMatcher(dir string) *gitignore.Matcher {
	if m, ok := s.gitignoreCache.Get(dir); ok {
		return m
	}
	var m *gitignore.Matcher
	p := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(p); err == nil {
		m = gitignore.New()
		if err := m.AddFromFile(p, ""); err != nil {
			slog.Warn("failed to read .gitignore", slog.String("path", p), slog.String("error", err.Error()))
			m = nil
		}
	}
	// Directories without a .gitignore are cached as nil too.
	s.gitignoreCache.Add(dir, m)
	return m
}

// InvalidateGitignoreCache drops all parsed .gitignore files.
func (s *Scanner) InvalidateGitignoreCache() {
	s.gitignoreCache.Purge()
}

// commonBase returns the deepest directory containing every root.
func commonBase(roots []scanRoot) string {
	dirs := make([]string, len(roots))
	for i, r := range roots {
		if r.isFile {
			dirs[i] = filepath.Dir(r.abs)
		} else {
			dirs[i] = r.abs
		}
	}
	sort.Strings(dirs)
	base := dirs[0]
	for _, d := range dirs[1:] {
		for !within(base, d) {
			parent := filepath.Dir(base)
			if parent == base {
				break
			}
			base = parent
		}
	}
	return base
}

// within reports whether p is dir or below it.
func within(dir, p string) bool {
	if dir == p {
		return true
	}
	rel, err := filepath.Rel(dir, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
