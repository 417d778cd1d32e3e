package gitignore

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"
	"sync"
)

// Matcher holds compiled patterns. It is safe for concurrent use.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

type rule struct {
	source  string
	re      *regexp.Regexp
	negate  bool
	dirOnly bool
	base    string
}

// New creates an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// Len returns the number of active patterns.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// AddPatterns adds root-level patterns.
func (m *Matcher) AddPatterns(patterns []string) {
	for _, p := range patterns {
		m.Add(p, "")
	}
}

// Add adds one pattern that applies below base ("" for the root). Blank
// lines and comments are ignored.
func (m *Matcher) Add(pattern, base string) {
	r, ok := compile(pattern)
	if !ok {
		return
	}
	r.base = strings.Trim(path.Clean("/"+strings.ReplaceAll(base, "\\", "/")), "/")

	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

// AddFromFile adds every pattern of a .gitignore file located in base.
func (m *Matcher) AddFromFile(file, base string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open gitignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m.Add(sc.Text(), base)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read gitignore file: %w", err)
	}
	return nil
}

// Match reports whether p is ignored. A path is ignored when it, or any of
// its parent directories, is matched by a pattern that is not overridden by
// a later negation.
func (m *Matcher) Match(p string, isDir bool) bool {
	p = strings.Trim(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if p == "" {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	parts := strings.Split(p, "/")
	for i := range parts {
		dir := i < len(parts)-1 || isDir
		if m.ignored(strings.Join(parts[:i+1], "/"), dir) {
			return true
		}
	}
	return false
}

func (m *Matcher) ignored(p string, isDir bool) bool {
	ignored := false
	for i := range m.rules {
		r := &m.rules[i]
		if r.matches(p, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

func (r *rule) matches(p string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	if r.base != "" {
		if !strings.HasPrefix(p, r.base+"/") {
			return false
		}
		p = p[len(r.base)+1:]
	}
	if r.re.MatchString(p) {
		return true
	}
	// "dir/**" ignores everything inside dir; treat dir itself the same so
	// the scanner can prune it.
	return isDir && r.re.MatchString(p+"/")
}

// compile translates one pattern line.
func compile(line string) (rule, bool) {
	trailingSpace := strings.HasSuffix(line, `\ `)
	p := strings.TrimSpace(line)
	if trailingSpace {
		p = strings.TrimSuffix(p, `\`) + " "
	}
	if p == "" || strings.HasPrefix(p, "#") {
		return rule{}, false
	}

	r := rule{source: p}
	switch {
	case strings.HasPrefix(p, "!"):
		r.negate = true
		p = p[1:]
	case strings.HasPrefix(p, `\!`), strings.HasPrefix(p, `\#`):
		p = p[1:]
	}
	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return rule{}, false
	}

	// A slash anywhere but the end anchors the pattern to its base;
	// otherwise it matches at any depth.
	anchored := strings.Contains(p, "/")
	p = strings.TrimPrefix(p, "/")

	var sb strings.Builder
	sb.WriteString("^")
	if !anchored {
		sb.WriteString("(?:.*/)?")
	}
	sb.WriteString(translate(p))
	sb.WriteString("$")
	r.re = regexp.MustCompile(sb.String())
	return r, true
}

// translate converts glob syntax to a regular expression body.
func translate(p string) string {
	var sb strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch c {
		case '*':
			if i+1 < len(p) && p[i+1] == '*' {
				switch {
				case i+2 < len(p) && p[i+2] == '/':
					sb.WriteString("(?:.*/)?")
					i += 2
				default:
					sb.WriteString(".*")
					i++
				}
				continue
			}
			sb.WriteString("[^/]*")
		case '?':
			sb.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(p[i+1:], ']')
			if end < 0 {
				sb.WriteString(`\[`)
				continue
			}
			class := p[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			sb.WriteString("[" + class + "]")
			i += end + 1
		case '\\':
			if i+1 < len(p) {
				i++
				sb.WriteString(regexp.QuoteMeta(string(p[i])))
			} else {
				sb.WriteString(`\\`)
			}
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return sb.String()
}

// Patterns returns the source text of the active patterns in order.
func (m *Matcher) Patterns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.rules))
	for i, r := range m.rules {
		out[i] = r.source
	}
	return out
}
