package search

import (
	"fmt"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/kbi/internal/keywords"
)

// DefaultRegexCacheSize bounds the number of compiled terms kept in memory.
const DefaultRegexCacheSize = 256

// Matcher tests node text against one compiled term.
type Matcher interface {
	Match(text string) bool
}

// Compiler turns a keyword term into a Matcher.
type Compiler interface {
	Compile(term string) (Matcher, error)
}

// regexMatcher adapts *regexp.Regexp to Matcher.
type regexMatcher struct {
	re *regexp.Regexp
}

func (m regexMatcher) Match(text string) bool {
	return m.re.MatchString(text)
}

// RegexCompiler compiles terms as Go regular expressions.
//
// Every term is matched case-insensitively; a term may override this with
// its own flags, e.g. "(?-i)API". With whole-word matching the term must be
// bounded by \b on both sides. Compiled expressions are cached and shared
// across goroutines.
type RegexCompiler struct {
	wholeWord bool
	cache     *lru.Cache[string, *regexp.Regexp]
}

// RegexOption configures a RegexCompiler.
type RegexOption func(*regexConfig)

type regexConfig struct {
	wholeWord bool
	cacheSize int
}

// WithWholeWord anchors each term at word boundaries.
func WithWholeWord(enabled bool) RegexOption {
	return func(c *regexConfig) {
		c.wholeWord = enabled
	}
}

// WithCacheSize sets the compiled-term cache size.
func WithCacheSize(size int) RegexOption {
	return func(c *regexConfig) {
		c.cacheSize = size
	}
}

// NewRegexCompiler creates a RegexCompiler.
func NewRegexCompiler(opts ...RegexOption) (*RegexCompiler, error) {
	cfg := regexConfig{cacheSize: DefaultRegexCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.cacheSize <= 0 {
		cfg.cacheSize = DefaultRegexCacheSize
	}

	cache, err := lru.New[string, *regexp.Regexp](cfg.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create regex cache: %w", err)
	}
	return &RegexCompiler{wholeWord: cfg.wholeWord, cache: cache}, nil
}

// Expression returns the full regular expression used for term. It does not
// validate term; Compile does.
func (c *RegexCompiler) Expression(term string) string {
	if c.wholeWord {
		return `(?i)\b(?:` + term + `)\b`
	}
	return `(?i)(?:` + term + `)`
}

// Compile implements Compiler.
func (c *RegexCompiler) Compile(term string) (Matcher, error) {
	if re, ok := c.cache.Get(term); ok {
		return regexMatcher{re: re}, nil
	}
	if err := keywords.CheckTerm(term); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(c.Expression(term))
	if err != nil {
		return nil, err
	}
	c.cache.Add(term, re)
	return regexMatcher{re: re}, nil
}

// Check validates term without returning a matcher. It has the shape of a
// keyword parser compile hook.
func (c *RegexCompiler) Check(term string) error {
	_, err := c.Compile(term)
	return err
}
