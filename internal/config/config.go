// Package config loads kbi configuration from YAML files and the
// environment.
package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/kbi/internal/errors"
)

// Config represents the complete kbi configuration.
type Config struct {
	Version     int                       `yaml:"version" json:"version"`
	Paths       PathsConfig               `yaml:"paths" json:"paths"`
	Keywords    KeywordsConfig            `yaml:"keywords" json:"keywords"`
	Search      SearchConfig              `yaml:"search" json:"search"`
	Tags        TagsConfig                `yaml:"tags" json:"tags"`
	Output      OutputConfig              `yaml:"output" json:"output"`
	FileTypes   map[string]FileTypeConfig `yaml:"file_types" json:"file_types"`
	Performance PerformanceConfig         `yaml:"performance" json:"performance"`
	Logging     LoggingConfig             `yaml:"logging" json:"logging"`
	Telemetry   TelemetryConfig           `yaml:"telemetry" json:"telemetry"`

	// Source is the project config file that was loaded, if any.
	Source string `yaml:"-" json:"-"`
}

// PathsConfig configures which directories are indexed.
type PathsConfig struct {
	// Include lists the roots to scan. Roots that do not exist are skipped
	// with a warning, but at least one must be readable.
	Include          []string `yaml:"include" json:"include"`
	Exclude          []string `yaml:"exclude" json:"exclude"`
	RespectGitignore bool     `yaml:"respect_gitignore" json:"respect_gitignore"`
	FollowSymlinks   bool     `yaml:"follow_symlinks" json:"follow_symlinks"`
	MaxFileSize      int64    `yaml:"max_file_size" json:"max_file_size"`
}

// KeywordsConfig lists keyword pattern files, merged in order.
type KeywordsConfig struct {
	Files       []string `yaml:"files" json:"files"`
	IndentWidth int      `yaml:"indent_width" json:"indent_width"`
}

// SearchConfig configures term matching.
type SearchConfig struct {
	// WholeWord anchors terms at word boundaries. Off by default, so a term
	// matches anywhere in a node's text.
	WholeWord bool `yaml:"whole_word" json:"whole_word"`

	// RichContent also matches paragraph and note text stored with a node.
	RichContent    bool `yaml:"rich_content" json:"rich_content"`
	RegexCacheSize int  `yaml:"regex_cache_size" json:"regex_cache_size"`
}

// TagsConfig configures the tag branch.
type TagsConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled"`
	Excluded []string `yaml:"excluded" json:"excluded"`
}

// OutputConfig configures the generated mind map.
type OutputConfig struct {
	File            string `yaml:"file" json:"file"`
	Format          string `yaml:"format" json:"format"`
	Title           string `yaml:"title" json:"title"`
	ExpandDocuments bool   `yaml:"expand_documents" json:"expand_documents"`
	MaxTextLength   int    `yaml:"max_text_length" json:"max_text_length"`
}

// FileTypeConfig binds a handler to file extensions.
type FileTypeConfig struct {
	Extensions []string `yaml:"extensions" json:"extensions"`
	Handler    string   `yaml:"handler" json:"handler"`
}

// PerformanceConfig configures parallelism.
type PerformanceConfig struct {
	// Workers bounds every worker pool. 0 means runtime.NumCPU().
	Workers int `yaml:"workers" json:"workers"`
}

// LoggingConfig configures the file logger.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// TelemetryConfig configures run metrics and history.
type TelemetryConfig struct {
	MetricsFile string `yaml:"metrics_file" json:"metrics_file"`
	History     bool   `yaml:"history" json:"history"`
	HistoryPath string `yaml:"history_path" json:"history_path"`
}

// defaultExcludePatterns are excluded unless the config replaces them.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/build/**",
	"**/__pycache__/**",
	"**/.venv/**",
}

// DefaultExcludedTags are preprocessor-like words never treated as tags.
var DefaultExcludedTags = []string{
	"define", "include", "ifndef", "endif", "pragma", "undef",
	"if", "else", "error", "warning", "line",
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include:          []string{"src/", "docs/", "."},
			Exclude:          append([]string(nil), defaultExcludePatterns...),
			RespectGitignore: true,
			MaxFileSize:      10 * 1024 * 1024,
		},
		Keywords: KeywordsConfig{
			Files:       []string{},
			IndentWidth: 4,
		},
		Search: SearchConfig{
			RichContent:    true,
			RegexCacheSize: 256,
		},
		Tags: TagsConfig{
			Enabled:  true,
			Excluded: append([]string(nil), DefaultExcludedTags...),
		},
		Output: OutputConfig{
			File:            "index.mm",
			Format:          "freeplane",
			Title:           "Navigation Index",
			ExpandDocuments: true,
			MaxTextLength:   100,
		},
		FileTypes: map[string]FileTypeConfig{
			"freeplane": {Extensions: []string{".mm"}, Handler: "freeplane"},
			"markdown":  {Extensions: []string{".md", ".markdown"}, Handler: "markdown"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/kbi/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/kbi/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "kbi", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "kbi", "config.yaml")
	}
	return filepath.Join(home, ".config", "kbi", "config.yaml")
}

// userConfigCandidates returns the user config paths in priority order.
func userConfigCandidates() []string {
	p := GetUserConfigPath()
	return []string{strings.TrimSuffix(p, ".yaml") + ".yml", p}
}

// ProjectConfigCandidates returns the project config paths searched in dir,
// in priority order.
func ProjectConfigCandidates(dir string) []string {
	return []string{
		filepath.Join(dir, "config", "kbi.yml"),
		filepath.Join(dir, "config", "kbi.yaml"),
		filepath.Join(dir, "kbi.yml"),
		filepath.Join(dir, "kbi.yaml"),
	}
}

// Load loads configuration for a run started in dir. It applies, in order
// of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/kbi/config.yaml)
//  3. Project config (explicitPath, else the first of ProjectConfigCandidates)
//  4. Environment variables (KBI_*)
//
// An explicitPath that does not exist is an error.
func Load(dir, explicitPath string) (*Config, error) {
	cfg := NewConfig()

	for _, p := range userConfigCandidates() {
		if fileExists(p) {
			if err := cfg.loadYAML(p); err != nil {
				return nil, err
			}
			break
		}
	}

	if explicitPath != "" {
		if !fileExists(explicitPath) {
			return nil, errors.New(errors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", explicitPath), nil).
				WithSuggestion("Run 'kbi sample-config' to create one")
		}
		if err := cfg.loadYAML(explicitPath); err != nil {
			return nil, err
		}
		cfg.Source = explicitPath
	} else {
		for _, p := range ProjectConfigCandidates(dir) {
			if fileExists(p) {
				if err := cfg.loadYAML(p); err != nil {
					return nil, err
				}
				cfg.Source = p
				break
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML overlays the values present in a YAML file onto c. Keys that
// are absent keep their current value; unknown keys are rejected.
func (c *Config) loadYAML(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return errors.New(errors.ErrCodeConfigPermission, "cannot read config file", err).At(path, 0)
		}
		return errors.ConfigError("cannot read config file", err).At(path, 0)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !stderrors.Is(err, io.EOF) {
		return errors.ConfigError(fmt.Sprintf("failed to parse config file: %v", err), err).At(path, 0)
	}
	return nil
}

// applyEnvOverrides applies KBI_* environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("KBI_OUTPUT"); v != "" {
		c.Output.File = v
	}
	if v := os.Getenv("KBI_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KBI_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("KBI_WORKERS must be an integer, got %q", v), err)
		}
		c.Performance.Workers = n
	}
	if v := os.Getenv("KBI_WHOLE_WORD"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("KBI_WHOLE_WORD must be a boolean, got %q", v), err)
		}
		c.Search.WholeWord = b
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		err := errors.ConfigError(fmt.Sprintf(format, args...), nil)
		if c.Source != "" {
			err = err.At(c.Source, 0)
		}
		return err
	}

	if c.Version != 1 {
		return invalid("unsupported config version %d", c.Version)
	}
	if len(c.Paths.Include) == 0 {
		return invalid("paths.include must list at least one directory")
	}
	if c.Paths.MaxFileSize < 0 {
		return invalid("paths.max_file_size must be non-negative, got %d", c.Paths.MaxFileSize)
	}
	if c.Keywords.IndentWidth < 1 || c.Keywords.IndentWidth > 16 {
		return invalid("keywords.indent_width must be between 1 and 16, got %d", c.Keywords.IndentWidth)
	}
	if c.Search.RegexCacheSize < 0 {
		return invalid("search.regex_cache_size must be non-negative, got %d", c.Search.RegexCacheSize)
	}
	if strings.TrimSpace(c.Output.File) == "" {
		return invalid("output.file must not be empty")
	}
	if !strings.EqualFold(c.Output.Format, "freeplane") {
		return invalid("output.format must be 'freeplane', got %s", c.Output.Format)
	}
	if c.Output.MaxTextLength < 0 {
		return invalid("output.max_text_length must be non-negative, got %d", c.Output.MaxTextLength)
	}
	if len(c.FileTypes) == 0 {
		return invalid("file_types must define at least one file type")
	}
	for name, ft := range c.FileTypes {
		if len(ft.Extensions) == 0 {
			return invalid("file_types.%s.extensions must not be empty", name)
		}
	}
	if c.Performance.Workers < 0 {
		return invalid("performance.workers must be non-negative, got %d", c.Performance.Workers)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// Workers returns the effective worker count.
func (c *Config) Workers() int {
	if c.Performance.Workers > 0 {
		return c.Performance.Workers
	}
	return runtime.NumCPU()
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
