// Package ui renders run progress for the kbi CLI: a bubbletea panel on
// interactive terminals and one line per event everywhere else.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is one step of an index run, in execution order.
type Stage int

const (
	StageScanning Stage = iota
	StageParsing
	StageTagging
	StageSearching
	StageAssembling
	StageWriting
	StageComplete
)

// pipeline lists the stages shown in the stage bar.
var pipeline = []Stage{StageScanning, StageParsing, StageTagging, StageSearching, StageAssembling, StageWriting}

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "Scan"
	case StageParsing:
		return "Parse"
	case StageSearching:
		return "Search"
	case StageTagging:
		return "Tags"
	case StageAssembling:
		return "Assemble"
	case StageWriting:
		return "Write"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the stage tag used in plain output.
func (s Stage) Icon() string {
	switch s {
	case StageScanning:
		return "SCAN"
	case StageParsing:
		return "PARSE"
	case StageSearching:
		return "SEARCH"
	case StageTagging:
		return "TAGS"
	case StageAssembling:
		return "BUILD"
	case StageWriting:
		return "WRITE"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// Unit names what Current and Total count during the stage.
func (s Stage) Unit() string {
	switch s {
	case StageScanning, StageParsing, StageTagging:
		return "files"
	case StageSearching:
		return "keywords"
	default:
		return "nodes"
	}
}

// ProgressEvent is a progress update.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// ErrorEvent is a problem reported during the run.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// StageTimings holds the wall time of each stage.
type StageTimings struct {
	Scan     time.Duration
	Parse    time.Duration
	Search   time.Duration
	Tags     time.Duration
	Assemble time.Duration
	Write    time.Duration
}

// CompletionStats summarizes a finished run.
type CompletionStats struct {
	Output   string
	Files    int
	Nodes    int
	Keywords int
	Matches  int
	Tags     int
	Duration time.Duration
	Errors   int
	Warnings int
	Stages   StageTimings

	// KeywordsAborted is set when a structural error dropped the keyword
	// branch.
	KeywordsAborted bool
}

// Renderer displays progress.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures the renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Title      string // shown in the panel header
}

// ConfigOption modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithTitle sets the panel header text.
func WithTitle(title string) ConfigOption {
	return func(c *Config) {
		c.Title = title
	}
}

// NewConfig creates a Config for output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks the TUI for interactive terminals and the plain
// renderer for pipes, CI, and --no-tui.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor checks if NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
