package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per event, for CI and pipes.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	stage  Stage
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer. Lines look like
// "[PARSE] 3/10 - docs/guide.md".
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = event.Stage

	msg := event.Message
	if msg == "" {
		msg = event.CurrentFile
	}

	switch {
	case event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	case msg != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.File != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.File, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	round := func(d time.Duration) time.Duration { return d.Round(time.Millisecond) }

	_, _ = fmt.Fprintf(r.out, "Wrote %s: %d files, %d nodes, %d keywords (%d matches), %d tags in %s",
		stats.Output, stats.Files, stats.Nodes, stats.Keywords, stats.Matches, stats.Tags, round(stats.Duration))
	if stats.Errors > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}
	_, _ = fmt.Fprintln(r.out)

	if stats.KeywordsAborted {
		_, _ = fmt.Fprintln(r.out, "Keyword branch skipped: the keyword file has structural errors")
	}

	if stats.Stages == (StageTimings{}) {
		return
	}
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintln(r.out, "Stage Breakdown:")
	_, _ = fmt.Fprintf(r.out, "  Scan:     %s\n", round(stats.Stages.Scan))
	_, _ = fmt.Fprintf(r.out, "  Parse:    %s\n", round(stats.Stages.Parse))
	_, _ = fmt.Fprintf(r.out, "  Search:   %s\n", round(stats.Stages.Search))
	_, _ = fmt.Fprintf(r.out, "  Tags:     %s\n", round(stats.Stages.Tags))
	_, _ = fmt.Fprintf(r.out, "  Assemble: %s\n", round(stats.Stages.Assemble))
	_, _ = fmt.Fprintf(r.out, "  Write:    %s\n", round(stats.Stages.Write))
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
