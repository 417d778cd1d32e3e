package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// RunInfo describes one past index run for `kbi history`.
type RunInfo struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	Output      string        `json:"output"`
	OutputBytes int64         `json:"output_bytes"`
	Files       int           `json:"files"`
	Nodes       int           `json:"nodes"`
	Keywords    int           `json:"keywords"`
	Matches     int           `json:"matches"`
	Tags        int           `json:"tags"`
	Warnings    int           `json:"warnings"`
	Errors      int           `json:"errors"`
	Status      string        `json:"status"` // "ok", "keywords_aborted", "failed"
}

// HistoryRenderer prints past runs.
type HistoryRenderer struct {
	out    io.Writer
	styles Styles
}

// NewHistoryRenderer creates a history renderer.
func NewHistoryRenderer(out io.Writer, noColor bool) *HistoryRenderer {
	return &HistoryRenderer{out: out, styles: GetStyles(noColor)}
}

// Render prints runs newest first, one block per run.
func (r *HistoryRenderer) Render(runs []RunInfo) error {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(r.out, "No runs recorded yet.")
		return nil
	}

	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render(fmt.Sprintf("Index History (%d runs)", len(runs))))
	for _, run := range runs {
		_, _ = fmt.Fprintf(r.out, "  %s  %s  %s\n",
			r.renderStatus(run.Status),
			formatTime(run.StartedAt),
			r.styles.Dim.Render(run.ID))
		_, _ = fmt.Fprintf(r.out, "    Output:   %s (%s)\n", run.Output, FormatBytes(run.OutputBytes))
		_, _ = fmt.Fprintf(r.out, "    Files:    %d  Nodes: %d  Tags: %d\n", run.Files, run.Nodes, run.Tags)
		_, _ = fmt.Fprintf(r.out, "    Keywords: %d (%d matches)\n", run.Keywords, run.Matches)
		_, _ = fmt.Fprintf(r.out, "    Took:     %s", formatDuration(run.Duration))
		if run.Errors > 0 || run.Warnings > 0 {
			_, _ = fmt.Fprintf(r.out, "  (%d errors, %d warnings)", run.Errors, run.Warnings)
		}
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out)
	}
	return nil
}

// RenderJSON writes runs as an indented JSON array.
func (r *HistoryRenderer) RenderJSON(runs []RunInfo) error {
	if runs == nil {
		runs = []RunInfo{}
	}
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(runs)
}

func (r *HistoryRenderer) renderStatus(status string) string {
	switch status {
	case "ok":
		return r.styles.Success.Render(status)
	case "keywords_aborted":
		return r.styles.Warning.Render(status)
	case "failed":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats t relative to now for recent times.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes for humans.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
