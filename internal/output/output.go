// Package output formats the one-shot messages of kbi subcommands.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/kbi/internal/errors"
)

// Writer prints CLI status lines. Write errors are ignored; this is
// console output.
type Writer struct {
	out     io.Writer
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	dim     lipgloss.Style
}

// New creates a Writer without color.
func New(out io.Writer) *Writer {
	return NewWithColor(out, false)
}

// NewWithColor creates a Writer, styled when color is true.
func NewWithColor(out io.Writer, color bool) *Writer {
	w := &Writer{
		out:     out,
		success: lipgloss.NewStyle(),
		warning: lipgloss.NewStyle(),
		failure: lipgloss.NewStyle(),
		dim:     lipgloss.NewStyle(),
	}
	if color {
		w.success = w.success.Foreground(lipgloss.Color("37"))
		w.warning = w.warning.Foreground(lipgloss.Color("220"))
		w.failure = w.failure.Foreground(lipgloss.Color("196")).Bold(true)
		w.dim = w.dim.Foreground(lipgloss.Color("245"))
	}
	return w
}

// Status prints msg behind icon, or indented when icon is empty.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf is Status with formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a check mark line.
func (w *Writer) Success(msg string) {
	w.Status(w.success.Render("✓"), msg)
}

// Successf is Success with formatting.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func (w *Writer) Warning(msg string) {
	w.Status(w.warning.Render("⚠"), msg)
}

// Warningf is Warning with formatting.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (w *Writer) Error(msg string) {
	w.Status(w.failure.Render("✗"), msg)
}

// Errorf is Error with formatting.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Code prints content indented and surrounded by blank lines.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Diagnostics prints collected problems in order, one line each, followed
// by a count. It prints nothing for an empty list.
func (w *Writer) Diagnostics(items []*errors.KBIError) {
	if len(items) == 0 {
		return
	}

	var warnings, failures int
	for _, ke := range items {
		loc := ke.Location()
		if loc != "" {
			loc += ": "
		}
		line := fmt.Sprintf("%s%s %s", loc, ke.Message, w.dim.Render("("+ke.Code+")"))
		if ke.Severity == errors.SeverityWarning || ke.Severity == errors.SeverityInfo {
			warnings++
			w.Warning(line)
		} else {
			failures++
			w.Error(line)
		}
		if ke.Suggestion != "" {
			w.Status("", w.dim.Render("hint: "+ke.Suggestion))
		}
	}
	w.Statusf("", "%d errors, %d warnings", failures, warnings)
}
