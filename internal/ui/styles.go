package ui

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette with a single teal accent.
const (
	ColorAccent    = "37"
	ColorAccentDim = "30"
	ColorWhite     = "255"
	ColorGray      = "245"
	ColorDarkGray  = "238"
	ColorRed       = "196"
	ColorYellow    = "220"
)

// Styles holds the lipgloss styles of the TUI and the history table.
type Styles struct {
	Header   lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Dim      lipgloss.Style
	Stage    lipgloss.Style
	Active   lipgloss.Style
	Progress lipgloss.Style
	Border   lipgloss.Style
	Label    lipgloss.Style
}

// DefaultStyles returns the colored styles.
func DefaultStyles() Styles {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	return Styles{
		Header:   fg(ColorAccent).Bold(true),
		Success:  fg(ColorAccent),
		Warning:  fg(ColorYellow),
		Error:    fg(ColorRed),
		Dim:      fg(ColorDarkGray),
		Stage:    fg(ColorAccentDim),
		Active:   fg(ColorWhite).Bold(true),
		Progress: fg(ColorAccent),
		Border:   fg(ColorDarkGray),
		Label:    fg(ColorGray),
	}
}

// NoColorStyles returns unstyled components.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:   plain,
		Success:  plain,
		Warning:  plain,
		Error:    plain,
		Dim:      plain,
		Stage:    plain,
		Active:   plain,
		Progress: plain,
		Border:   plain,
		Label:    plain,
	}
}

// GetStyles returns the styles for the color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
