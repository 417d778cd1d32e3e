package errors

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FormatForUser returns a user-friendly error message.
// If debug is true, the underlying cause is included.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}

	ke, ok := As(err)
	if !ok {
		// Standard error - just return message
		return err.Error()
	}

	var sb strings.Builder

	sb.WriteString("Error: ")
	if loc := ke.Location(); loc != "" {
		sb.WriteString(loc)
		sb.WriteString(": ")
	}
	sb.WriteString(ke.Message)
	sb.WriteString("\n")

	if debug && ke.Cause != nil && ke.Cause.Error() != ke.Message {
		sb.WriteString("Cause: ")
		sb.WriteString(ke.Cause.Error())
		sb.WriteString("\n")
	}

	if ke.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(ke.Suggestion)
		sb.WriteString("\n")
	}

	// Error code for reference
	sb.WriteString(fmt.Sprintf("\n[%s]", ke.Code))

	return sb.String()
}

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ke, ok := As(err)
	if !ok {
		ke = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder

	if loc := ke.Location(); loc != "" {
		sb.WriteString(fmt.Sprintf("Error: %s: %s\n", loc, ke.Message))
	} else {
		sb.WriteString(fmt.Sprintf("Error: %s\n", ke.Message))
	}

	if ke.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ke.Suggestion))
	}

	sb.WriteString(fmt.Sprintf("  Code: %s\n", ke.Code))

	return sb.String()
}

// FormatReport renders collected warnings as one line each, in the
// order given.
func FormatReport(items []*KBIError) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, ke := range items {
		sb.WriteString(string(ke.Severity))
		sb.WriteString(" ")
		if loc := ke.Location(); loc != "" {
			sb.WriteString(loc)
			sb.WriteString(": ")
		}
		sb.WriteString(ke.Message)
		sb.WriteString(" (")
		sb.WriteString(ke.Code)
		sb.WriteString(")\n")
	}
	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	File       string            `json:"file,omitempty"`
	Line       int               `json:"line,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
}

// FormatJSON returns a JSON representation of the error.
// Suitable for machine consumption and structured logging.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	ke, ok := As(err)
	if !ok {
		ke = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       ke.Code,
		Message:    ke.Message,
		Category:   string(ke.Category),
		Severity:   string(ke.Severity),
		File:       ke.File,
		Line:       ke.Line,
		Details:    ke.Details,
		Suggestion: ke.Suggestion,
	}

	if ke.Cause != nil {
		je.Cause = ke.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog formats an error for structured logging.
// Returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	ke, ok := As(err)
	if !ok {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": ke.Code,
		"message":    ke.Message,
		"category":   string(ke.Category),
		"severity":   string(ke.Severity),
	}

	if ke.File != "" {
		result["file"] = ke.File
	}
	if ke.Line > 0 {
		result["line"] = strconv.Itoa(ke.Line)
	}

	if ke.Cause != nil {
		result["cause"] = ke.Cause.Error()
	}

	if ke.Suggestion != "" {
		result["suggestion"] = ke.Suggestion
	}

	for k, v := range ke.Details {
		result["detail_"+k] = v
	}

	return result
}
