package errors

import (
	stderrors "errors"
	"fmt"
	"strconv"
)

// KBIError is the structured error type for kbi.
// It carries enough context to be logged, collected as a warning, and
// shown to the user at the end of a run.
type KBIError struct {
	// Code is the unique error code (e.g., "ERR_401_KEYWORD_STRUCTURE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Input, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// File is the offending input, if any.
	File string

	// Line is the 1-based line in File, or 0 when not applicable.
	Line int

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *KBIError) Error() string {
	if loc := e.Location(); loc != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, loc, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Location returns "file:line", "file", or "".
func (e *KBIError) Location() string {
	switch {
	case e.File == "":
		return ""
	case e.Line > 0:
		return e.File + ":" + strconv.Itoa(e.Line)
	default:
		return e.File
	}
}

// Unwrap returns the underlying cause for error chain support.
func (e *KBIError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with KBIError.
func (e *KBIError) Is(target error) bool {
	if t, ok := target.(*KBIError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *KBIError) WithDetail(key, value string) *KBIError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *KBIError) WithSuggestion(suggestion string) *KBIError {
	e.Suggestion = suggestion
	return e
}

// At attaches a file and line to the error.
func (e *KBIError) At(file string, line int) *KBIError {
	e.File = file
	e.Line = line
	return e
}

// New creates a new KBIError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *KBIError {
	return &KBIError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a KBIError from an existing error.
// The error's message becomes the KBIError message.
func Wrap(code string, err error) *KBIError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *KBIError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *KBIError {
	return New(ErrCodeFileNotFound, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *KBIError {
	return New(ErrCodeInternal, message, cause)
}

// StructuralParse reports an indentation jump in a keyword file.
func StructuralParse(file string, line, depth, parentDepth int) *KBIError {
	msg := fmt.Sprintf("indentation jumps from level %d to level %d", parentDepth, depth)
	return New(ErrCodeKeywordStructure, msg, nil).
		At(file, line).
		WithDetail("depth", strconv.Itoa(depth)).
		WithSuggestion("indent each entry at most one level deeper than the entry above it")
}

// PatternCompile reports a keyword term that is not a valid regular expression.
func PatternCompile(file string, line int, term string, cause error) *KBIError {
	msg := fmt.Sprintf("term %q does not compile", term)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return New(ErrCodePatternCompile, msg, cause).
		At(file, line).
		WithDetail("term", term)
}

// UnsupportedFileType reports a discovered file with no registered handler.
func UnsupportedFileType(path, ext string) *KBIError {
	return New(ErrCodeUnsupportedFile, fmt.Sprintf("no handler for %q files", ext), nil).
		At(path, 0).
		WithDetail("extension", ext)
}

// HandlerParse reports a source document its handler could not parse.
func HandlerParse(path, handler string, cause error) *KBIError {
	msg := handler + " handler failed"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return New(ErrCodeHandlerParse, msg, cause).
		At(path, 0).
		WithDetail("handler", handler)
}

// As returns the first KBIError in err's chain.
func As(err error) (*KBIError, bool) {
	var ke *KBIError
	if stderrors.As(err, &ke) {
		return ke, true
	}
	return nil, false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if ke, ok := As(err); ok {
		return ke.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a KBIError.
// Returns empty string if not a KBIError.
func GetCode(err error) string {
	if ke, ok := As(err); ok {
		return ke.Code
	}
	return ""
}

// GetCategory extracts the category from a KBIError.
// Returns empty string if not a KBIError.
func GetCategory(err error) Category {
	if ke, ok := As(err); ok {
		return ke.Category
	}
	return ""
}
