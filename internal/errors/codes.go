// Package errors provides structured error handling for kbi.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk)
//   - 4XX: Input errors (keyword files, source documents)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryInput indicates malformed keyword files or source documents.
	CategoryInput Category = "INPUT"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the input was rejected but the run continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// IO errors (200-299)
	ErrCodeFileNotFound    = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission  = "ERR_202_FILE_PERMISSION"
	ErrCodeDiskFull        = "ERR_203_DISK_FULL"
	ErrCodeFileTooLarge    = "ERR_204_FILE_TOO_LARGE"
	ErrCodeRootUnreadable  = "ERR_205_ROOT_UNREADABLE"
	ErrCodeKeywordsMissing = "ERR_206_KEYWORDS_UNREADABLE"
	ErrCodeOutputWrite     = "ERR_207_OUTPUT_WRITE"
	ErrCodeOutputLocked    = "ERR_208_OUTPUT_LOCKED"

	// Input errors (400-499)
	ErrCodeKeywordStructure  = "ERR_401_KEYWORD_STRUCTURE"
	ErrCodePatternCompile    = "ERR_402_PATTERN_COMPILE"
	ErrCodeUnsupportedFile   = "ERR_403_UNSUPPORTED_FILE_TYPE"
	ErrCodeHandlerParse      = "ERR_404_HANDLER_PARSE"
	ErrCodeKeywordValidation = "ERR_405_KEYWORD_VALIDATION"
	ErrCodeInvalidInput      = "ERR_406_INVALID_INPUT"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeSearchFailed   = "ERR_502_SEARCH_FAILED"
	ErrCodeAssembleFailed = "ERR_503_ASSEMBLE_FAILED"
	ErrCodeHistoryFailed  = "ERR_504_HISTORY_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryInput
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeRootUnreadable, ErrCodeKeywordsMissing, ErrCodeDiskFull, ErrCodeOutputWrite:
		return SeverityFatal
	case ErrCodeKeywordStructure:
		return SeverityError
	case ErrCodePatternCompile, ErrCodeUnsupportedFile, ErrCodeHandlerParse, ErrCodeKeywordValidation:
		return SeverityWarning
	}

	// Config errors stop the run before it starts
	if categoryFromCode(code) == CategoryConfig {
		return SeverityFatal
	}

	return SeverityError
}
