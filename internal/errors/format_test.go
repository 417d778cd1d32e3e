package errors

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_BasicError(t *testing.T) {
	// Given: a KBIError
	err := New(ErrCodeFileNotFound, "file 'kbi.yaml' not found", nil)

	// When: formatting for user (no debug)
	result := FormatForUser(err, false)

	// Then: contains message and error code
	assert.Contains(t, result, "file 'kbi.yaml' not found")
	assert.Contains(t, result, "[ERR_201_FILE_NOT_FOUND]")
}

func TestFormatForUser_WithSuggestionAndLocation(t *testing.T) {
	err := StructuralParse("keywords.txt", 5, 3, 1)

	result := FormatForUser(err, false)

	assert.Contains(t, result, "keywords.txt:5")
	assert.Contains(t, result, "Suggestion:")
}

func TestFormatForUser_DebugShowsCause(t *testing.T) {
	err := New(ErrCodeOutputWrite, "cannot write index.mm", errors.New("read-only file system"))

	assert.NotContains(t, FormatForUser(err, false), "read-only")
	assert.Contains(t, FormatForUser(err, true), "Cause: read-only file system")
}

func TestFormatForUser_StandardAndNil(t *testing.T) {
	assert.Equal(t, "something went wrong", FormatForUser(errors.New("something went wrong"), false))
	assert.Empty(t, FormatForUser(nil, false))
}

func TestFormatJSON_BasicError(t *testing.T) {
	// Given: a KBIError with details
	err := HandlerParse("maps/a.mm", "freeplane", nil).
		WithSuggestion("Open the map in Freeplane and save it again")

	// When: formatting as JSON
	data, jsonErr := FormatJSON(err)
	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))

	// Then: contains expected fields
	assert.Equal(t, ErrCodeHandlerParse, result["code"])
	assert.Equal(t, "maps/a.mm", result["file"])
	assert.Equal(t, string(CategoryInput), result["category"])
	assert.Equal(t, string(SeverityWarning), result["severity"])
	assert.Equal(t, "Open the map in Freeplane and save it again", result["suggestion"])

	details, ok := result["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "freeplane", details["handler"])
}

func TestFormatJSON_StandardAndNil(t *testing.T) {
	data, err := FormatJSON(errors.New("generic error"))
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, ErrCodeInternal, result["code"])

	data, err = FormatJSON(nil)
	assert.NoError(t, err)
	assert.Equal(t, "null", strings.TrimSpace(string(data)))
}

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeRootUnreadable, "cannot read ./docs", nil).
		WithSuggestion("Check paths.include in kbi.yaml")

	result := FormatForCLI(err)

	assert.Contains(t, result, "cannot read ./docs")
	assert.Contains(t, result, "Hint: Check paths.include")
	assert.Contains(t, result, "ERR_205_ROOT_UNREADABLE")
	lines := strings.Split(strings.TrimSpace(result), "\n")
	assert.LessOrEqual(t, len(lines), 5, "Should be concise")
}

func TestFormatReport(t *testing.T) {
	items := []*KBIError{
		UnsupportedFileType("a.txt", ".txt"),
		PatternCompile("kw.txt", 2, "(", nil),
	}

	report := FormatReport(items)

	assert.Equal(t,
		"WARNING a.txt: no handler for \".txt\" files (ERR_403_UNSUPPORTED_FILE_TYPE)\n"+
			"WARNING kw.txt:2: term \"(\" does not compile (ERR_402_PATTERN_COMPILE)\n",
		report)
	assert.Empty(t, FormatReport(nil))
}

func TestFormatForLog(t *testing.T) {
	fields := FormatForLog(PatternCompile("kw.txt", 9, "[", errors.New("missing ]")))

	assert.Equal(t, ErrCodePatternCompile, fields["error_code"])
	assert.Equal(t, "kw.txt", fields["file"])
	assert.Equal(t, "9", fields["line"])
	assert.Equal(t, "[", fields["detail_term"])
	assert.Equal(t, map[string]any{"error": "x"}, FormatForLog(errors.New("x")))
	assert.Nil(t, FormatForLog(nil))
}
