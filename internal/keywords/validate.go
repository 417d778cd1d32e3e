package keywords

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/kbi/internal/errors"
)

// MaxDepth is the deepest nesting level accepted without a warning.
const MaxDepth = 6

// Validate reports suspicious but legal structure: grouping entries that
// contain ':', nesting deeper than MaxDepth, and groups without patterns.
func Validate(t *Tree) []*errors.KBIError {
	var out []*errors.KBIError
	warn := func(e *Entry, format string, args ...any) {
		out = append(out, errors.New(errors.ErrCodeKeywordValidation,
			fmt.Sprintf(format, args...), nil).At(t.File, e.Line))
	}

	t.Walk(func(e *Entry) bool {
		if !e.IsLeaf() && strings.Contains(e.Label, ":") {
			warn(e, "grouping entry %q contains ':' and is not searched", e.Label)
		}
		// Warn once per branch, where the threshold is first crossed.
		if e.Depth == MaxDepth {
			warn(e, "very deep nesting (level %d)", e.Depth+1)
		}
		if !e.IsLeaf() && !hasLeaf(e) {
			warn(e, "grouping entry %q has no search patterns", e.Label)
			return false
		}
		return true
	})
	return out
}

func hasLeaf(e *Entry) bool {
	stack := append([]*Entry(nil), e.Children...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.IsLeaf() {
			return true
		}
		stack = append(stack, cur.Children...)
	}
	return false
}
