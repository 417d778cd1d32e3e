package keywords

import (
	"fmt"
	"os"
)

const sampleContent = `# Sample keyword file
# Lines starting with # are comments
# Use tabs for indentation
# Leaf entries (no children) are search patterns: terms separated by ':'
# Each term narrows the search to the subtree of the previous match
# Non-leaf entries are organizational categories

Programming Concepts
	Functions
		function:definition
		async:function
		lambda:function
	Classes
		class:inheritance
		abstract:class
		interface:implementation
	Error Handling
		try:catch:exception
		error:handling:best:practices

Documentation
	API Documentation
		api:reference
		endpoint:documentation
	User Guides
		tutorial:beginner
		guide:advanced:usage

Project Management
	Planning
		requirements:analysis
		project:scope
	Development Process
		code:review:process
		testing:strategy
`

// SampleContent returns an example keyword file.
func SampleContent() string {
	return sampleContent
}

// WriteSample writes the example keyword file to path. An existing file is
// not overwritten.
func WriteSample(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create sample keyword file: %w", err)
	}
	if _, err := f.WriteString(sampleContent); err != nil {
		_ = f.Close()
		return fmt.Errorf("write sample keyword file: %w", err)
	}
	return f.Close()
}
