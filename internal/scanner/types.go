// Package scanner discovers the source documents of a kbi run. It walks the
// configured include roots, applies exclude patterns and .gitignore rules,
// and keeps only files whose extension has a handler.
package scanner

import (
	"time"

	"github.com/Aman-CERP/kbi/internal/errors"
)

// File is one discovered document.
type File struct {
	// Path is slash separated and relative to Result.Base. It is the
	// display path of every node parsed from the file.
	Path    string
	AbsPath string
	Root    string // absolute include root the file was found under
	Size    int64
	ModTime time.Time
}

// Options configures Scan.
type Options struct {
	// Roots are directories (or single files) to scan, in order. A file
	// reachable from several roots is reported once, under the first.
	Roots []string

	// Exclude holds gitignore-style patterns relative to each root.
	Exclude []string

	RespectGitignore bool
	FollowSymlinks   bool

	// MaxFileSize skips larger files (0 = DefaultMaxFileSize).
	MaxFileSize int64

	// Extensions limits directory scans to these lowercase extensions,
	// including the dot. Empty accepts every file. Files named directly in
	// Roots are always kept.
	Extensions []string

	// Skip lists absolute paths that are never reported, such as the output
	// file of the run.
	Skip []string
}

// Result is the outcome of a scan.
type Result struct {
	// Base is the deepest directory containing every readable root.
	Base  string
	Files []File

	// Warnings are non-fatal problems: missing roots, unreadable
	// subdirectories, skipped files.
	Warnings []*errors.KBIError
}

// DefaultMaxFileSize is the default maximum file size (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024
