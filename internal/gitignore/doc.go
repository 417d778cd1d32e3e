// Package gitignore matches slash-separated relative paths against
// gitignore-style patterns.
//
// The same syntax serves .gitignore files found while scanning and the
// paths.exclude list of the kbi configuration:
//
//	m := gitignore.New()
//	m.AddPatterns([]string{"**/node_modules/**", "*.tmp", "!keep.tmp", "/build/"})
//	m.Match("web/node_modules/x/README.md", false) // true
//
// Patterns from a nested .gitignore only apply below its directory:
//
//	m.AddFromFile("/kb/notes/.gitignore", "notes")
package gitignore
