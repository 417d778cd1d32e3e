// Package logging provides file-based structured logging with rotation for
// kbi. Every run appends JSON records to ~/.kbi/logs/kbi.log; with --debug
// the records are also written to stderr at debug level.
//
// `kbi logs` reads the same file back through Viewer.
package logging
