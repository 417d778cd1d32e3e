package mindmap

import (
	"os"
	"path/filepath"

	"github.com/Aman-CERP/kbi/internal/doctree"
	"github.com/Aman-CERP/kbi/internal/errors"
	"github.com/Aman-CERP/kbi/internal/outline"
)

// WriteFile encodes root to path. The map is written to a temporary file in
// the same directory and renamed into place while holding the output lock,
// so readers never observe a partial map. When opts.OutputDir is empty it
// defaults to the directory of path.
func WriteFile(path string, root *outline.Node, f *doctree.Forest, opts Options) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.New(errors.ErrCodeOutputWrite, "invalid output path", err).At(path, 0)
	}
	dir := filepath.Dir(abs)
	if opts.OutputDir == "" {
		opts.OutputDir = dir
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(errors.ErrCodeOutputWrite, "cannot create output directory", err).At(path, 0)
	}

	lock := NewOutputLock(abs)
	ok, err := lock.TryLock()
	if err != nil {
		return errors.New(errors.ErrCodeOutputWrite, "cannot lock output", err).At(path, 0)
	}
	if !ok {
		return errors.New(errors.ErrCodeOutputLocked, "output is being written by another process", nil).
			At(path, 0).
			WithSuggestion("Wait for the other kbi run to finish or choose a different --output")
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(abs)+".*.tmp")
	if err != nil {
		return errors.New(errors.ErrCodeOutputWrite, "cannot create temporary output", err).At(path, 0)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := Encode(tmp, root, f, opts); err != nil {
		_ = tmp.Close()
		return errors.New(errors.ErrCodeOutputWrite, "failed to write mind map", err).At(path, 0)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.New(errors.ErrCodeOutputWrite, "failed to sync mind map", err).At(path, 0)
	}
	if err := tmp.Close(); err != nil {
		return errors.New(errors.ErrCodeOutputWrite, "failed to close mind map", err).At(path, 0)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errors.New(errors.ErrCodeOutputWrite, "failed to set permissions", err).At(path, 0)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return errors.New(errors.ErrCodeOutputWrite, "failed to replace mind map", err).At(path, 0)
	}
	committed = true
	return nil
}
