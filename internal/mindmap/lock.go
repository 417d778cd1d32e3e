package mindmap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// OutputLock guards an output file against concurrent writers in other
// processes. The lock file lives next to the output as "<name>.lock".
type OutputLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewOutputLock creates the lock for outputPath.
func NewOutputLock(outputPath string) *OutputLock {
	lockPath := outputPath + ".lock"
	return &OutputLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts to acquire the lock without blocking. It reports false
// when another process holds it.
func (l *OutputLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock and removes the lock file. Calling it on an
// unlocked OutputLock is a no-op.
func (l *OutputLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	_ = os.Remove(l.path)
	return nil
}

// Path returns the lock file path.
func (l *OutputLock) Path() string { return l.path }
