// Package lock provides an advisory file lock that serializes dotmirror
// operations on one repository.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrLocked means another dotmirror operation holds the lock.
var ErrLocked = errors.New("another dotmirror operation is in progress")

const fileName = "dotmirror.lock"

// Lock is a held advisory lock. Release it when the operation finishes.
type Lock struct {
	path string
}

// Acquire takes the lock for the repository rooted at repoRoot. The lock
// file lives under .git so it never dirties the working tree. On conflict
// the error names the holder recorded in the file.
func Acquire(repoRoot string) (*Lock, error) {
	path := filepath.Join(repoRoot, ".git", fileName)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, lockedError(path)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	host, _ := os.Hostname()
	fmt.Fprintf(f, "pid=%d\nhost=%s\ntime=%s\n", os.Getpid(), host, time.Now().Format(time.RFC3339))

	return &Lock{path: path}, nil
}

// Release removes the lock file. Releasing twice is not an error.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func lockedError(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrLocked, path)
	}
	holder := strings.ReplaceAll(strings.TrimSpace(string(data)), "\n", " ")
	return fmt.Errorf("%w: held by %s", ErrLocked, holder)
}
