package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newRepoRoot creates a temp dir with a .git directory in it.
func newRepoRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatalf("failed to create .git dir: %v", err)
	}
	return root
}

func TestAcquireRelease(t *testing.T) {
	root := newRepoRoot(t)

	l, err := Acquire(root)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, ".git", fileName)); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".git", fileName)); !os.IsNotExist(err) {
		t.Error("lock file should be gone after release")
	}
}

func TestAcquire_Conflict(t *testing.T) {
	root := newRepoRoot(t)

	l, err := Acquire(root)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer l.Release()

	_, err = Acquire(root)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("second Acquire() error = %v, want ErrLocked", err)
	}
	if !strings.Contains(err.Error(), "pid=") {
		t.Errorf("error should name the holder, got %q", err)
	}
}

func TestAcquire_AfterRelease(t *testing.T) {
	root := newRepoRoot(t)

	l, err := Acquire(root)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	l2, err := Acquire(root)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	l2.Release()
}

func TestRelease_Twice(t *testing.T) {
	root := newRepoRoot(t)

	l, err := Acquire(root)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("first Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v, want nil", err)
	}
}
