// SPDX-License-Identifier: MPL-2.0

package flock

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFilesystem_LazyCreation(t *testing.T) {
	t.Parallel()
	root := filepath.Join(t.TempDir(), "out")
	fs := NewFilesystem(root)
	child := fs.Child("a").Child("b")

	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatal("directory must not exist before first use")
	}
	if got := child.Path(); got != filepath.Join(root, "a", "b") {
		t.Errorf("Path() = %q", got)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatal("Path() must not create the directory")
	}

	p, err := child.PathExistent()
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		t.Fatalf("PathExistent must create the tree: %v", err)
	}

	// Second call is an idempotent no-op.
	if _, err := child.PathExistent(); err != nil {
		t.Fatal(err)
	}
}

func TestFilesystem_OutputDirTag(t *testing.T) {
	t.Parallel()
	root := filepath.Join(t.TempDir(), "cache")
	fs := NewOutputFilesystem(root)
	if _, err := fs.PathExistent(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(root, "CACHEDIR.TAG"))
	if err != nil {
		t.Fatalf("output dirs must carry CACHEDIR.TAG: %v", err)
	}
	if len(data) == 0 {
		t.Error("tag file must not be empty")
	}
}

func TestFilesystem_RemoveAllRecreates(t *testing.T) {
	t.Parallel()
	fs := NewFilesystem(filepath.Join(t.TempDir(), "target"))
	if _, err := fs.PathExistent(); err != nil {
		t.Fatal(err)
	}
	if err := fs.RemoveAll(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(fs.Path()); !os.IsNotExist(err) {
		t.Fatal("RemoveAll must delete the tree")
	}
	if _, err := fs.PathExistent(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(fs.Path()); err != nil {
		t.Fatal("handle must recreate the tree after RemoveAll")
	}
}

func TestAdvisoryLock_RecursiveAcquire(t *testing.T) {
	t.Parallel()
	fs := NewFilesystem(t.TempDir())
	lock := fs.AdvisoryLock(".test-lock", "test lock")

	g1, err := lock.Acquire(LockExclusive)
	if err != nil {
		t.Fatal(err)
	}
	// Recursive acquisition within the process must not deadlock.
	g2, err := lock.Acquire(LockExclusive)
	if err != nil {
		t.Fatal(err)
	}
	g2.Release()
	g1.Release()
	g1.Release() // idempotent

	// Lock is reacquirable after full release.
	g3, err := lock.Acquire(LockShared)
	if err != nil {
		t.Fatal(err)
	}
	g3.Release()
}

func TestAdvisoryLock_NoExclusiveUpgrade(t *testing.T) {
	t.Parallel()
	fs := NewFilesystem(t.TempDir())
	lock := fs.AdvisoryLock(".test-lock", "test lock")

	g, err := lock.Acquire(LockShared)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Release()

	if _, err := lock.Acquire(LockExclusive); err == nil {
		t.Error("upgrading a shared hold to exclusive must fail")
	}
}
