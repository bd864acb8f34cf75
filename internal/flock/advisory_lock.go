// SPDX-License-Identifier: MPL-2.0

package flock

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

type (
	// LockKind selects shared (read) or exclusive (write) acquisition.
	LockKind int

	// AdvisoryLock is a cross-process lock over a global entity identified
	// by a file path within a Filesystem. Within one process the OS-level
	// lock is acquired once and shared between all outstanding guards, so
	// recursive acquisition never self-deadlocks.
	AdvisoryLock struct {
		path        string
		description string
		fs          *Filesystem

		// OnBlock is invoked once when acquisition has to wait for another
		// process. Wired to the UI's "Blocking" status line.
		OnBlock func(description string)

		mu       sync.Mutex
		fl       *flock.Flock
		kind     LockKind
		refcount int
	}

	// LockGuard releases its share of the lock when Release is called.
	// Release is idempotent.
	LockGuard struct {
		lock     *AdvisoryLock
		released bool
	}
)

const (
	// LockShared allows concurrent readers across processes.
	LockShared LockKind = iota
	// LockExclusive permits a single holder across processes.
	LockExclusive
)

// AdvisoryLock constructs a lock handle for the given file within this
// filesystem. No file is touched until acquisition.
func (f *Filesystem) AdvisoryLock(filename, description string) *AdvisoryLock {
	return &AdvisoryLock{
		path:        filename,
		description: description,
		fs:          f,
	}
}

// Acquire blocks until the lock is held with the requested kind and returns
// a guard. If another process holds a conflicting lock, a single
// human-readable notice is emitted through OnBlock before blocking.
func (l *AdvisoryLock) Acquire(kind LockKind) (*LockGuard, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refcount > 0 {
		// The process already holds the OS-level lock; hand out another
		// guard. An exclusive hold satisfies shared requests. The converse
		// would require an upgrade, which flock cannot do atomically.
		if kind == LockExclusive && l.kind == LockShared {
			return nil, fmt.Errorf(
				"cannot acquire exclusive lock on %s: already held shared by this process", l.description)
		}
		l.refcount++
		return &LockGuard{lock: l}, nil
	}

	dir, err := l.fs.PathExistent()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, l.path)

	fl := flock.New(path)

	locked, err := tryAcquire(fl, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to lock file %s: %w", path, err)
	}
	if !locked {
		if l.OnBlock != nil {
			l.OnBlock(l.description)
		}
		slog.Debug("blocking on file lock", "path", path, "description", l.description)
		if err := blockAcquire(fl, kind); err != nil {
			return nil, fmt.Errorf("failed to lock file %s: %w", path, err)
		}
	}

	l.fl = fl
	l.kind = kind
	l.refcount = 1
	return &LockGuard{lock: l}, nil
}

func tryAcquire(fl *flock.Flock, kind LockKind) (bool, error) {
	if kind == LockExclusive {
		return fl.TryLock()
	}
	return fl.TryRLock()
}

func blockAcquire(fl *flock.Flock, kind LockKind) error {
	if kind == LockExclusive {
		return fl.Lock()
	}
	return fl.RLock()
}

// Release drops this guard's share of the lock. The OS-level lock is
// released when the last guard goes. Safe to call multiple times.
func (g *LockGuard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true

	l := g.lock
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refcount--
	if l.refcount > 0 {
		return
	}
	if err := l.fl.Unlock(); err != nil {
		slog.Debug("flock unlock failed", "path", l.fl.Path(), "error", err)
	}
	l.fl = nil
}
