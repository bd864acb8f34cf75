// SPDX-License-Identifier: MPL-2.0

package ops

import (
	"fmt"

	"scarb/internal/dirs"
	"scarb/internal/flock"
	"scarb/internal/ui"
	"scarb/pkg/core"
)

// Clean removes the workspace target directory. A running build is
// waited out first.
func Clean(ws *core.Workspace, u *ui.Ui) error {
	targetFs := flock.NewFilesystem(ws.TargetDirPath())
	guard, err := acquire(targetFs.AdvisoryLock(targetDirLock, "build directory"), flock.LockExclusive, u)
	if err != nil {
		return err
	}
	defer guard.Release()

	if err := targetFs.RemoveAll(); err != nil {
		return fmt.Errorf("failed to clean target directory: %w", err)
	}
	return nil
}

// CacheClean removes the per-user package cache.
func CacheClean(appDirs *dirs.AppDirs, u *ui.Ui) error {
	guard, err := acquire(appDirs.Cache.AdvisoryLock(packageCacheLock, "package cache"), flock.LockExclusive, u)
	if err != nil {
		return err
	}
	defer guard.Release()

	if err := appDirs.Cache.RemoveAll(); err != nil {
		return fmt.Errorf("failed to clean package cache: %w", err)
	}
	return nil
}

// CachePath returns the package cache location.
func CachePath(appDirs *dirs.AppDirs) string {
	return appDirs.Cache.Path()
}
