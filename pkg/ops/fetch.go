// SPDX-License-Identifier: MPL-2.0

package ops

import (
	"context"
	"fmt"

	"scarb/internal/flock"
	"scarb/internal/ui"
	"scarb/pkg/compiler"
	"scarb/pkg/core"
	"scarb/pkg/lockfile"
	"scarb/pkg/resolver"
	"scarb/pkg/source"
)

type (
	// FetchOpts tunes the fetch operation.
	FetchOpts struct {
		// Update ignores lockfile pins and re-solves against the newest
		// available versions.
		Update bool
	}

	// Fetched is the outcome of a fetch: the locked graph plus every
	// package of the solution materialized on disk.
	Fetched struct {
		Resolve  *core.Resolve
		Packages map[core.PackageId]*core.Package
	}
)

// Fetch resolves the workspace dependency graph, downloads every
// package of the solution, and writes the lockfile back when the
// solution changed. The package cache is held exclusively while
// sources are materialized.
func Fetch(ctx context.Context, ws *core.Workspace, cache *source.Cache, u *ui.Ui, opts FetchOpts) (*Fetched, error) {
	rootFs := flock.NewFilesystem(ws.Root())
	lockGuard, err := acquire(rootFs.AdvisoryLock(core.LockFileName, "workspace lockfile"), flock.LockShared, u)
	if err != nil {
		return nil, err
	}
	prev, err := lockfile.ReadFromPath(ws.LockfilePath())
	lockGuard.Release()
	if err != nil {
		return nil, err
	}

	cacheGuard, err := acquire(cacheLock(cache), flock.LockExclusive, u)
	if err != nil {
		return nil, err
	}
	defer cacheGuard.Release()

	resolve, err := resolver.Resolve(ctx, ws.MemberSummaries(), cache, ws.Patches, prev, compiler.Version, resolver.Opts{Update: opts.Update})
	if err != nil {
		return nil, err
	}

	packages, err := downloadAll(ctx, ws, cache, resolve)
	if err != nil {
		return nil, err
	}

	checksums, err := collectChecksums(ctx, cache, resolve)
	if err != nil {
		return nil, err
	}

	next := lockfile.FromResolve(resolve, checksums)
	if next.Render() != prev.Render() {
		writeGuard, err := acquire(rootFs.AdvisoryLock(core.LockFileName, "workspace lockfile"), flock.LockExclusive, u)
		if err != nil {
			return nil, err
		}
		err = next.WriteToPath(ws.LockfilePath())
		writeGuard.Release()
		if err != nil {
			return nil, err
		}
	}

	return &Fetched{Resolve: resolve, Packages: packages}, nil
}

// downloadAll materializes every package of the solution. Workspace
// members are already loaded and keep their identity.
func downloadAll(ctx context.Context, ws *core.Workspace, cache *source.Cache, resolve *core.Resolve) (map[core.PackageId]*core.Package, error) {
	packages := make(map[core.PackageId]*core.Package, len(resolve.PackageIds()))
	for _, member := range ws.Members {
		packages[member.Id] = member
	}
	for _, id := range resolve.PackageIds() {
		if _, ok := packages[id]; ok {
			continue
		}
		pkg, err := cache.Download(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", id, err)
		}
		packages[id] = pkg
	}
	return packages, nil
}

// collectChecksums looks up the archive checksum of every registry
// package from its index record, for recording in the lockfile.
func collectChecksums(ctx context.Context, cache *source.Cache, resolve *core.Resolve) (map[core.PackageId]core.Checksum, error) {
	checksums := make(map[core.PackageId]core.Checksum)
	for _, id := range resolve.PackageIds() {
		if !id.SourceId().IsRegistry() {
			continue
		}
		client, err := cache.Sources().RegistryClient(id.SourceId())
		if err != nil {
			return nil, err
		}
		records, err := client.GetRecords(ctx, id.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to look up checksum of %s: %w", id, err)
		}
		if record, ok := records.FindVersion(id.Version()); ok {
			checksums[id] = record.Checksum
		}
	}
	return checksums, nil
}

func cacheLock(cache *source.Cache) *flock.AdvisoryLock {
	return cache.Sources().CacheDir().AdvisoryLock(packageCacheLock, "package cache")
}
