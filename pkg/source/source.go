// SPDX-License-Identifier: MPL-2.0

// Package source implements the pluggable backends that turn SourceIds
// into packages: local paths, git checkouts, registries and the
// standard library distribution. A SourceMap composes them; a caching
// layer memoizes queries and downloads for the resolver.
package source

import (
	"context"
	"fmt"
	"sync"

	"scarb/internal/dirs"
	"scarb/internal/flock"
	"scarb/pkg/core"
	"scarb/pkg/manifest"
	"scarb/pkg/registry"
)

type (
	// Source produces package candidates for dependencies and
	// materializes selected packages on disk.
	Source interface {
		// Query returns the candidate summaries matching the dependency's
		// name and version requirement, unordered.
		Query(ctx context.Context, dep core.ManifestDependency) ([]*core.Summary, error)

		// Download materializes the package and returns it loaded.
		Download(ctx context.Context, id core.PackageId) (*core.Package, error)
	}

	// Map routes Query/Download calls to the Source owning the
	// relevant SourceId, constructing backends on first use.
	Map struct {
		dirs    *dirs.AppDirs
		offline bool
		// compilerVersion pins the std source and the implicit core dep.
		std *StdSource

		mu      sync.Mutex
		sources map[core.SourceId]Source
	}
)

// NewMap creates a source map. std supplies the standard library
// packages and may be shared across maps.
func NewMap(appDirs *dirs.AppDirs, offline bool, std *StdSource) *Map {
	return &Map{
		dirs:    appDirs,
		offline: offline,
		std:     std,
		sources: make(map[core.SourceId]Source),
	}
}

// RegisterWorkspace seeds the map with path sources for already loaded
// workspace members, so resolving them does not re-parse manifests.
func (m *Map) RegisterWorkspace(ws *core.Workspace) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byId := make(map[core.SourceId][]*core.Package)
	for _, pkg := range ws.Members {
		sid := pkg.Id.SourceId()
		byId[sid] = append(byId[sid], pkg)
	}
	for sid, pkgs := range byId {
		root, err := sid.ToPath()
		if err != nil {
			continue
		}
		m.sources[sid] = newLoadedPathSource(root, sid, pkgs)
	}
}

// Query delegates to the source identified by the dependency.
func (m *Map) Query(ctx context.Context, dep core.ManifestDependency) ([]*core.Summary, error) {
	src, err := m.source(dep.SourceId)
	if err != nil {
		return nil, err
	}
	return src.Query(ctx, dep)
}

// Download delegates to the source identified by the package id.
func (m *Map) Download(ctx context.Context, id core.PackageId) (*core.Package, error) {
	src, err := m.source(id.SourceId())
	if err != nil {
		return nil, err
	}
	return src.Download(ctx, id)
}

func (m *Map) source(id core.SourceId) (Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if src, ok := m.sources[id]; ok {
		return src, nil
	}

	var src Source
	var err error
	switch id.Kind() {
	case core.SourceKindPath:
		dir, perr := id.ToPath()
		if perr != nil {
			return nil, perr
		}
		src = NewPathSource(dir, id)
	case core.SourceKindGit:
		src = NewGitSource(id, m.dirs.Cache.Child("registry").Child("git"), m.offline)
	case core.SourceKindRegistryLocal, core.SourceKindRegistryHTTP:
		src, err = NewRegistrySource(id, m.dirs, m.offline)
		if err != nil {
			return nil, err
		}
	case core.SourceKindStd:
		if m.std == nil {
			return nil, fmt.Errorf("standard library source is not configured")
		}
		src = m.std
	default:
		return nil, fmt.Errorf("unsupported source kind for %s", id)
	}

	m.sources[id] = src
	return src, nil
}

// CacheDir returns the package cache root shared by every source
// backend. Cross-process coordination locks live under it.
func (m *Map) CacheDir() *flock.Filesystem { return m.dirs.Cache }

// RegistryClient returns the registry client behind a registry
// SourceId. Publishing and checksum lookups talk to the client
// directly instead of going through Query/Download.
func (m *Map) RegistryClient(id core.SourceId) (registry.Client, error) {
	src, err := m.source(id)
	if err != nil {
		return nil, err
	}
	reg, ok := src.(*RegistrySource)
	if !ok {
		return nil, fmt.Errorf("%s is not a registry source", id)
	}
	return reg.Client(), nil
}

// loadPackages reads the manifest tree rooted at manifestPath and
// reassigns every loaded package to sourceId. Packages fetched from
// git or registries are identified by their origin, not by the cache
// path they happen to be extracted to.
func loadPackages(manifestPath string, sourceId core.SourceId) ([]*core.Package, error) {
	ws, err := manifest.ReadWorkspace(manifestPath, "")
	if err != nil {
		return nil, err
	}
	out := make([]*core.Package, 0, len(ws.Members))
	for _, pkg := range ws.Members {
		out = append(out, reassignSource(pkg, sourceId))
	}
	return out, nil
}

func reassignSource(pkg *core.Package, sourceId core.SourceId) *core.Package {
	if sourceId.IsPath() {
		return pkg
	}
	id := core.NewPackageId(pkg.Id.Name(), pkg.Id.Version(), sourceId)
	m := *pkg.Manifest
	m.Summary.PackageId = id
	return &core.Package{Id: id, ManifestPath: pkg.ManifestPath, Manifest: &m}
}

// matching filters summaries by the dependency's name and version
// requirement.
func matching(dep core.ManifestDependency, pkgs []*core.Package) []*core.Summary {
	var out []*core.Summary
	for _, pkg := range pkgs {
		if pkg.Id.Name() != dep.Name {
			continue
		}
		if !dep.VersionReq.Matches(pkg.Id.Version()) {
			continue
		}
		out = append(out, &pkg.Manifest.Summary)
	}
	return out
}
