// SPDX-License-Identifier: MPL-2.0

package core

import (
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// PackageId uniquely identifies a package within one process: the triple of
// name, exact version and source. Values are interned, so PackageId is a
// cheaply copyable handle that supports direct comparison and map keying.
type PackageId struct {
	inner *packageIdInner
}

type packageIdInner struct {
	name     PackageName
	version  *semver.Version
	sourceId SourceId
}

var packageIdCache = struct {
	sync.Mutex
	m map[packageIdKey]*packageIdInner
}{m: make(map[packageIdKey]*packageIdInner)}

type packageIdKey struct {
	name     PackageName
	version  string
	sourceId SourceId
}

// NewPackageId interns and returns the id for the given triple.
func NewPackageId(name PackageName, version *semver.Version, sourceId SourceId) PackageId {
	key := packageIdKey{name, version.String(), sourceId}
	packageIdCache.Lock()
	defer packageIdCache.Unlock()
	if inner, ok := packageIdCache.m[key]; ok {
		return PackageId{inner}
	}
	inner := &packageIdInner{name: name, version: version, sourceId: sourceId}
	packageIdCache.m[key] = inner
	return PackageId{inner}
}

// IsZero reports whether this PackageId is the uninitialized zero value.
func (id PackageId) IsZero() bool { return id.inner == nil }

// Name returns the package name.
func (id PackageId) Name() PackageName { return id.inner.name }

// Version returns the exact package version.
func (id PackageId) Version() *semver.Version { return id.inner.version }

// SourceId returns the source this package comes from.
func (id PackageId) SourceId() SourceId { return id.inner.sourceId }

// IsCore reports whether this id denotes the standard library package.
func (id PackageId) IsCore() bool { return id.inner.name == CorePackageName }

// Tarball returns the registry archive file name for this package.
func (id PackageId) Tarball() string {
	return fmt.Sprintf("%s-%s.tar.zst", id.inner.name, id.inner.version)
}

// String renders the id as `<name> <version> (<source>)`. The source is
// omitted for std packages to keep user-facing output short.
func (id PackageId) String() string {
	if id.inner.sourceId.IsStd() {
		return fmt.Sprintf("%s %s", id.inner.name, id.inner.version)
	}
	return fmt.Sprintf("%s %s (%s)", id.inner.name, id.inner.version, id.inner.sourceId)
}

// Serialized renders the id in the machine-readable form used as crate
// discriminators and metadata component ids.
func (id PackageId) Serialized() string {
	return fmt.Sprintf("%s %s (%s)", id.inner.name, id.inner.version, id.inner.sourceId.PrettyURL())
}
