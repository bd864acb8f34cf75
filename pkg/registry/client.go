// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"errors"

	"scarb/pkg/core"
)

// ErrNotFound is returned when a registry has no record of the
// requested package or version.
var ErrNotFound = errors.New("package not found in registry")

// ErrOffline is returned when an operation would require network
// traffic while offline mode is active.
var ErrOffline = errors.New("network access is disabled in offline mode")

// Client is a registry backend. Implementations must be safe for
// concurrent use; the resolver queries them from multiple goroutines.
type Client interface {
	// IsOffline reports whether the client refuses remote traffic.
	IsOffline() bool

	// GetRecords returns all published versions of the named package,
	// or ErrNotFound.
	GetRecords(ctx context.Context, name core.PackageName) (IndexRecords, error)

	// IsDownloaded reports whether the package archive is already in
	// the local cache. Pure filesystem check, no network.
	IsDownloaded(id core.PackageId) bool

	// Download fetches the package archive into the local cache and
	// returns its path. The archive's checksum is verified against the
	// index record before the path is returned; on mismatch the
	// archive is discarded and a ChecksumError raised.
	Download(ctx context.Context, id core.PackageId) (string, error)

	// SupportsPublish reports whether Publish can work at all.
	SupportsPublish() bool

	// Publish uploads a package tarball.
	Publish(ctx context.Context, pkg *core.Package, tarball string) error
}
