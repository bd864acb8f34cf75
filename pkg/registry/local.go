// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"scarb/internal/fsx"
	"scarb/pkg/core"
)

// LocalClient reads a registry laid out in a local directory: an
// `index/` tree of per-package record files next to pre-downloaded
// `.tar.zst` archives:
//
//	[registry root]/
//	├── index/
//	│  └── al/ex/alexandria_math.json
//	├── alexandria_math-0.1.0.tar.zst
//	└── ...
type LocalClient struct {
	root string
}

// NewLocalClient opens the local registry rooted at the directory
// denoted by the source's file:// URL.
func NewLocalClient(sourceId core.SourceId) (*LocalClient, error) {
	u, err := url.Parse(sourceId.CanonicalURL())
	if err != nil || u.Scheme != "file" {
		return nil, fmt.Errorf("local registry source %s is not a file:// URL", sourceId)
	}
	root := u.Path
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("local registry path is not a directory: %s", root)
	}
	return &LocalClient{root: root}, nil
}

// IsOffline is always true: local registries never touch the network.
func (c *LocalClient) IsOffline() bool { return true }

func (c *LocalClient) GetRecords(_ context.Context, name core.PackageName) (IndexRecords, error) {
	data, err := os.ReadFile(c.recordsPath(name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index records for %s: %w", name, err)
	}
	return ParseIndexRecords(data)
}

func (c *LocalClient) IsDownloaded(id core.PackageId) bool {
	_, err := os.Stat(c.archivePath(id))
	return err == nil
}

// Download verifies the pre-existing archive against the index record;
// local registries have nothing to fetch.
func (c *LocalClient) Download(ctx context.Context, id core.PackageId) (string, error) {
	path := c.archivePath(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read package archive for %s: %w", id, err)
	}

	records, err := c.GetRecords(ctx, id.Name())
	if err != nil {
		return "", err
	}
	record, ok := records.FindVersion(id.Version())
	if !ok {
		return "", fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	got := core.ChecksumOfBytes(data)
	if !got.Equal(record.Checksum) {
		return "", &core.ChecksumError{Expected: record.Checksum, Got: got}
	}
	return path, nil
}

func (c *LocalClient) SupportsPublish() bool { return true }

// Publish copies the tarball into the registry root and upserts its
// index record, keeping records sorted by version.
func (c *LocalClient) Publish(_ context.Context, pkg *core.Package, tarball string) error {
	data, err := os.ReadFile(tarball)
	if err != nil {
		return fmt.Errorf("failed to read package archive %s: %w", tarball, err)
	}
	if err := fsx.WriteFileAtomic(c.archivePath(pkg.Id), data, 0o644); err != nil {
		return err
	}

	record := IndexRecord{
		Version:  pkg.Id.Version(),
		Checksum: core.ChecksumOfBytes(data),
		NoCore:   pkg.Manifest.Summary.NoCore,
	}
	for _, dep := range pkg.Manifest.Summary.Dependencies {
		if !dep.Kind.IsNormal() {
			continue
		}
		record.Dependencies = append(record.Dependencies, IndexDependency{
			Name: string(dep.Name),
			Req:  dep.VersionReq.String(),
		})
	}

	recordsPath := c.recordsPath(pkg.Id.Name())
	var records IndexRecords
	if existing, err := os.ReadFile(recordsPath); err == nil {
		records, err = ParseIndexRecords(existing)
		if err != nil {
			return fmt.Errorf("failed to edit records file %s: %w", recordsPath, err)
		}
	}

	// Version is the key: replace an existing record for re-publishes.
	kept := records[:0]
	for _, r := range records {
		if !r.Version.Equal(record.Version) {
			kept = append(kept, r)
		}
	}
	records = append(kept, record)
	sort.Slice(records, func(i, j int) bool {
		return records[i].Version.LessThan(records[j].Version)
	})

	if err := fsx.CreateDirAll(filepath.Dir(recordsPath)); err != nil {
		return err
	}
	rendered, err := records.marshal()
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(recordsPath, rendered, 0o644)
}

func (c *LocalClient) recordsPath(name core.PackageName) string {
	return filepath.Join(c.root, "index",
		filepath.FromSlash(PackagePrefix(name)), string(name)+".json")
}

func (c *LocalClient) archivePath(id core.PackageId) string {
	return filepath.Join(c.root, id.Tarball())
}
