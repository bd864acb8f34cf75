// SPDX-License-Identifier: MPL-2.0

package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"scarb/internal/flock"
	"scarb/internal/ui"
	"scarb/pkg/core"
	"scarb/pkg/registry"
	"scarb/pkg/source"
)

// PackageTarball archives a package into
// `<target>/package/<name>-<version>.tar.zst` and returns the path.
func PackageTarball(pkg *core.Package, ws *core.Workspace, u *ui.Ui) (string, error) {
	u.PrintStatus("Packaging", fmt.Sprintf("%s v%s (%s)", pkg.Id.Name(), pkg.Id.Version(), pkg.ManifestPath))

	packageFs := flock.NewOutputFilesystem(ws.TargetDirPath()).Child("package")
	dir, err := packageFs.PathExistent()
	if err != nil {
		return "", err
	}

	tarball := filepath.Join(dir, fmt.Sprintf("%s-%s.tar.zst", pkg.Id.Name(), pkg.Id.Version()))
	f, err := os.CreateTemp(dir, ".tmp-package-")
	if err != nil {
		return "", fmt.Errorf("failed to create package archive: %w", err)
	}
	defer os.Remove(f.Name())

	if err := registry.CreateArchive(pkg, f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write package archive: %w", err)
	}
	if err := os.Rename(f.Name(), tarball); err != nil {
		return "", fmt.Errorf("failed to write package archive: %w", err)
	}
	return tarball, nil
}

// Publish packages a workspace member and uploads it to the registry
// behind indexId.
func Publish(ctx context.Context, pkg *core.Package, ws *core.Workspace, cache *source.Cache, indexId core.SourceId, u *ui.Ui) error {
	tarball, err := PackageTarball(pkg, ws, u)
	if err != nil {
		return err
	}

	client, err := cache.Sources().RegistryClient(indexId)
	if err != nil {
		return err
	}
	if !client.SupportsPublish() {
		return fmt.Errorf("registry %s does not support publishing", indexId)
	}

	u.PrintStatus("Publishing", fmt.Sprintf("%s v%s to %s", pkg.Id.Name(), pkg.Id.Version(), indexId.PrettyURL()))
	if err := client.Publish(ctx, pkg, tarball); err != nil {
		return fmt.Errorf("failed to publish %s: %w", pkg.Id, err)
	}
	return nil
}
