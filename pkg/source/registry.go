// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"scarb/internal/dirs"
	"scarb/internal/flock"
	"scarb/internal/fsx"
	"scarb/pkg/core"
	"scarb/pkg/registry"
)

// RegistrySource serves packages from a registry client: index records
// become candidate summaries, downloads are verified archives unpacked
// into the cache.
type RegistrySource struct {
	sourceId core.SourceId
	client   registry.Client
	srcFs    *flock.Filesystem
}

// NewRegistrySource creates a source for a local or HTTP registry.
func NewRegistrySource(sourceId core.SourceId, appDirs *dirs.AppDirs, offline bool) (*RegistrySource, error) {
	regFs := appDirs.RegistryDir()

	var client registry.Client
	var err error
	switch sourceId.Kind() {
	case core.SourceKindRegistryLocal:
		client, err = registry.NewLocalClient(sourceId)
		if err != nil {
			return nil, err
		}
	case core.SourceKindRegistryHTTP:
		client = registry.NewHTTPClient(sourceId, regFs.Child("dl").Child(sourceId.Ident()), offline)
	default:
		return nil, fmt.Errorf("%s is not a registry source", sourceId)
	}

	return &RegistrySource{
		sourceId: sourceId,
		client:   client,
		srcFs:    regFs.Child("src").Child(sourceId.Ident()),
	}, nil
}

func (s *RegistrySource) Query(ctx context.Context, dep core.ManifestDependency) ([]*core.Summary, error) {
	records, err := s.client.GetRecords(ctx, dep.Name)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []*core.Summary
	for _, record := range records {
		if !dep.VersionReq.Matches(record.Version) {
			continue
		}
		summary, err := s.summaryFromRecord(dep.Name, record)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *RegistrySource) summaryFromRecord(name core.PackageName, record registry.IndexRecord) (*core.Summary, error) {
	summary := &core.Summary{
		PackageId: core.NewPackageId(name, record.Version, s.sourceId),
		NoCore:    record.NoCore,
	}
	for _, dep := range record.Dependencies {
		depName, err := core.NewPackageName(dep.Name)
		if err != nil {
			return nil, fmt.Errorf("invalid index record for %s: %w", name, err)
		}
		req, err := core.ParseVersionReq(dep.Req)
		if err != nil {
			return nil, fmt.Errorf("invalid index record for %s: %w", name, err)
		}
		summary.Dependencies = append(summary.Dependencies, core.ManifestDependency{
			Name:            depName,
			VersionReq:      req,
			SourceId:        s.sourceId,
			Kind:            core.DepKindNormal(),
			DefaultFeatures: true,
		})
	}
	return summary, nil
}

// Download fetches the verified archive, unpacks it atomically into
// the cache and loads the package from there.
func (s *RegistrySource) Download(ctx context.Context, id core.PackageId) (*core.Package, error) {
	unpacked := filepath.Join(s.srcFs.Path(), fmt.Sprintf("%s-%s", id.Name(), id.Version()))

	if !fsx.Exists(filepath.Join(unpacked, core.ManifestFileName)) {
		archive, err := s.client.Download(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, err := s.srcFs.PathExistent(); err != nil {
			return nil, err
		}
		if err := registry.ExtractArchive(archive, unpacked); err != nil {
			return nil, fmt.Errorf("failed to unpack %s: %w", id, err)
		}
	}

	pkgs, err := loadPackages(filepath.Join(unpacked, core.ManifestFileName), s.sourceId)
	if err != nil {
		return nil, err
	}
	for _, pkg := range pkgs {
		if pkg.Id == id {
			return pkg, nil
		}
	}
	return nil, fmt.Errorf("archive of %s does not contain the expected package", id)
}

// Client exposes the underlying registry client, used by publish.
func (s *RegistrySource) Client() registry.Client { return s.client }
