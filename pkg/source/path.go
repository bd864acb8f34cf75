// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"scarb/pkg/core"
)

// PathSource serves packages from a local directory. The directory may
// be a single package or a workspace root; all packages found are
// candidates. Downloads are no-ops.
type PathSource struct {
	root     string
	sourceId core.SourceId

	once sync.Once
	pkgs []*core.Package
	err  error
}

// NewPathSource creates a source for the directory containing a
// Scarb.toml. The manifest is read lazily on first query.
func NewPathSource(root string, sourceId core.SourceId) *PathSource {
	return &PathSource{root: root, sourceId: sourceId}
}

// newLoadedPathSource creates a path source pre-populated with already
// loaded packages, avoiding a re-parse of their manifests.
func newLoadedPathSource(root string, sourceId core.SourceId, pkgs []*core.Package) *PathSource {
	src := &PathSource{root: root, sourceId: sourceId}
	src.once.Do(func() { src.pkgs = pkgs })
	return src
}

func (s *PathSource) Query(_ context.Context, dep core.ManifestDependency) ([]*core.Summary, error) {
	pkgs, err := s.packages()
	if err != nil {
		return nil, err
	}
	return matching(dep, pkgs), nil
}

func (s *PathSource) Download(_ context.Context, id core.PackageId) (*core.Package, error) {
	pkgs, err := s.packages()
	if err != nil {
		return nil, err
	}
	for _, pkg := range pkgs {
		if pkg.Id == id {
			return pkg, nil
		}
	}
	return nil, fmt.Errorf("package %s not found in path source %s", id, s.root)
}

func (s *PathSource) packages() ([]*core.Package, error) {
	s.once.Do(func() {
		s.pkgs, s.err = loadPackages(filepath.Join(s.root, core.ManifestFileName), s.sourceId)
		if s.err != nil {
			s.err = fmt.Errorf("failed to load path source %s: %w", s.root, s.err)
		}
	})
	return s.pkgs, s.err
}
