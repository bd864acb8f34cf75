// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Masterminds/semver/v3"

	"scarb/pkg/core"
)

// StdSource serves the packages distributed with the compiler: `core`
// and the `starknet` plugin library. They are pinned to the compiler
// version and live in a `corelib` tree next to the executable.
type StdSource struct {
	root            string
	compilerVersion *semver.Version

	once sync.Once
	pkgs []*core.Package
	err  error
}

// NewStdSource creates the standard library source for a distribution
// rooted at root. Empty root means "locate next to the executable".
func NewStdSource(root string, compilerVersion *semver.Version) *StdSource {
	return &StdSource{root: root, compilerVersion: compilerVersion}
}

func (s *StdSource) Query(ctx context.Context, dep core.ManifestDependency) ([]*core.Summary, error) {
	pkgs, err := s.packages()
	if err != nil {
		return nil, err
	}
	return matching(dep, pkgs), nil
}

func (s *StdSource) Download(_ context.Context, id core.PackageId) (*core.Package, error) {
	pkgs, err := s.packages()
	if err != nil {
		return nil, err
	}
	for _, pkg := range pkgs {
		if pkg.Id == id {
			return pkg, nil
		}
	}
	return nil, fmt.Errorf("package %s not found in standard library distribution", id)
}

func (s *StdSource) packages() ([]*core.Package, error) {
	s.once.Do(func() {
		root := s.root
		if root == "" {
			exe, err := os.Executable()
			if err != nil {
				s.err = fmt.Errorf("failed to locate standard library: %w", err)
				return
			}
			root = filepath.Join(filepath.Dir(exe), "corelib")
		}

		for _, name := range []core.PackageName{core.CorePackageName, core.StarknetPackageName} {
			manifestPath := filepath.Join(root, string(name), core.ManifestFileName)
			if _, err := os.Stat(manifestPath); err != nil {
				if name == core.CorePackageName {
					s.err = fmt.Errorf("standard library not found at %s", root)
					return
				}
				continue
			}
			pkgs, err := loadPackages(manifestPath, core.StdSourceId())
			if err != nil {
				s.err = fmt.Errorf("failed to load standard library package %s: %w", name, err)
				return
			}
			s.pkgs = append(s.pkgs, pkgs...)
		}
	})
	return s.pkgs, s.err
}
