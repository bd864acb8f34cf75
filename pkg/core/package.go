// SPDX-License-Identifier: MPL-2.0

package core

import "path/filepath"

// ManifestFileName is the canonical manifest file name within a package.
const ManifestFileName = "Scarb.toml"

// Package is a loaded package: an identity plus its parsed, immutable
// manifest. Packages are shared by reference between the workspace, the
// resolve and compilation units.
type Package struct {
	Id PackageId
	// ManifestPath is the absolute path to the package's Scarb.toml.
	ManifestPath string
	Manifest     *Manifest
}

// Root returns the package root directory.
func (p *Package) Root() string {
	return filepath.Dir(p.ManifestPath)
}

func (p *Package) String() string { return p.Id.String() }
