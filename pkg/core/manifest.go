// SPDX-License-Identifier: MPL-2.0

package core

import (
	"github.com/Masterminds/semver/v3"
)

type (
	// Edition selects the language edition the package is written against.
	Edition string

	// ManifestCompilerConfig carries the `[cairo]` compiler knobs of a
	// manifest. These flow verbatim into compilation units and their
	// fingerprints.
	ManifestCompilerConfig struct {
		// SierraReplaceIds replaces numeric ids with human-readable ones in
		// emitted Sierra.
		SierraReplaceIds bool
		// EnableGas controls the `#[cfg(gas: ...)]` configuration and gas
		// metering; disabling it is required for some proof workflows.
		EnableGas bool
		// InliningStrategy is passed through to the compiler (`default`,
		// `avoid`, or a numeric weight threshold).
		InliningStrategy string
		// AllowWarnings keeps builds green in the presence of warnings.
		AllowWarnings bool
	}

	// Summary is the subset of a manifest the resolver operates on.
	Summary struct {
		PackageId    PackageId
		Dependencies []ManifestDependency
		// NoCore suppresses the implicit dependency on the `core` package.
		// Only the standard library itself sets this.
		NoCore bool
	}

	// Manifest is the full parsed content of a Scarb.toml, immutable after
	// parse.
	Manifest struct {
		Summary  Summary
		Targets  []Target
		Edition  Edition
		Features FeaturesManifest
		// Scripts maps script names to shell command lines.
		Scripts map[string]string
		// Profiles lists user-defined profiles declared by this package.
		Profiles []Profile
		// CompilerConfig is the effective `[cairo]` section.
		CompilerConfig ManifestCompilerConfig
		// Metadata preserves `[package.metadata]` verbatim for tooling.
		Metadata map[string]any
		// Authors, Description and friends are carried for publishing.
		Authors     []string
		Description string
		License     string
		Repository  string
	}
)

// Supported editions, newest last.
const (
	Edition202301 Edition = "2023_01"
	Edition202310 Edition = "2023_10"
	Edition202311 Edition = "2023_11"
	Edition202407 Edition = "2024_07"

	// DefaultEdition is assumed when a manifest does not declare one.
	DefaultEdition = Edition202301

	// LatestEdition is used for newly generated packages.
	LatestEdition = Edition202407
)

// KnownEdition reports whether e is an edition this build understands.
func KnownEdition(e Edition) bool {
	switch e {
	case Edition202301, Edition202310, Edition202311, Edition202407:
		return true
	}
	return false
}

// DefaultCompilerConfig returns the compiler configuration assumed when the
// manifest has no `[cairo]` section.
func DefaultCompilerConfig(profile Profile) ManifestCompilerConfig {
	return ManifestCompilerConfig{
		SierraReplaceIds: !profile.IsRelease(),
		EnableGas:        true,
		InliningStrategy: "default",
	}
}

// FullDependencies returns the summary's declared dependencies plus the
// implicit dependency on `core`, pinned to the exact compiler version,
// unless the package opted out with `no-core`.
func (s *Summary) FullDependencies(compilerVersion *semver.Version) []ManifestDependency {
	if s.NoCore {
		return s.Dependencies
	}
	for _, dep := range s.Dependencies {
		if dep.Name == CorePackageName {
			return s.Dependencies
		}
	}
	coreDep := ManifestDependency{
		Name:            CorePackageName,
		VersionReq:      ExactVersionReq(compilerVersion),
		SourceId:        StdSourceId(),
		Kind:            DepKindNormal(),
		DefaultFeatures: true,
	}
	deps := make([]ManifestDependency, 0, len(s.Dependencies)+1)
	deps = append(deps, s.Dependencies...)
	deps = append(deps, coreDep)
	return deps
}

// TargetsOfKind returns the manifest targets of the given kind.
func (m *Manifest) TargetsOfKind(kind TargetKind) []Target {
	var out []Target
	for _, t := range m.Targets {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// IsCairoPlugin reports whether the package is a procedural macro.
func (m *Manifest) IsCairoPlugin() bool {
	for _, t := range m.Targets {
		if t.Kind == TargetKindCairoPlugin {
			return true
		}
	}
	return false
}
