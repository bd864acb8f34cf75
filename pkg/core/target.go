// SPDX-License-Identifier: MPL-2.0

package core

import (
	"fmt"
	"path/filepath"
)

// TargetKind names a buildable output kind of a package. Beyond the
// built-in kinds, external kinds are allowed and handled by extension
// subcommands.
type TargetKind string

const (
	// TargetKindLib is a Sierra library.
	TargetKindLib TargetKind = "lib"
	// TargetKindExecutable is a standalone executable program.
	TargetKindExecutable TargetKind = "executable"
	// TargetKindStarknetContract is a set of Starknet contract classes.
	TargetKindStarknetContract TargetKind = "starknet-contract"
	// TargetKindTest is a test binary.
	TargetKindTest TargetKind = "test"
	// TargetKindCairoPlugin is a procedural macro shipped as a native
	// dynamic library. It is compiled by the native toolchain, not the
	// Cairo compiler, and cannot coexist with any other target.
	TargetKindCairoPlugin TargetKind = "cairo-plugin"
)

func (k TargetKind) String() string { return string(k) }

// IsBuiltin reports whether the kind is handled by scarb itself rather than
// an extension subcommand.
func (k TargetKind) IsBuiltin() bool {
	switch k {
	case TargetKindLib, TargetKindExecutable, TargetKindStarknetContract,
		TargetKindTest, TargetKindCairoPlugin:
		return true
	}
	return false
}

// Target is one buildable output of a package.
type Target struct {
	Kind TargetKind
	// Name defaults to the package name.
	Name string
	// SourcePath is the crate root, relative to the package root.
	// Defaults to src/lib.cairo.
	SourcePath string
	// Params carries kind-specific configuration from the manifest,
	// passed through to the compiler backend untouched.
	Params map[string]any
	// GroupId joins targets that should be compiled together in a single
	// unit (multiple test files of one package). Empty means no group.
	GroupId string
}

// DefaultSourcePath is the crate root used when a target does not override it.
const DefaultSourcePath = "src/lib.cairo"

// NewTarget fills in defaults for name and source path.
func NewTarget(kind TargetKind, pkgName PackageName) Target {
	return Target{
		Kind:       kind,
		Name:       string(pkgName),
		SourcePath: DefaultSourcePath,
	}
}

// SourceRoot resolves the crate root against the package root directory.
func (t Target) SourceRoot(pkgRoot string) string {
	sp := t.SourcePath
	if sp == "" {
		sp = DefaultSourcePath
	}
	if filepath.IsAbs(sp) {
		return sp
	}
	return filepath.Join(pkgRoot, filepath.FromSlash(sp))
}

func (t Target) String() string {
	return fmt.Sprintf("%s(%s)", t.Kind, t.Name)
}

// CheckTargets enforces the cross-cutting target invariant: a cairo-plugin
// target must be the only target of its package.
func CheckTargets(targets []Target) error {
	hasPlugin := false
	for _, t := range targets {
		if t.Kind == TargetKindCairoPlugin {
			hasPlugin = true
		}
	}
	if hasPlugin && len(targets) > 1 {
		return fmt.Errorf("target `%s` cannot be mixed with other targets", TargetKindCairoPlugin)
	}
	return nil
}
