// SPDX-License-Identifier: MPL-2.0

// Package compiler plans and drives the build: it turns a resolved
// dependency graph into compilation units, fingerprints them for
// freshness checks, and runs the Cairo compiler front-end over the
// stale ones.
package compiler

import (
	"fmt"
	"path/filepath"

	"scarb/pkg/core"
)

type (
	// Unit is one self-contained build task produced by the planner.
	Unit interface {
		// Id is a stable identifier unique within a build plan, used in
		// fingerprint paths and status lines.
		Id() string
		// Main is the package this unit builds.
		Main() *core.Package
	}

	unitBase struct {
		main *core.Package
	}

	// Component is one package fed to the compiler as part of a
	// CairoUnit: its crate root and the configuration it is compiled
	// under.
	Component struct {
		Package *core.Package
		// Name is the crate name the component is visible as.
		Name string
		// SourceRoot is the absolute path of the crate root file.
		SourceRoot string
		Edition    core.Edition
		// Features are the enabled feature names, sorted.
		Features []string
	}

	// CairoUnit compiles a set of Cairo components together into the
	// artifacts of one target of the main package.
	CairoUnit struct {
		unitBase
		Target  core.Target
		Profile core.Profile
		// Components holds the main component first and `core` second
		// when present; the rest follow in dependency discovery order.
		Components []Component
		// Plugins are the proc-macro packages whose expansions this
		// unit needs, in build order.
		Plugins []core.PackageId
		// Config carries the effective `[cairo]` knobs of the main
		// package.
		Config core.ManifestCompilerConfig
		// Cfg is the conditional-compilation item set.
		Cfg CfgSet
	}

	// ProcMacroUnit builds a procedural macro package into a native
	// shared library.
	ProcMacroUnit struct {
		unitBase
		Profile core.Profile
	}
)

func (u unitBase) Main() *core.Package { return u.main }

func (u *CairoUnit) Id() string {
	return fmt.Sprintf("%s-%s", u.main.Id.Name(), u.Target.Kind)
}

func (u *ProcMacroUnit) Id() string {
	return fmt.Sprintf("%s-proc-macro", u.main.Id.Name())
}

func (u *ProcMacroUnit) String() string {
	return fmt.Sprintf("%s v%s (proc-macro)", u.main.Id.Name(), u.main.Id.Version())
}

// NewProcMacroUnit creates a proc-macro unit for the given package.
func NewProcMacroUnit(main *core.Package, profile core.Profile) *ProcMacroUnit {
	return &ProcMacroUnit{unitBase: unitBase{main: main}, Profile: profile}
}

func (u *CairoUnit) String() string {
	return fmt.Sprintf("%s v%s (%s)", u.main.Id.Name(), u.main.Id.Version(), u.Target.Kind)
}

// MainComponent returns the component of the main package.
func (u *CairoUnit) MainComponent() Component { return u.Components[0] }

// HasCore reports whether the standard library is among the components.
func (u *CairoUnit) HasCore() bool {
	for _, c := range u.Components {
		if c.Package.Id.IsCore() {
			return true
		}
	}
	return false
}

// Artifacts returns the file paths the compiler is expected to produce
// for this unit under the profile directory.
func (u *CairoUnit) Artifacts(profileDir string) []string {
	name := u.Target.Name
	switch u.Target.Kind {
	case core.TargetKindExecutable:
		return []string{filepath.Join(profileDir, name+".executable.json")}
	case core.TargetKindStarknetContract:
		// Individual contract class files are enumerated by the
		// artifacts index the compiler writes alongside them.
		return []string{filepath.Join(profileDir, name+".starknet_artifacts.json")}
	case core.TargetKindTest:
		return []string{filepath.Join(profileDir, name+".test.json")}
	default:
		return []string{filepath.Join(profileDir, name+".sierra.json")}
	}
}
