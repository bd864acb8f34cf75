// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"

	"scarb/internal/flock"
	"scarb/internal/fsx"
	"scarb/internal/ui"
)

type (
	// PluginBuilder materializes proc-macro shared libraries. Implemented
	// by the procmacro package; abstract here so the driver does not
	// depend on the FFI layer.
	PluginBuilder interface {
		// Fresh reports whether the plugin's shared library already
		// matches the unit's current sources.
		Fresh(unit *ProcMacroUnit) bool

		// EnsureBuilt builds the plugin's shared library if it is missing
		// or stale and returns its path.
		EnsureBuilt(ctx context.Context, unit *ProcMacroUnit) (string, error)
	}

	// Driver walks units in planner order, skips fresh ones and compiles
	// the rest.
	Driver struct {
		targetFs        *flock.Filesystem
		compiler        CairoCompiler
		plugins         PluginBuilder
		ui              *ui.Ui
		compilerVersion *semver.Version
	}
)

// NewDriver assembles a build driver. plugins may be nil when no
// proc-macro units can occur.
func NewDriver(targetFs *flock.Filesystem, compiler CairoCompiler, plugins PluginBuilder, u *ui.Ui, compilerVersion *semver.Version) *Driver {
	return &Driver{
		targetFs:        targetFs,
		compiler:        compiler,
		plugins:         plugins,
		ui:              u,
		compilerVersion: compilerVersion,
	}
}

// Build compiles every stale unit, in order. The first failing unit
// aborts the build.
func (d *Driver) Build(ctx context.Context, units []Unit) error {
	start := time.Now()
	var profile string

	for _, unit := range units {
		switch u := unit.(type) {
		case *ProcMacroUnit:
			profile = u.Profile.Name
			if err := d.buildPlugin(ctx, u); err != nil {
				return err
			}
		case *CairoUnit:
			profile = u.Profile.Name
			if err := d.buildCairo(ctx, u); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown unit type %T", unit)
		}
	}

	elapsed := time.Since(start).Round(time.Millisecond)
	d.ui.PrintStatus("Finished", fmt.Sprintf("`%s` target(s) in %s", profile, elapsed))
	return nil
}

func (d *Driver) buildPlugin(ctx context.Context, unit *ProcMacroUnit) error {
	if d.plugins == nil {
		return fmt.Errorf("cannot build %s: procedural macros are not supported in this configuration", unit.Main().Id)
	}
	if d.plugins.Fresh(unit) {
		d.ui.VerboseStatus("Fresh", unit.String())
		return nil
	}
	d.ui.PrintStatus("Compiling", fmt.Sprintf("%s v%s (%s)",
		unit.Main().Id.Name(), unit.Main().Id.Version(), unit.Main().ManifestPath))
	if _, err := d.plugins.EnsureBuilt(ctx, unit); err != nil {
		return fmt.Errorf("failed to build procedural macro %s: %w", unit.Main().Id, err)
	}
	return nil
}

func (d *Driver) buildCairo(ctx context.Context, unit *CairoUnit) error {
	profileFs := d.targetFs.Child(unit.Profile.TargetSubdir())
	profileDir, err := profileFs.PathExistent()
	if err != nil {
		return err
	}

	fingerprint, err := Fingerprint(unit, d.compilerVersion)
	if err != nil {
		return err
	}
	fpPath := d.fingerprintPath(profileDir, unit)
	if d.isFresh(unit, profileDir, fpPath, fingerprint) {
		d.ui.VerboseStatus("Fresh", unit.String())
		return nil
	}

	d.ui.PrintStatus("Compiling", fmt.Sprintf("%s v%s (%s)",
		unit.Main().Id.Name(), unit.Main().Id.Version(), unit.Main().ManifestPath))

	err = d.compiler.Compile(ctx, unit, profileDir, func(diag Diagnostic) {
		// Compiler diagnostics pass through verbatim.
		if diag.Severity == SeverityError {
			d.ui.Error(diag.Message)
			return
		}
		d.ui.Warn(diag.Message)
	})
	if err != nil {
		return fmt.Errorf("failed to compile %s: %w", unit, err)
	}

	for _, artifact := range unit.Artifacts(profileDir) {
		if !fsx.Exists(artifact) {
			return fmt.Errorf("compiler did not produce expected artifact %s", artifact)
		}
	}
	if err := fsx.CreateDirAll(filepath.Dir(fpPath)); err != nil {
		return err
	}
	if err := fsx.WriteFileAtomic(fpPath, []byte(fingerprint), 0o644); err != nil {
		return err
	}
	return d.writeCoreFingerprint(unit, profileDir)
}

// isFresh reports whether the stored fingerprint matches and every
// artifact still exists.
func (d *Driver) isFresh(unit *CairoUnit, profileDir, fpPath, fingerprint string) bool {
	stored, err := os.ReadFile(fpPath)
	if err != nil || string(stored) != fingerprint {
		return false
	}
	for _, artifact := range unit.Artifacts(profileDir) {
		if !fsx.Exists(artifact) {
			return false
		}
	}
	return true
}

func (d *Driver) fingerprintPath(profileDir string, unit *CairoUnit) string {
	id := unit.Main().Id
	stem := fmt.Sprintf("%s-%s.hash", id.Name(), id.Version())
	return filepath.Join(profileDir, unit.Id(), "fingerprint", stem)
}

// writeCoreFingerprint stores the standard library fingerprint in its
// own location, so a compiler upgrade invalidates `core` independently
// of the workspace's units.
func (d *Driver) writeCoreFingerprint(unit *CairoUnit, profileDir string) error {
	fp, err := CoreFingerprint(unit, d.compilerVersion)
	if err != nil || fp == "" {
		return err
	}
	path := filepath.Join(profileDir, "core", "fingerprint", "core.hash")
	if err := fsx.CreateDirAll(filepath.Dir(path)); err != nil {
		return err
	}
	return fsx.WriteFileAtomic(path, []byte(fp), 0o644)
}
