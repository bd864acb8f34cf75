// SPDX-License-Identifier: MPL-2.0

package ops

import (
	"context"
	"os"

	"scarb/internal/config"
	"scarb/internal/flock"
	"scarb/pkg/compiler"
	"scarb/pkg/core"
	"scarb/pkg/procmacro"
	"scarb/pkg/source"
)

// CompilerPathEnv overrides the Cairo compiler front-end executable.
const CompilerPathEnv = "SCARB_CAIRO_COMPILER"

// defaultCompilerBinary is the compiler front-end looked up on PATH
// when no override is set.
const defaultCompilerBinary = "cairo-compiler"

// BuildOpts tunes the build operation.
type BuildOpts struct {
	// WithTests additionally builds the test targets of every member.
	WithTests bool
	// Features is the user's feature selection.
	Features core.FeaturesOpts
}

// Build fetches the dependency graph, plans compilation units and
// compiles every stale one. The target directory is held exclusively
// for the duration.
func Build(ctx context.Context, ws *core.Workspace, cache *source.Cache, cfg *config.Config, opts BuildOpts) error {
	fetched, err := Fetch(ctx, ws, cache, cfg.Ui, FetchOpts{})
	if err != nil {
		return err
	}

	profile, err := ws.Profile(cfg.Profile)
	if err != nil {
		return err
	}

	units, err := compiler.Plan(ws.Members, fetched.Resolve, fetched.Packages, compiler.PlanOpts{
		Profile:   profile,
		Features:  opts.Features,
		WithTests: opts.WithTests,
	})
	if err != nil {
		return err
	}

	targetFs := flock.NewOutputFilesystem(ws.TargetDirPath())
	guard, err := acquire(targetFs.AdvisoryLock(targetDirLock, "build directory"), flock.LockExclusive, cfg.Ui)
	if err != nil {
		return err
	}
	defer guard.Release()

	driver := compiler.NewDriver(
		targetFs,
		compiler.NewExecCompiler(compilerBinary()),
		procmacro.NewNativeBuilder(cfg.Dirs.PluginsDir()),
		cfg.Ui,
		compiler.Version,
	)
	return driver.Build(ctx, units)
}

func compilerBinary() string {
	if bin := os.Getenv(CompilerPathEnv); bin != "" {
		return bin
	}
	return defaultCompilerBinary
}
