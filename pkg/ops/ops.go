// SPDX-License-Identifier: MPL-2.0

// Package ops implements the workspace operations behind the CLI
// commands: fetching and locking the dependency graph, building
// compilation units, packaging, publishing and running scripts. Each
// operation composes the lower-level packages and owns the advisory
// locking discipline around shared state.
package ops

import (
	"scarb/internal/config"
	"scarb/internal/flock"
	"scarb/internal/ui"
	"scarb/pkg/compiler"
	"scarb/pkg/core"
	"scarb/pkg/manifest"
	"scarb/pkg/source"
)

// packageCacheLock guards the per-user package cache against
// concurrent scarb processes mutating extracted sources.
const packageCacheLock = ".package-cache.lock"

// targetDirLock guards a workspace's target directory for the duration
// of a build.
const targetDirLock = ".scarb-lock"

// OpenWorkspace reads the workspace the invocation operates on.
func OpenWorkspace(cfg *config.Config) (*core.Workspace, error) {
	return manifest.ReadWorkspace(cfg.ManifestPath, cfg.TargetDirOverride)
}

// NewSourceCache wires the source backends for a workspace: local path
// sources are pre-seeded from the loaded members, the standard library
// distribution is pinned to the compiler version.
func NewSourceCache(cfg *config.Config, ws *core.Workspace) (*source.Cache, error) {
	std := source.NewStdSource("", compiler.Version)
	m := source.NewMap(cfg.Dirs, cfg.Offline, std)
	m.RegisterWorkspace(ws)
	return source.NewCache(m)
}

// FeatureSelection translates the flag triple into the planner's
// feature options.
func FeatureSelection(settings config.FeatureSettings) core.FeaturesOpts {
	opts := core.FeaturesOpts{NoDefault: settings.NoDefaultFeatures}
	switch {
	case settings.AllFeatures:
		opts.Selector = core.SelectorAllFeatures
	case len(settings.Features) > 0:
		opts.Selector = core.SelectorOnlyListed
		opts.Listed = settings.Features
	default:
		opts.Selector = core.SelectorDefaultFeatures
	}
	return opts
}

// acquire takes an advisory lock and wires the contention notice to
// the UI's "Blocking" status line.
func acquire(lock *flock.AdvisoryLock, kind flock.LockKind, u *ui.Ui) (*flock.LockGuard, error) {
	lock.OnBlock = func(description string) {
		u.PrintStatus("Blocking", "waiting for file lock on "+description)
	}
	return lock.Acquire(kind)
}
