// SPDX-License-Identifier: MPL-2.0

package core

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Workspace is a set of member packages sharing a root manifest, a target
// directory, a lockfile and a patch map.
type Workspace struct {
	// RootManifestPath is the Scarb.toml that declared `[workspace]` (or
	// the sole package manifest for single-package workspaces).
	RootManifestPath string
	// Members are the workspace packages, sorted by name.
	Members []*Package
	// Patches is the `[patch.<source>]` rewrite table.
	Patches *PatchMap
	// Scripts are the root-level `[scripts]` entries. Members may define
	// their own; the root's take precedence when running from the root.
	Scripts map[string]string
	// Profiles are user-defined profiles declared in the root manifest.
	Profiles []Profile
	// TargetDirOverride, when non-empty, replaces `<root>/target`
	// (SCARB_TARGET_DIR or --target-dir).
	TargetDirOverride string
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string {
	return filepath.Dir(w.RootManifestPath)
}

// TargetDirPath returns the shared target directory path. The directory is
// not created; that is the Filesystem layer's job.
func (w *Workspace) TargetDirPath() string {
	if w.TargetDirOverride != "" {
		return w.TargetDirOverride
	}
	return filepath.Join(w.Root(), "target")
}

// LockFileName is the canonical lockfile name within a workspace root.
const LockFileName = "Scarb.lock"

// LockfilePath returns the shared lockfile path.
func (w *Workspace) LockfilePath() string {
	return filepath.Join(w.Root(), LockFileName)
}

// Member returns the member package with the given name.
func (w *Workspace) Member(name PackageName) (*Package, bool) {
	for _, pkg := range w.Members {
		if pkg.Id.Name() == name {
			return pkg, true
		}
	}
	return nil, false
}

// MemberSummaries returns the resolver inputs for all members.
func (w *Workspace) MemberSummaries() []*Summary {
	out := make([]*Summary, len(w.Members))
	for i, pkg := range w.Members {
		out[i] = &pkg.Manifest.Summary
	}
	return out
}

// Profile resolves a profile name against built-ins and the workspace's
// custom profiles.
func (w *Workspace) Profile(name string) (Profile, error) {
	switch name {
	case "", "dev":
		return DevProfile(), nil
	case "release":
		return ReleaseProfile(), nil
	}
	for _, p := range w.Profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("workspace has no profile `%s`", name)
}

// SortMembers orders members by name for deterministic iteration.
func (w *Workspace) SortMembers() {
	sort.Slice(w.Members, func(i, j int) bool {
		return w.Members[i].Id.Name() < w.Members[j].Id.Name()
	})
}
