// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"scarb/pkg/core"
)

// ReadWorkspace loads the workspace governing manifestPath. When the
// manifest is itself a workspace root it is loaded directly; otherwise
// ancestor directories are searched for a root that lists it as a
// member; a manifest with no such root forms a single-package
// workspace of its own.
func ReadWorkspace(manifestPath string, targetDirOverride string) (*core.Workspace, error) {
	manifestPath, err := filepath.Abs(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}

	doc, err := ParseFile(manifestPath)
	if err != nil {
		return nil, err
	}

	rootPath, rootDoc := manifestPath, doc
	if !doc.IsWorkspaceRoot() {
		foundPath, foundDoc, err := findWorkspaceRoot(manifestPath)
		if err != nil {
			return nil, err
		}
		if foundPath != "" {
			rootPath, rootDoc = foundPath, foundDoc
		}
	}

	ws := &core.Workspace{
		RootManifestPath:  rootPath,
		Patches:           core.NewPatchMap(),
		Scripts:           rootDoc.Scripts,
		TargetDirOverride: targetDirOverride,
	}

	inherit, err := workspaceInheritables(rootPath, rootDoc)
	if err != nil {
		return nil, err
	}

	memberPaths, err := memberManifests(rootPath, rootDoc)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(memberPaths))
	for _, path := range memberPaths {
		if seen[path] {
			continue
		}
		seen[path] = true
		memberDoc := rootDoc
		if path != rootPath {
			memberDoc, err = ParseFile(path)
			if err != nil {
				return nil, err
			}
		}
		if memberDoc.Package == nil {
			// A pure [workspace] root without [package] is not a member.
			continue
		}
		pkg, err := memberDoc.ToPackage(path, inherit)
		if err != nil {
			return nil, err
		}
		ws.Members = append(ws.Members, pkg)
	}
	if len(ws.Members) == 0 {
		return nil, fmt.Errorf("workspace %s has no members", rootPath)
	}
	ws.SortMembers()

	if err := loadPatches(ws, rootPath, rootDoc, inherit); err != nil {
		return nil, err
	}
	if err := loadProfiles(ws, rootDoc); err != nil {
		return nil, err
	}

	return ws, nil
}

// findWorkspaceRoot walks ancestor directories for a workspace root
// listing manifestPath as a member. Both return values are empty when
// no governing root exists.
func findWorkspaceRoot(manifestPath string) (string, *TomlManifest, error) {
	for dir := filepath.Dir(filepath.Dir(manifestPath)); ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, core.ManifestFileName)
		if doc, err := ParseFile(candidate); err == nil && doc.IsWorkspaceRoot() {
			members, err := memberManifests(candidate, doc)
			if err != nil {
				return "", nil, err
			}
			for _, m := range members {
				if m == manifestPath {
					return candidate, doc, nil
				}
			}
		}
		if filepath.Dir(dir) == dir {
			return "", nil, nil
		}
	}
}

// memberManifests expands the member globs of a root manifest into
// absolute manifest paths, sorted. The root package itself, when
// present, is always a member.
func memberManifests(rootPath string, rootDoc *TomlManifest) ([]string, error) {
	root := filepath.Dir(rootPath)
	var out []string
	if rootDoc.Package != nil {
		out = append(out, rootPath)
	}
	if rootDoc.Workspace == nil {
		return out, nil
	}
	for _, pattern := range rootDoc.Workspace.Members {
		matches, err := filepath.Glob(filepath.Join(root, pattern, core.ManifestFileName))
		if err != nil {
			return nil, fmt.Errorf("invalid workspace member pattern %q: %w", pattern, err)
		}
		if matches == nil && !strings.ContainsAny(pattern, "*?[") {
			return nil, fmt.Errorf("workspace member %s not found under %s", pattern, root)
		}
		out = append(out, matches...)
	}
	sort.Strings(out)
	return out, nil
}

func workspaceInheritables(rootPath string, rootDoc *TomlManifest) (*inheritables, error) {
	inherit := &inheritables{dependencies: make(map[core.PackageName]core.ManifestDependency)}
	if rootDoc.Workspace == nil {
		return inherit, nil
	}
	root := filepath.Dir(rootPath)
	for name, value := range rootDoc.Workspace.Dependencies {
		dep, err := interpretDependency(name, value, root, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: [workspace.dependencies]: %w", rootPath, err)
		}
		inherit.dependencies[dep.Name] = dep
	}
	return inherit, nil
}

// loadPatches reads the `[patch.<source>]` tables. The table key is a
// source URL; the shorthand key `scarbs-xyz` names the default registry.
func loadPatches(ws *core.Workspace, rootPath string, rootDoc *TomlManifest, inherit *inheritables) error {
	root := filepath.Dir(rootPath)
	for key, entries := range rootDoc.Patch {
		canonical, err := canonicalPatchKey(key)
		if err != nil {
			return fmt.Errorf("%s: [patch.%s]: %w", rootPath, key, err)
		}
		for name, value := range entries {
			dep, err := interpretDependency(name, value, root, inherit)
			if err != nil {
				return fmt.Errorf("%s: [patch.%s]: %w", rootPath, key, err)
			}
			ws.Patches.Insert(canonical, dep)
		}
	}
	return nil
}

func canonicalPatchKey(key string) (string, error) {
	if key == "scarbs-xyz" || key == "registry" {
		return core.DefaultRegistrySourceId().CanonicalURL(), nil
	}
	u, err := url.Parse(key)
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("patch key must be a source URL, found %q", key)
	}
	return strings.TrimSuffix(key, "/"), nil
}

func loadProfiles(ws *core.Workspace, rootDoc *TomlManifest) error {
	profiles, err := rootDoc.profiles()
	if err != nil {
		return err
	}
	ws.Profiles = profiles
	return nil
}
