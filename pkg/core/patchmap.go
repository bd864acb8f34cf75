// SPDX-License-Identifier: MPL-2.0

package core

import "log/slog"

// PatchMap rewrites dependencies before source resolution. Keys are
// canonical source URLs (from `[patch.<source>]` tables); each maps package
// names to their replacement dependency declarations.
type PatchMap struct {
	patches map[string]map[PackageName]ManifestDependency
}

// NewPatchMap returns an empty patch map.
func NewPatchMap() *PatchMap {
	return &PatchMap{patches: make(map[string]map[PackageName]ManifestDependency)}
}

// Insert registers a patch for packages coming from the source with the
// given canonical URL.
func (pm *PatchMap) Insert(canonicalURL string, dep ManifestDependency) {
	byName := pm.patches[canonicalURL]
	if byName == nil {
		byName = make(map[PackageName]ManifestDependency)
		pm.patches[canonicalURL] = byName
	}
	byName[dep.Name] = dep
}

// Lookup rewrites dep to its patched form if a patch matches its source and
// name, otherwise returns dep unchanged.
func (pm *PatchMap) Lookup(dep ManifestDependency) ManifestDependency {
	byName, ok := pm.patches[dep.SourceId.CanonicalURL()]
	if !ok {
		return dep
	}
	patch, ok := byName[dep.Name]
	if !ok {
		return dep
	}
	slog.Debug("patching dependency",
		"name", dep.Name,
		"from", dep.SourceId.PrettyURL(),
		"to", patch.SourceId.PrettyURL())
	// The patch replaces the requirement and source but preserves the
	// dependency kind of the original declaration.
	patch.Kind = dep.Kind
	return patch
}

// Len returns the number of patched (source, name) pairs.
func (pm *PatchMap) Len() int {
	n := 0
	for _, byName := range pm.patches {
		n += len(byName)
	}
	return n
}
