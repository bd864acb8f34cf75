// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"

	"scarb/pkg/core"
)

// Parse decodes a Scarb.toml document. Unknown keys outside the
// metadata/tool escape hatches are an error.
func Parse(data []byte) (*TomlManifest, error) {
	var m TomlManifest
	dec := toml.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown keys in manifest:\n%s", strict.String())
		}
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// ParseFile reads and decodes the manifest at path.
func ParseFile(path string) (*TomlManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// inheritables are root-manifest values members may reference with
// `{ workspace = true }`.
type inheritables struct {
	// dependencies keyed by name, already interpreted relative to the
	// workspace root.
	dependencies map[core.PackageName]core.ManifestDependency
}

// ToPackage converts a parsed document into a loaded package. Dependency
// paths are resolved relative to the manifest's directory; ws supplies
// `{ workspace = true }` values and may be nil outside a workspace.
func (m *TomlManifest) ToPackage(manifestPath string, ws *inheritables) (*core.Package, error) {
	if m.Package == nil {
		return nil, fmt.Errorf("%s: missing [package] section", manifestPath)
	}

	name, err := core.NewPackageName(m.Package.Name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifestPath, err)
	}
	version, err := semver.StrictNewVersion(m.Package.Version)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid package version %q: %w", manifestPath, m.Package.Version, err)
	}

	root := filepath.Dir(manifestPath)
	sourceId, err := core.NewPathSourceId(root)
	if err != nil {
		return nil, err
	}
	id := core.NewPackageId(name, version, sourceId)

	edition := core.DefaultEdition
	if m.Package.Edition != "" {
		edition = core.Edition(m.Package.Edition)
		if !core.KnownEdition(edition) {
			return nil, fmt.Errorf("%s: unknown edition %q", manifestPath, m.Package.Edition)
		}
	}

	deps, err := m.dependencies(root, ws)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifestPath, err)
	}

	targets, err := m.targets(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifestPath, err)
	}
	if err := core.CheckTargets(targets); err != nil {
		return nil, fmt.Errorf("%s: %w", manifestPath, err)
	}

	profiles, err := m.profiles()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifestPath, err)
	}

	manifest := &core.Manifest{
		Summary: core.Summary{
			PackageId:    id,
			Dependencies: deps,
			NoCore:       m.Package.NoCore,
		},
		Targets:        targets,
		Edition:        edition,
		Features:       core.FeaturesManifest(m.Features),
		Scripts:        m.Scripts,
		Profiles:       profiles,
		CompilerConfig: m.compilerConfig(),
		Metadata:       m.Package.Metadata,
		Authors:        m.Package.Authors,
		Description:    m.Package.Description,
		License:        m.Package.License,
		Repository:     m.Package.Repository,
	}

	return &core.Package{Id: id, ManifestPath: manifestPath, Manifest: manifest}, nil
}

func (m *TomlManifest) dependencies(root string, ws *inheritables) ([]core.ManifestDependency, error) {
	var out []core.ManifestDependency
	for _, section := range []struct {
		raw  map[string]any
		kind core.DepKind
	}{
		{m.Dependencies, core.DepKindNormal()},
		{m.DevDependencies, core.DepKindDev()},
	} {
		names := make([]string, 0, len(section.raw))
		for n := range section.raw {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			dep, err := interpretDependency(n, section.raw[n], root, ws)
			if err != nil {
				return nil, err
			}
			dep.Kind = section.kind
			out = append(out, dep)
		}
	}
	return out, nil
}

// interpretDependency handles both dependency forms: the version string
// shorthand and the detailed table.
func interpretDependency(rawName string, value any, root string, ws *inheritables) (core.ManifestDependency, error) {
	name, err := core.NewPackageName(rawName)
	if err != nil {
		return core.ManifestDependency{}, fmt.Errorf("dependency %s: %w", rawName, err)
	}

	dep := core.ManifestDependency{
		Name:            name,
		VersionReq:      core.AnyVersionReq(),
		SourceId:        core.DefaultRegistrySourceId(),
		DefaultFeatures: true,
	}

	switch v := value.(type) {
	case string:
		req, err := core.ParseVersionReq(v)
		if err != nil {
			return core.ManifestDependency{}, fmt.Errorf("dependency %s: %w", rawName, err)
		}
		dep.VersionReq = req
		return dep, nil
	case map[string]any:
		return interpretDependencyTable(dep, rawName, v, root, ws)
	default:
		return core.ManifestDependency{}, fmt.Errorf(
			"dependency %s: expected a version string or a detail table, found %T", rawName, value)
	}
}

var dependencyTableKeys = map[string]bool{
	"version": true, "path": true, "git": true,
	"branch": true, "tag": true, "rev": true,
	"registry": true, "features": true, "default-features": true,
	"workspace": true,
}

func interpretDependencyTable(dep core.ManifestDependency, rawName string, table map[string]any, root string, ws *inheritables) (core.ManifestDependency, error) {
	for key := range table {
		if !dependencyTableKeys[key] {
			return core.ManifestDependency{}, fmt.Errorf("dependency %s: unknown key %q", rawName, key)
		}
	}

	if inherit, _ := table["workspace"].(bool); inherit {
		if ws == nil {
			return core.ManifestDependency{}, fmt.Errorf(
				"dependency %s: `workspace = true` outside a workspace", rawName)
		}
		inherited, ok := ws.dependencies[dep.Name]
		if !ok {
			return core.ManifestDependency{}, fmt.Errorf(
				"dependency %s: not declared in [workspace.dependencies]", rawName)
		}
		dep = inherited
		// Member tables may still narrow the feature selection.
	}

	if raw, ok := table["version"].(string); ok {
		req, err := core.ParseVersionReq(raw)
		if err != nil {
			return core.ManifestDependency{}, fmt.Errorf("dependency %s: %w", rawName, err)
		}
		dep.VersionReq = req
	}

	hasPath := table["path"] != nil
	hasGit := table["git"] != nil
	hasRegistry := table["registry"] != nil
	if (hasPath && hasGit) || (hasPath && hasRegistry) || (hasGit && hasRegistry) {
		return core.ManifestDependency{}, fmt.Errorf(
			"dependency %s: path, git and registry are mutually exclusive", rawName)
	}

	switch {
	case hasPath:
		rel, _ := table["path"].(string)
		dir := rel
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, rel)
		}
		sid, err := core.NewPathSourceId(dir)
		if err != nil {
			return core.ManifestDependency{}, fmt.Errorf("dependency %s: %w", rawName, err)
		}
		dep.SourceId = sid
	case hasGit:
		repo, _ := table["git"].(string)
		ref, err := gitRefFromTable(rawName, table)
		if err != nil {
			return core.ManifestDependency{}, err
		}
		sid, err := core.NewGitSourceId(repo, ref)
		if err != nil {
			return core.ManifestDependency{}, fmt.Errorf("dependency %s: %w", rawName, err)
		}
		dep.SourceId = sid
	case hasRegistry:
		u, _ := table["registry"].(string)
		sid, err := core.NewRegistrySourceId(u)
		if err != nil {
			return core.ManifestDependency{}, fmt.Errorf("dependency %s: %w", rawName, err)
		}
		dep.SourceId = sid
	}

	if feats, ok := table["features"].([]any); ok {
		dep.Features = dep.Features[:0]
		for _, f := range feats {
			s, ok := f.(string)
			if !ok {
				return core.ManifestDependency{}, fmt.Errorf("dependency %s: features must be strings", rawName)
			}
			dep.Features = append(dep.Features, s)
		}
	}
	if df, ok := table["default-features"].(bool); ok {
		dep.DefaultFeatures = df
	}

	return dep, nil
}

func gitRefFromTable(rawName string, table map[string]any) (core.GitRef, error) {
	var refs []core.GitRef
	if v, ok := table["branch"].(string); ok {
		refs = append(refs, core.GitRef{Kind: core.GitRefBranch, Value: v})
	}
	if v, ok := table["tag"].(string); ok {
		refs = append(refs, core.GitRef{Kind: core.GitRefTag, Value: v})
	}
	if v, ok := table["rev"].(string); ok {
		refs = append(refs, core.GitRef{Kind: core.GitRefRev, Value: v})
	}
	switch len(refs) {
	case 0:
		return core.GitRef{Kind: core.GitRefDefaultBranch}, nil
	case 1:
		return refs[0], nil
	default:
		return core.GitRef{}, fmt.Errorf(
			"dependency %s: branch, tag and rev are mutually exclusive", rawName)
	}
}

func (m *TomlManifest) targets(pkgName core.PackageName) ([]core.Target, error) {
	var targets []core.Target

	if m.CairoPlugin != nil {
		t := core.NewTarget(core.TargetKindCairoPlugin, pkgName)
		t.Params = map[string]any{"builtin": m.CairoPlugin.Builtin}
		targets = append(targets, t)
	}
	if m.Lib != nil {
		t, err := targetFromTable(core.TargetKindLib, pkgName, m.Lib)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	if m.Executable != nil {
		t, err := targetFromTable(core.TargetKindExecutable, pkgName, m.Executable)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	kinds := make([]string, 0, len(m.Target))
	for kind := range m.Target {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		for _, table := range m.Target[kind] {
			t, err := targetFromTable(core.TargetKind(kind), pkgName, table)
			if err != nil {
				return nil, err
			}
			targets = append(targets, t)
		}
	}

	// A package with no explicit targets is a plain library.
	if len(targets) == 0 {
		targets = append(targets, core.NewTarget(core.TargetKindLib, pkgName))
	}
	return targets, nil
}

// targetFromTable lifts the well-known keys out of a target table and
// keeps the rest as kind-specific params for the compiler backend.
func targetFromTable(kind core.TargetKind, pkgName core.PackageName, table map[string]any) (core.Target, error) {
	t := core.NewTarget(kind, pkgName)
	params := make(map[string]any)
	for key, value := range table {
		switch key {
		case "name":
			s, ok := value.(string)
			if !ok {
				return core.Target{}, fmt.Errorf("target %s: name must be a string", kind)
			}
			t.Name = s
		case "source-path":
			s, ok := value.(string)
			if !ok {
				return core.Target{}, fmt.Errorf("target %s: source-path must be a string", kind)
			}
			t.SourcePath = s
		case "group-id":
			s, ok := value.(string)
			if !ok {
				return core.Target{}, fmt.Errorf("target %s: group-id must be a string", kind)
			}
			t.GroupId = s
		default:
			params[key] = value
		}
	}
	if len(params) > 0 {
		t.Params = params
	}
	return t, nil
}

func (m *TomlManifest) profiles() ([]core.Profile, error) {
	names := make([]string, 0, len(m.Profile))
	for name := range m.Profile {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []core.Profile
	for _, name := range names {
		decl := m.Profile[name]
		if name == "dev" || name == "release" {
			// Built-in profiles may be customized but not re-parented.
			if decl.Inherits != "" && decl.Inherits != name {
				return nil, fmt.Errorf("profile %s cannot inherit from %q", name, decl.Inherits)
			}
			continue
		}
		inherits := decl.Inherits
		if inherits == "" {
			inherits = "dev"
		}
		p, err := core.NewProfile(name, inherits)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *TomlManifest) compilerConfig() core.ManifestCompilerConfig {
	cfg := core.DefaultCompilerConfig(core.DevProfile())
	if m.Cairo == nil {
		return cfg
	}
	if m.Cairo.SierraReplaceIds != nil {
		cfg.SierraReplaceIds = *m.Cairo.SierraReplaceIds
	}
	if m.Cairo.EnableGas != nil {
		cfg.EnableGas = *m.Cairo.EnableGas
	}
	if m.Cairo.InliningStrategy != "" {
		cfg.InliningStrategy = m.Cairo.InliningStrategy
	}
	if m.Cairo.AllowWarnings != nil {
		cfg.AllowWarnings = *m.Cairo.AllowWarnings
	}
	return cfg
}
