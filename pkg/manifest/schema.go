// SPDX-License-Identifier: MPL-2.0

// Package manifest reads Scarb.toml files into the core model: package
// metadata, dependencies, targets, features, profiles and workspace
// membership. Parsing is strict — unknown keys are rejected everywhere
// except inside `[package.metadata]`, `[workspace.metadata]` and
// `[tool]`, which are preserved verbatim for external tooling.
package manifest

type (
	// TomlManifest is the raw document shape of a Scarb.toml. Dependency
	// values stay untyped at this level because TOML allows both the
	// string shorthand (`foo = "1.0"`) and the detailed table form.
	TomlManifest struct {
		Package         *TomlPackage              `toml:"package,omitempty"`
		Workspace       *TomlWorkspace            `toml:"workspace,omitempty"`
		Dependencies    map[string]any            `toml:"dependencies,omitempty"`
		DevDependencies map[string]any            `toml:"dev-dependencies,omitempty"`
		Lib             map[string]any            `toml:"lib,omitempty"`
		Executable      map[string]any            `toml:"executable,omitempty"`
		CairoPlugin     *TomlCairoPlugin          `toml:"cairo-plugin,omitempty"`
		Target          map[string][]map[string]any `toml:"target,omitempty"`
		Features        map[string][]string       `toml:"features,omitempty"`
		Cairo           *TomlCairo                `toml:"cairo,omitempty"`
		Scripts         map[string]string         `toml:"scripts,omitempty"`
		Patch           map[string]map[string]any `toml:"patch,omitempty"`
		Profile         map[string]TomlProfile    `toml:"profile,omitempty"`
		Tool            map[string]any            `toml:"tool,omitempty"`
	}

	// TomlPackage is the `[package]` section.
	TomlPackage struct {
		Name        string         `toml:"name"`
		Version     string         `toml:"version"`
		Edition     string         `toml:"edition,omitempty"`
		Authors     []string       `toml:"authors,omitempty"`
		Description string         `toml:"description,omitempty"`
		License     string         `toml:"license,omitempty"`
		Repository  string         `toml:"repository,omitempty"`
		NoCore      bool           `toml:"no-core,omitempty"`
		Metadata    map[string]any `toml:"metadata,omitempty"`
	}

	// TomlWorkspace is the `[workspace]` section of a root manifest.
	TomlWorkspace struct {
		Members      []string       `toml:"members,omitempty"`
		Dependencies map[string]any `toml:"dependencies,omitempty"`
		Scripts      map[string]string `toml:"scripts,omitempty"`
		Metadata     map[string]any `toml:"metadata,omitempty"`
	}

	// TomlCairoPlugin is the `[cairo-plugin]` marker table.
	TomlCairoPlugin struct {
		Builtin bool `toml:"builtin,omitempty"`
	}

	// TomlCairo is the `[cairo]` compiler knobs section.
	TomlCairo struct {
		SierraReplaceIds *bool  `toml:"sierra-replace-ids,omitempty"`
		EnableGas        *bool  `toml:"enable-gas,omitempty"`
		InliningStrategy string `toml:"inlining-strategy,omitempty"`
		AllowWarnings    *bool  `toml:"allow-warnings,omitempty"`
	}

	// TomlProfile is one `[profile.<name>]` table.
	TomlProfile struct {
		Inherits string     `toml:"inherits,omitempty"`
		Cairo    *TomlCairo `toml:"cairo,omitempty"`
	}
)

// IsWorkspaceRoot reports whether this document declares a workspace.
func (m *TomlManifest) IsWorkspaceRoot() bool {
	return m.Workspace != nil
}
