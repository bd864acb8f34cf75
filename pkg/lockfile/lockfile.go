// SPDX-License-Identifier: MPL-2.0

// Package lockfile reads and writes Scarb.lock: a sorted, diff-friendly
// projection of a resolved dependency graph.
package lockfile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"

	"scarb/internal/fsx"
	"scarb/pkg/core"
)

// Header is the first line of every generated lockfile. Parsing skips
// everything before it so users may prepend custom comments.
const Header = "# Code generated by scarb DO NOT EDIT."

// Version is the only lockfile format version this build understands.
const Version = "1"

type (
	// Lockfile is the parsed content of a Scarb.lock.
	Lockfile struct {
		Version string
		// Packages are sorted by (name, version, source).
		Packages []PackageLock
	}

	// PackageLock pins one package of the solution.
	PackageLock struct {
		Name    core.PackageName
		Version *semver.Version
		// SourceId is zero for workspace/path packages, whose location is
		// derived from the workspace rather than recorded.
		SourceId core.SourceId
		// Checksum is set for registry packages only.
		Checksum core.Checksum
		// Dependencies are the names of direct dependencies, sorted.
		// When the solution contains several versions of one name, the
		// entry is disambiguated as "name@version".
		Dependencies []string
	}
)

// New creates a lockfile from package locks, normalizing order.
func New(packages []PackageLock) *Lockfile {
	lock := &Lockfile{Version: Version, Packages: packages}
	lock.normalize()
	return lock
}

// FromResolve projects a resolved graph into a lockfile. Checksums of
// registry downloads are recorded when known.
func FromResolve(resolve *core.Resolve, checksums map[core.PackageId]core.Checksum) *Lockfile {
	ambiguous := map[core.PackageName]bool{}
	seen := map[core.PackageName]bool{}
	for _, id := range resolve.PackageIds() {
		if seen[id.Name()] {
			ambiguous[id.Name()] = true
		}
		seen[id.Name()] = true
	}

	var packages []PackageLock
	for _, id := range resolve.PackageIds() {
		var deps []string
		for _, dep := range resolve.AllDependenciesOf(id) {
			if ambiguous[dep.Name()] {
				deps = append(deps, fmt.Sprintf("%s@%s", dep.Name(), dep.Version()))
			} else {
				deps = append(deps, string(dep.Name()))
			}
		}
		lock := PackageLock{
			Name:         id.Name(),
			Version:      id.Version(),
			Dependencies: deps,
			Checksum:     checksums[id],
		}
		if !id.SourceId().IsPath() {
			lock.SourceId = id.SourceId()
		}
		packages = append(packages, lock)
	}
	return New(packages)
}

// ReadFromPath loads the lockfile at path. A missing or empty file
// yields an empty lockfile; a malformed one is an error.
func ReadFromPath(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Lockfile{Version: Version}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile at %s: %w", path, err)
	}
	lock, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse lockfile at %s: %w", path, err)
	}
	return lock, nil
}

// Parse decodes lockfile text. Content before the generated header is
// ignored.
func Parse(content string) (*Lockfile, error) {
	if strings.TrimSpace(content) == "" {
		return &Lockfile{Version: Version}, nil
	}
	if idx := strings.Index(content, Header); idx >= 0 {
		content = content[idx+len(Header):]
	}

	var raw struct {
		Version string `toml:"version"`
		Package []struct {
			Name         string   `toml:"name"`
			Version      string   `toml:"version"`
			Source       string   `toml:"source"`
			Checksum     string   `toml:"checksum"`
			Dependencies []string `toml:"dependencies"`
		} `toml:"package"`
	}
	if err := toml.Unmarshal([]byte(content), &raw); err != nil {
		return nil, err
	}
	if raw.Version != Version {
		return nil, fmt.Errorf("unsupported lockfile version %q", raw.Version)
	}

	lock := &Lockfile{Version: raw.Version}
	for _, p := range raw.Package {
		name, err := core.NewPackageName(p.Name)
		if err != nil {
			return nil, err
		}
		version, err := semver.StrictNewVersion(p.Version)
		if err != nil {
			return nil, fmt.Errorf("package %s: invalid version %q: %w", p.Name, p.Version, err)
		}
		entry := PackageLock{Name: name, Version: version, Dependencies: p.Dependencies}
		if p.Source != "" {
			sid, err := core.SourceIdFromPrettyURL(p.Source)
			if err != nil {
				return nil, fmt.Errorf("package %s: %w", p.Name, err)
			}
			entry.SourceId = sid
		}
		if p.Checksum != "" {
			sum, err := core.ParseChecksum(p.Checksum)
			if err != nil {
				return nil, fmt.Errorf("package %s: %w", p.Name, err)
			}
			entry.Checksum = sum
		}
		lock.Packages = append(lock.Packages, entry)
	}
	lock.normalize()
	return lock, nil
}

// Render produces the canonical lockfile text. Rendering the parse of a
// rendered lockfile is the identity.
func (l *Lockfile) Render() string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteString("\nversion = ")
	b.WriteString(quote(Version))
	b.WriteString("\n")

	for _, p := range l.Packages {
		b.WriteString("\n[[package]]\n")
		fmt.Fprintf(&b, "name = %s\n", quote(string(p.Name)))
		if !p.SourceId.IsZero() && !p.SourceId.IsPath() {
			fmt.Fprintf(&b, "source = %s\n", quote(p.SourceId.PrettyURL()))
		}
		fmt.Fprintf(&b, "version = %s\n", quote(p.Version.String()))
		if !p.Checksum.IsZero() {
			fmt.Fprintf(&b, "checksum = %s\n", quote(p.Checksum.String()))
		}
		if len(p.Dependencies) > 0 {
			b.WriteString("dependencies = [\n")
			for _, dep := range p.Dependencies {
				fmt.Fprintf(&b, " %s,\n", quote(dep))
			}
			b.WriteString("]\n")
		}
	}
	return b.String()
}

// WriteToPath atomically replaces the lockfile at path. The file is not
// touched when the content is already up to date, keeping its mtime
// useful for freshness checks.
func (l *Lockfile) WriteToPath(path string) error {
	rendered := l.Render()
	if existing, err := os.ReadFile(path); err == nil && string(existing) == rendered {
		return nil
	}
	return fsx.WriteFileAtomic(path, []byte(rendered), 0o644)
}

// PackagesMatching returns the locked entries with the given name.
func (l *Lockfile) PackagesMatching(name core.PackageName) []PackageLock {
	var out []PackageLock
	for _, p := range l.Packages {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// IsEmpty reports whether the lockfile pins no packages.
func (l *Lockfile) IsEmpty() bool { return len(l.Packages) == 0 }

func (l *Lockfile) normalize() {
	sort.Slice(l.Packages, func(i, j int) bool {
		a, b := l.Packages[i], l.Packages[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if c := a.Version.Compare(b.Version); c != 0 {
			return c < 0
		}
		return sourceKey(a.SourceId) < sourceKey(b.SourceId)
	})
	for i := range l.Packages {
		sort.Strings(l.Packages[i].Dependencies)
	}
}

func sourceKey(s core.SourceId) string {
	if s.IsZero() {
		return ""
	}
	return s.PrettyURL()
}

func quote(s string) string {
	// Lockfile values never contain characters needing TOML escapes
	// beyond backslash and quote.
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
