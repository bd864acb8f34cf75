// SPDX-License-Identifier: MPL-2.0

package core

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

type (
	// DepKind says in which build configurations a dependency edge is live.
	DepKind struct {
		// kind is one of the depKind* constants below.
		kind int
		// target is set for target-scoped dependencies (e.g. dev deps of the
		// `test` target kind).
		target TargetKind
	}

	// VersionReq is a version requirement: either "any version" or a semver
	// constraint set such as `^1.2.0` or `>=1.0.0, <2.0.0`. Requirements can
	// additionally be locked to an exact version taken from the lockfile,
	// which narrows matching without losing the original textual form.
	VersionReq struct {
		raw        string
		constraint *semver.Constraints
		any        bool
	}

	// ManifestDependency is one `[dependencies]` entry after parsing: the
	// dependency name, version requirement, source, kind, and feature
	// activation controls.
	ManifestDependency struct {
		Name            PackageName
		VersionReq      VersionReq
		SourceId        SourceId
		Kind            DepKind
		Features        []string
		DefaultFeatures bool
	}
)

const (
	depKindNormal = iota
	depKindDev
	depKindTarget
)

// DepKindNormal marks a regular dependency, live for every target kind.
func DepKindNormal() DepKind { return DepKind{kind: depKindNormal} }

// DepKindDev marks a dev-dependency, live only for test targets of the
// declaring package itself.
func DepKindDev() DepKind { return DepKind{kind: depKindDev} }

// DepKindTarget marks a dependency scoped to one target kind.
func DepKindTarget(kind TargetKind) DepKind {
	return DepKind{kind: depKindTarget, target: kind}
}

// IsNormal reports whether the dependency applies to all targets.
func (k DepKind) IsNormal() bool { return k.kind == depKindNormal }

// IsDev reports whether the dependency is a dev-dependency.
func (k DepKind) IsDev() bool { return k.kind == depKindDev }

// TargetKind returns the scoping target kind and whether one is set.
func (k DepKind) TargetKind() (TargetKind, bool) {
	if k.kind == depKindTarget {
		return k.target, true
	}
	if k.kind == depKindDev {
		return TargetKindTest, true
	}
	return "", false
}

func (k DepKind) String() string {
	switch k.kind {
	case depKindDev:
		return "dev"
	case depKindTarget:
		return fmt.Sprintf("target(%s)", k.target)
	default:
		return "normal"
	}
}

// AnyVersionReq matches every version.
func AnyVersionReq() VersionReq {
	return VersionReq{raw: "*", any: true}
}

// ParseVersionReq parses a requirement string. "*" and the empty string
// match any version. A bare version such as "1.2.3" is a caret
// requirement, matching any semver-compatible release.
func ParseVersionReq(raw string) (VersionReq, error) {
	if raw == "" || raw == "*" {
		return AnyVersionReq(), nil
	}
	parts := strings.Split(raw, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" && part[0] >= '0' && part[0] <= '9' {
			part = "^" + part
		}
		parts[i] = part
	}
	c, err := semver.NewConstraint(strings.Join(parts, ","))
	if err != nil {
		return VersionReq{}, fmt.Errorf("invalid version requirement `%s`: %w", raw, err)
	}
	return VersionReq{raw: raw, constraint: c}, nil
}

// ExactVersionReq matches exactly one version. Used when rewriting
// dependencies to their locked form.
func ExactVersionReq(v *semver.Version) VersionReq {
	raw := "=" + v.String()
	c, err := semver.NewConstraint(raw)
	if err != nil {
		// An exact constraint built from a parsed version cannot fail.
		panic(err)
	}
	return VersionReq{raw: raw, constraint: c}
}

// Matches reports whether version satisfies this requirement.
func (r VersionReq) Matches(v *semver.Version) bool {
	if r.any {
		return true
	}
	return r.constraint != nil && r.constraint.Check(v)
}

// IsAny reports whether this requirement matches every version.
func (r VersionReq) IsAny() bool { return r.any }

func (r VersionReq) String() string { return r.raw }

// MatchesPackageId reports whether id satisfies this dependency's name,
// version requirement and source.
func (d ManifestDependency) MatchesPackageId(id PackageId) bool {
	return d.Name == id.Name() &&
		d.VersionReq.Matches(id.Version()) &&
		d.SourceId == id.SourceId()
}

// MatchesSummary reports whether a candidate summary satisfies this
// dependency. Source is intentionally not compared: the querying source may
// serve summaries under a different id (e.g. a git source serving path-like
// packages from its checkout).
func (d ManifestDependency) MatchesSummary(s *Summary) bool {
	return d.Name == s.PackageId.Name() && d.VersionReq.Matches(s.PackageId.Version())
}

func (d ManifestDependency) String() string {
	return fmt.Sprintf("%s %s (%s)", d.Name, d.VersionReq, d.SourceId.PrettyURL())
}

// DependencyFilter selects which dependencies of a summary propagate during
// resolution. Dev-dependencies propagate only from workspace members (the
// resolution roots), never transitively.
type DependencyFilter struct {
	// AvoidDev drops dev-dependencies when set.
	AvoidDev bool
}

// PropagationFilter returns the filter for resolving dependencies of a
// package: workspace roots keep their dev-dependencies, everything else
// drops them.
func PropagationFilter(isRoot bool) DependencyFilter {
	return DependencyFilter{AvoidDev: !isRoot}
}

// Apply returns the dependencies of deps that pass the filter.
func (f DependencyFilter) Apply(deps []ManifestDependency) []ManifestDependency {
	if !f.AvoidDev {
		return deps
	}
	out := make([]ManifestDependency, 0, len(deps))
	for _, dep := range deps {
		if dep.Kind.IsDev() {
			continue
		}
		out = append(out, dep)
	}
	return out
}
