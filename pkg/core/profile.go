// SPDX-License-Identifier: MPL-2.0

package core

import "fmt"

// Profile names a build configuration. `dev` and `release` are built in;
// user-defined profiles inherit from one of them.
type Profile struct {
	Name string
	// Inherits is the base profile for custom profiles. For the built-in
	// profiles it equals the profile itself.
	Inherits string
}

// DevProfile is the default profile.
func DevProfile() Profile { return Profile{Name: "dev", Inherits: "dev"} }

// ReleaseProfile is the optimized profile.
func ReleaseProfile() Profile { return Profile{Name: "release", Inherits: "release"} }

// NewProfile returns the named profile. Built-in names map to their
// canonical values; custom names require an explicit base.
func NewProfile(name, inherits string) (Profile, error) {
	switch name {
	case "dev":
		return DevProfile(), nil
	case "release":
		return ReleaseProfile(), nil
	}
	switch inherits {
	case "dev", "release":
		return Profile{Name: name, Inherits: inherits}, nil
	case "":
		return Profile{}, fmt.Errorf("profile `%s` must inherit from `dev` or `release`", name)
	default:
		return Profile{}, fmt.Errorf("profile `%s` inherits from unknown profile `%s`", name, inherits)
	}
}

// IsRelease reports whether this profile builds with optimizations.
func (p Profile) IsRelease() bool { return p.Inherits == "release" }

// TargetSubdir is the directory under target/ that holds this profile's
// artifacts.
func (p Profile) TargetSubdir() string { return p.Name }

func (p Profile) String() string { return p.Name }
