// SPDX-License-Identifier: MPL-2.0

// Package core defines the data model shared by the whole tool: package
// names and identities, sources, manifests, dependency summaries, targets,
// features, profiles, workspaces and the locked dependency graph.
package core

import (
	"fmt"
	"strings"
)

const (
	// CorePackageName is the name of the built-in standard library package.
	// Every package gains an implicit dependency on it unless it opts out
	// with `no-core`.
	CorePackageName PackageName = "core"

	// StarknetPackageName is the name of the built-in Starknet plugin package.
	StarknetPackageName PackageName = "starknet"
)

// PackageName is a validated package name.
//
// Naming rules: nonempty, ASCII lowercase, the first character must be a
// letter or underscore, the rest letters, digits or underscores. Language
// keywords and Windows-reserved device names are rejected because package
// names become crate names and directory names respectively.
type PackageName string

// NewPackageName validates name and returns it as a PackageName.
func NewPackageName(name string) (PackageName, error) {
	if name == "" {
		return "", fmt.Errorf("empty string cannot be used as package name")
	}
	if name == "_" {
		return "", fmt.Errorf("underscore cannot be used as package name")
	}
	if name != strings.ToLower(name) {
		return "", fmt.Errorf(
			"invalid package name: `%s`\nnote: usage of ASCII uppercase letters in the package name has been disallowed\nhelp: change package name to: %s",
			name, strings.ToLower(name))
	}

	for i, ch := range name {
		if i == 0 {
			if ch >= '0' && ch <= '9' {
				return "", fmt.Errorf("the name `%s` cannot be used as a package name, names cannot start with a digit", name)
			}
			if !isASCIILower(ch) && ch != '_' {
				return "", fmt.Errorf(
					"invalid character `%c` in package name: `%s`, the first character must be an ASCII lowercase letter or underscore",
					ch, name)
			}
			continue
		}
		if !isASCIILower(ch) && !(ch >= '0' && ch <= '9') && ch != '_' {
			return "", fmt.Errorf(
				"invalid character `%c` in package name: `%s`, characters must be ASCII lowercase letters, ASCII numbers or underscore",
				ch, name)
		}
	}

	if isKeyword(name) {
		return "", fmt.Errorf("the name `%s` cannot be used as a package name, names cannot use Cairo keywords", name)
	}
	if isWindowsRestricted(name) {
		return "", fmt.Errorf("cannot use name `%s`, it is a Windows reserved filename", name)
	}

	return PackageName(name), nil
}

// MustPackageName is like NewPackageName but panics on invalid input.
// Intended for compile-time constants and tests.
func MustPackageName(name string) PackageName {
	pn, err := NewPackageName(name)
	if err != nil {
		panic(err)
	}
	return pn
}

// IsBuiltin reports whether this name denotes a package shipped with the
// compiler rather than fetched from a source.
func (n PackageName) IsBuiltin() bool {
	return n == CorePackageName || n == StarknetPackageName
}

func (n PackageName) String() string { return string(n) }

func isASCIILower(ch rune) bool { return ch >= 'a' && ch <= 'z' }

// cairoKeywords is the set of reserved language keywords that cannot be
// used as package names.
var cairoKeywords = map[string]bool{
	"as": true, "break": true, "const": true, "continue": true, "else": true,
	"enum": true, "extern": true, "false": true, "fn": true, "if": true,
	"impl": true, "implicits": true, "let": true, "loop": true, "match": true,
	"mod": true, "mut": true, "nopanic": true, "of": true, "pub": true,
	"ref": true, "return": true, "struct": true, "trait": true, "true": true,
	"type": true, "use": true, "while": true,
}

func isKeyword(name string) bool { return cairoKeywords[name] }

// windowsRestricted lists device names that Windows reserves regardless of
// extension; a package named after one could never be checked out there.
var windowsRestricted = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

func isWindowsRestricted(name string) bool { return windowsRestricted[name] }
