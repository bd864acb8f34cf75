// SPDX-License-Identifier: MPL-2.0

package core

import (
	"fmt"
	"sort"
	"strings"
)

type (
	// FeatureSelector is how the user selected features on the command line
	// or via SCARB_FEATURES / SCARB_ALL_FEATURES.
	FeatureSelector int

	// FeaturesOpts is the full feature selection: a selector plus the
	// no-default-features flag.
	FeaturesOpts struct {
		Selector FeatureSelector
		// Listed is the explicit feature set for SelectorOnlyListed.
		Listed []string
		// NoDefault disables the implicit `default` feature.
		NoDefault bool
	}

	// FeaturesManifest is the `[features]` table of a package: feature name
	// to its activations. An activation is either another feature of the
	// same package or `dep/feat`, enabling feature `feat` of dependency
	// `dep`.
	FeaturesManifest map[string][]string
)

const (
	// SelectorDefaultFeatures activates the `default` feature, if defined.
	SelectorDefaultFeatures FeatureSelector = iota
	// SelectorAllFeatures activates every feature the package defines.
	SelectorAllFeatures
	// SelectorOnlyListed activates exactly the listed features.
	SelectorOnlyListed
)

// DefaultFeatureName is the feature activated when no explicit selection is
// made.
const DefaultFeatureName = "default"

// Validate rejects requests for features the package does not define,
// listing the known ones to support quick fixes.
func (m FeaturesManifest) Validate(requested []string) error {
	for _, feat := range requested {
		if _, ok := m[feat]; !ok {
			known := make([]string, 0, len(m))
			for name := range m {
				known = append(known, name)
			}
			sort.Strings(known)
			return fmt.Errorf("unknown feature `%s`, available features: %s",
				feat, strings.Join(known, ", "))
		}
	}
	return nil
}

// Resolve computes the effective feature set of a package for the given
// selection, following same-package activations transitively. Activations
// of the form `dep/feat` are returned separately so the caller can
// propagate them to the dependency's own resolution.
func (m FeaturesManifest) Resolve(opts FeaturesOpts) (enabled []string, depFeatures map[PackageName][]string, err error) {
	var roots []string
	switch opts.Selector {
	case SelectorAllFeatures:
		for name := range m {
			roots = append(roots, name)
		}
	case SelectorOnlyListed:
		if err := m.Validate(opts.Listed); err != nil {
			return nil, nil, err
		}
		roots = append(roots, opts.Listed...)
	case SelectorDefaultFeatures:
		// Handled below together with NoDefault.
	}

	if !opts.NoDefault && opts.Selector != SelectorAllFeatures {
		if _, ok := m[DefaultFeatureName]; ok {
			roots = append(roots, DefaultFeatureName)
		}
	}

	seen := make(map[string]bool)
	depFeatures = make(map[PackageName][]string)
	var walk func(feat string) error
	walk = func(feat string) error {
		if seen[feat] {
			return nil
		}
		seen[feat] = true
		for _, activation := range m[feat] {
			if depName, depFeat, ok := strings.Cut(activation, "/"); ok {
				name, err := NewPackageName(depName)
				if err != nil {
					return fmt.Errorf("invalid feature activation `%s`: %w", activation, err)
				}
				depFeatures[name] = append(depFeatures[name], depFeat)
				continue
			}
			if _, ok := m[activation]; !ok {
				return fmt.Errorf("feature `%s` activates undefined feature `%s`", feat, activation)
			}
			if err := walk(activation); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range roots {
		if err := walk(root); err != nil {
			return nil, nil, err
		}
	}

	enabled = make([]string, 0, len(seen))
	for feat := range seen {
		enabled = append(enabled, feat)
	}
	sort.Strings(enabled)
	return enabled, depFeatures, nil
}
