// SPDX-License-Identifier: MPL-2.0

package core

import (
	"slices"
	"strings"
	"testing"
)

func TestFeaturesResolve_Default(t *testing.T) {
	t.Parallel()
	m := FeaturesManifest{
		"default": {"fast"},
		"fast":    {},
		"extra":   {},
	}
	enabled, _, err := m.Resolve(FeaturesOpts{Selector: SelectorDefaultFeatures})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(enabled, []string{"default", "fast"}) {
		t.Errorf("enabled = %v", enabled)
	}
}

func TestFeaturesResolve_NoDefault(t *testing.T) {
	t.Parallel()
	m := FeaturesManifest{"default": {"fast"}, "fast": {}}
	enabled, _, err := m.Resolve(FeaturesOpts{Selector: SelectorDefaultFeatures, NoDefault: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(enabled) != 0 {
		t.Errorf("expected no features, got %v", enabled)
	}
}

func TestFeaturesResolve_All(t *testing.T) {
	t.Parallel()
	m := FeaturesManifest{"a": {}, "b": {}, "default": {"a"}}
	enabled, _, err := m.Resolve(FeaturesOpts{Selector: SelectorAllFeatures})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(enabled, []string{"a", "b", "default"}) {
		t.Errorf("enabled = %v", enabled)
	}
}

func TestFeaturesResolve_DepActivation(t *testing.T) {
	t.Parallel()
	m := FeaturesManifest{"net": {"serde/json", "tls"}, "tls": {}}
	enabled, depFeatures, err := m.Resolve(FeaturesOpts{
		Selector: SelectorOnlyListed,
		Listed:   []string{"net"},
		NoDefault: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(enabled, []string{"net", "tls"}) {
		t.Errorf("enabled = %v", enabled)
	}
	if !slices.Equal(depFeatures[MustPackageName("serde")], []string{"json"}) {
		t.Errorf("depFeatures = %v", depFeatures)
	}
}

func TestFeaturesValidate_Unknown(t *testing.T) {
	t.Parallel()
	m := FeaturesManifest{"alpha": {}, "beta": {}}
	err := m.Validate([]string{"gamma"})
	if err == nil {
		t.Fatal("expected error for unknown feature")
	}
	if !strings.Contains(err.Error(), "alpha, beta") {
		t.Errorf("error should list known features, got %q", err)
	}
}

func TestDependencyFilter_Propagation(t *testing.T) {
	t.Parallel()
	deps := []ManifestDependency{
		{Name: MustPackageName("lib"), Kind: DepKindNormal()},
		{Name: MustPackageName("testlib"), Kind: DepKindDev()},
	}
	root := PropagationFilter(true).Apply(deps)
	if len(root) != 2 {
		t.Errorf("roots keep dev deps, got %d", len(root))
	}
	transitive := PropagationFilter(false).Apply(deps)
	if len(transitive) != 1 || transitive[0].Name != MustPackageName("lib") {
		t.Errorf("transitive deps must drop dev deps, got %v", transitive)
	}
}
