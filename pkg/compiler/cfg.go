// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"fmt"
	"sort"
)

type (
	// Cfg is one `#[cfg(...)]` configuration item. A nameless value
	// (empty Value) is a bare flag.
	Cfg struct {
		Key   string
		Value string
	}

	// CfgSet is an ordered, duplicate-free set of configuration items
	// handed to the compiler for conditional compilation.
	CfgSet []Cfg
)

// Cfg item keys understood by the compiler front-end.
const (
	CfgKeyTarget  = "target"
	CfgKeyGas     = "gas"
	CfgKeyFeature = "feature"
)

// NewCfgSet assembles the configuration items of a compilation: the
// target kind, the gas switch and one `feature` item per enabled
// feature.
func NewCfgSet(targetKind string, enableGas bool, features []string) CfgSet {
	set := CfgSet{{Key: CfgKeyTarget, Value: targetKind}}
	gas := "disabled"
	if enableGas {
		gas = "enabled"
	}
	set = append(set, Cfg{Key: CfgKeyGas, Value: gas})

	sorted := append([]string(nil), features...)
	sort.Strings(sorted)
	for _, feat := range sorted {
		set = append(set, Cfg{Key: CfgKeyFeature, Value: feat})
	}
	return set
}

// Strings renders each item in `key: "value"` form, bare flags as the
// key alone.
func (s CfgSet) Strings() []string {
	out := make([]string, len(s))
	for i, c := range s {
		if c.Value == "" {
			out[i] = c.Key
			continue
		}
		out[i] = fmt.Sprintf("%s: %q", c.Key, c.Value)
	}
	return out
}
