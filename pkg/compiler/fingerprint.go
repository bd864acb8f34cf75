// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"scarb/internal/stablehash"
)

// Fingerprint hashes every input that affects a unit's output: the
// compiler version, profile, target, compiler config, cfg items, and
// per component its identity, crate root and source tree. Unchanged
// inputs reproduce the same value; any change produces a new one.
func Fingerprint(unit *CairoUnit, compilerVersion *semver.Version) (string, error) {
	h := stablehash.New()
	h.WriteString(compilerVersion.String())
	h.WriteString(unit.Profile.Name)
	h.WriteString(string(unit.Target.Kind))
	h.WriteString(unit.Target.Name)
	h.WriteString(unit.Target.SourcePath)
	writeTargetParams(h, unit.Target.Params)

	h.WriteBool(unit.Config.SierraReplaceIds)
	h.WriteBool(unit.Config.EnableGas)
	h.WriteString(unit.Config.InliningStrategy)
	h.WriteStringsSorted(unit.Cfg.Strings())

	for _, component := range unit.Components {
		h.WriteString(component.Package.Id.Serialized())
		h.WriteString(string(component.Edition))
		h.WriteStringsSorted(component.Features)
		if err := writeSourceTree(h, component.SourceRoot); err != nil {
			return "", err
		}
	}
	for _, plugin := range unit.Plugins {
		h.WriteString(plugin.Serialized())
	}
	return h.Digest(), nil
}

// CoreFingerprint hashes the standard library inputs alone, so a
// compiler upgrade invalidates `core` without a full clean.
func CoreFingerprint(unit *CairoUnit, compilerVersion *semver.Version) (string, error) {
	for _, component := range unit.Components {
		if !component.Package.Id.IsCore() {
			continue
		}
		h := stablehash.New()
		h.WriteString(compilerVersion.String())
		h.WriteString(component.Package.Id.Serialized())
		if err := writeSourceTree(h, component.SourceRoot); err != nil {
			return "", err
		}
		return h.Digest(), nil
	}
	return "", nil
}

func writeTargetParams(h *stablehash.Hasher, params map[string]any) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.WriteString(k)
		h.WriteString(fmt.Sprint(params[k]))
	}
}

// writeSourceTree hashes the crate root file and every Cairo source
// next to or below it, in sorted path order.
func writeSourceTree(h *stablehash.Hasher, crateRoot string) error {
	dir := filepath.Dir(crateRoot)
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".cairo") || path == crateRoot {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to hash sources under %s: %w", dir, err)
	}
	sort.Strings(files)
	for _, path := range files {
		h.WriteString(path)
		if err := h.WriteFile(path); err != nil {
			return fmt.Errorf("failed to hash %s: %w", path, err)
		}
	}
	return nil
}
