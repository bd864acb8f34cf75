// SPDX-License-Identifier: MPL-2.0

// Package registry implements clients for package registries: the
// index wire format, HTTP and local-directory backends, and the
// `.tar.zst` archive codec used for package distribution.
package registry

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/Masterminds/semver/v3"

	"scarb/pkg/core"
)

// IndexConfigPath is the well-known location of the registry config
// relative to the registry root.
const IndexConfigPath = "api/v1/index/config.json"

type (
	// IndexConfig is the `config.json` document a registry serves at its
	// well-known path. The dl and index fields are URL templates.
	IndexConfig struct {
		Version int `json:"version"`
		// API is the endpoint for authenticated registry operations.
		// Empty means the registry supports none.
		API string `json:"api,omitempty"`
		// Dl is the download URL template for package archives.
		Dl TemplateUrl `json:"dl"`
		// Index is the URL template for per-package index records.
		Index TemplateUrl `json:"index"`
		// Upload is the publish endpoint. Empty means publishing is not
		// supported.
		Upload string `json:"upload,omitempty"`
	}

	// TemplateUrl is a URL template. `{package}` and `{version}` expand
	// to the package name and version; `{prefix}` expands to the index
	// prefix directory of the package name (e.g. `fo/ob` for `foobar`).
	TemplateUrl string

	// IndexRecord describes one published version of a package.
	IndexRecord struct {
		Version      *semver.Version   `json:"v"`
		Dependencies []IndexDependency `json:"deps"`
		Checksum     core.Checksum     `json:"cksum"`
		NoCore       bool              `json:"no_core,omitempty"`
	}

	// IndexDependency is a dependency entry of an index record.
	IndexDependency struct {
		Name string `json:"name"`
		Req  string `json:"req"`
	}

	// IndexRecords is the content of one package's index file: all its
	// published versions.
	IndexRecords []IndexRecord
)

// ParseIndexConfig decodes and validates a registry config document.
func ParseIndexConfig(data []byte) (*IndexConfig, error) {
	var cfg IndexConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse registry config: %w", err)
	}
	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported registry index version: %d", cfg.Version)
	}
	if cfg.Dl == "" || cfg.Index == "" {
		return nil, fmt.Errorf("registry config must declare dl and index templates")
	}
	return &cfg, nil
}

// ParseIndexRecords decodes a package's index file.
func ParseIndexRecords(data []byte) (IndexRecords, error) {
	var records IndexRecords
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse index records: %w", err)
	}
	return records, nil
}

func (r IndexRecords) marshal() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize index records: %w", err)
	}
	return append(data, '\n'), nil
}

// FindVersion returns the record for an exact version.
func (r IndexRecords) FindVersion(version *semver.Version) (IndexRecord, bool) {
	for _, rec := range r {
		if rec.Version.Equal(version) {
			return rec, true
		}
	}
	return IndexRecord{}, false
}

// Expand substitutes the template patterns for the given package name
// and optional version, and validates the result as a URL.
func (t TemplateUrl) Expand(name core.PackageName, version *semver.Version) (string, error) {
	expansion := string(t)
	expansion = strings.ReplaceAll(expansion, "{package}", string(name))
	expansion = strings.ReplaceAll(expansion, "{prefix}", PackagePrefix(name))
	if version != nil {
		expansion = strings.ReplaceAll(expansion, "{version}", version.String())
	} else if strings.Contains(expansion, "{version}") {
		return "", fmt.Errorf("pattern `{version}` is not available in this context for template url: %s", t)
	}
	if _, err := url.Parse(expansion); err != nil {
		return "", fmt.Errorf("failed to expand template url %s: %w", t, err)
	}
	return expansion, nil
}

// PackagePrefix returns the index directory prefix for a package name,
// mirroring the registry directory layout.
func PackagePrefix(name core.PackageName) string {
	s := string(name)
	switch len(s) {
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3/" + s[:1]
	default:
		return s[0:2] + "/" + s[2:4]
	}
}
