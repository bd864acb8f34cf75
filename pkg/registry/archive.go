// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pelletier/go-toml/v2"

	"scarb/internal/fsx"
	"scarb/pkg/core"
)

const (
	// ArchiveVersion is the content of the VERSION marker file inside
	// every package archive.
	ArchiveVersion = "1"

	// OrigManifestFileName preserves the manifest exactly as the author
	// wrote it. The Scarb.toml shipped in the archive is a normalized
	// rendering suitable for consumption straight from a registry.
	OrigManifestFileName = "Scarb.orig.toml"
)

// archiveSkip names the directory entries never included in archives.
var archiveSkip = map[string]bool{
	"target": true,
	".git":   true,
}

// CreateArchive packages a source tree into a `.tar.zst` written to w.
// Entries are rooted at `<name>-<version>/` and sorted, so identical
// trees produce identical archives. A VERSION marker file is added.
func CreateArchive(pkg *core.Package, w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create archive compressor: %w", err)
	}
	tw := tar.NewWriter(zw)

	prefix := fmt.Sprintf("%s-%s", pkg.Id.Name(), pkg.Id.Version())

	if err := writeArchiveEntry(tw, prefix+"/VERSION", []byte(ArchiveVersion)); err != nil {
		return err
	}

	root := pkg.Root()

	rawManifest, err := os.ReadFile(pkg.ManifestPath)
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %w", pkg.ManifestPath, err)
	}
	normalized, err := normalizeManifest(rawManifest)
	if err != nil {
		return err
	}
	if err := writeArchiveEntry(tw, prefix+"/"+core.ManifestFileName, normalized); err != nil {
		return err
	}
	if err := writeArchiveEntry(tw, prefix+"/"+OrigManifestFileName, rawManifest); err != nil {
		return err
	}

	var files []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if archiveSkip[info.Name()] && filepath.Dir(rel) == "." {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || rel == "Scarb.lock" {
			return nil
		}
		// The manifest is written separately in normalized form.
		if rel == core.ManifestFileName || rel == OrigManifestFileName {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk package tree %s: %w", root, err)
	}
	sort.Strings(files)

	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		name := prefix + "/" + filepath.ToSlash(rel)
		if err := writeArchiveEntry(tw, name, data); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

// normalizeManifest rewrites a manifest for publication. The workspace
// and patch tables are dropped, and every dependency collapses to a
// bare version requirement: path and git references point into the
// author's checkout and mean nothing to a registry consumer.
func normalizeManifest(raw []byte) ([]byte, error) {
	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse manifest for archiving: %w", err)
	}

	delete(doc, "workspace")
	delete(doc, "patch")

	for _, table := range []string{"dependencies", "dev-dependencies"} {
		deps, ok := doc[table].(map[string]any)
		if !ok {
			continue
		}
		for name, spec := range deps {
			dep, ok := spec.(map[string]any)
			if !ok {
				continue
			}
			for _, key := range []string{"path", "git", "branch", "tag", "rev"} {
				delete(dep, key)
			}
			if version, ok := dep["version"].(string); ok && len(dep) == 1 {
				deps[name] = version
			} else if len(dep) == 0 {
				deps[name] = "*"
			}
		}
	}

	out, err := toml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render normalized manifest: %w", err)
	}
	return out, nil
}

func writeArchiveEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name: name,
		Mode: 0o644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	return nil
}

// ExtractArchive unpacks a package archive into destDir so that the
// package root (the `<name>-<version>/` prefix inside the archive)
// becomes destDir itself. Extraction goes through a temporary sibling
// directory and an atomic rename, so destDir either fully exists or
// not at all.
func ExtractArchive(archivePath, destDir string) error {
	if fsx.Exists(destDir) {
		return nil
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to decompress archive %s: %w", archivePath, err)
	}
	defer zr.Close()

	tmp, err := os.MkdirTemp(filepath.Dir(destDir), ".tmp-extract-")
	if err != nil {
		return fmt.Errorf("failed to create extraction directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read archive %s: %w", archivePath, err)
		}

		// Strip the top-level `<name>-<version>/` component.
		_, rel, found := strings.Cut(filepath.ToSlash(hdr.Name), "/")
		if !found || rel == "" {
			continue
		}
		if strings.Contains(rel, "..") {
			return fmt.Errorf("archive %s contains an invalid path: %s", archivePath, hdr.Name)
		}
		target := filepath.Join(tmp, filepath.FromSlash(rel))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := fsx.CreateDirAll(target); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := fsx.CreateDirAll(filepath.Dir(target)); err != nil {
				return err
			}
			data, err := io.ReadAll(tr)
			if err != nil {
				return fmt.Errorf("failed to read archive entry %s: %w", hdr.Name, err)
			}
			if err := os.WriteFile(target, data, os.FileMode(hdr.Mode).Perm()); err != nil {
				return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
			}
		default:
			// Links and special files have no business in package archives.
			return fmt.Errorf("archive %s contains an unsupported entry: %s", archivePath, hdr.Name)
		}
	}

	if err := fsx.CreateDirAll(filepath.Dir(destDir)); err != nil {
		return err
	}
	return fsx.RenameAtomicDir(tmp, destDir)
}
