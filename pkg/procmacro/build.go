// SPDX-License-Identifier: MPL-2.0

package procmacro

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"scarb/internal/flock"
	"scarb/internal/fsx"
	"scarb/internal/stablehash"
	"scarb/pkg/compiler"
	"scarb/pkg/core"
)

// NativeBuilder compiles plugin packages into shared libraries with the
// native toolchain, caching the results per package and source.
type NativeBuilder struct {
	// pluginsFs is the cache subtree holding built plugins.
	pluginsFs *flock.Filesystem
	// cargo is the cargo executable, "cargo" unless overridden.
	cargo string
}

// NewNativeBuilder creates a builder caching under the given plugins
// directory (normally AppDirs.PluginsDir()).
func NewNativeBuilder(pluginsFs *flock.Filesystem) *NativeBuilder {
	return &NativeBuilder{pluginsFs: pluginsFs, cargo: "cargo"}
}

// Fresh reports whether the cached shared library still matches the
// plugin's current sources. The check never triggers a build.
func (b *NativeBuilder) Fresh(unit *compiler.ProcMacroUnit) bool {
	pkg := unit.Main()
	cacheDir := b.cacheDirFs(pkg).Path()
	if !fsx.Exists(libraryPath(cacheDir, pkg)) {
		return false
	}
	fingerprint, err := sourceFingerprint(pkg.Root())
	if err != nil {
		return false
	}
	stored, err := os.ReadFile(filepath.Join(cacheDir, "fingerprint.hash"))
	return err == nil && string(stored) == fingerprint
}

// EnsureBuilt builds the plugin's shared library if it is missing or
// its sources changed, and returns the library path.
func (b *NativeBuilder) EnsureBuilt(ctx context.Context, unit *compiler.ProcMacroUnit) (string, error) {
	pkg := unit.Main()
	cacheDir, err := b.cacheDirFs(pkg).PathExistent()
	if err != nil {
		return "", err
	}
	libPath := libraryPath(cacheDir, pkg)

	fingerprint, err := sourceFingerprint(pkg.Root())
	if err != nil {
		return "", err
	}
	fpPath := filepath.Join(cacheDir, "fingerprint.hash")
	if stored, err := os.ReadFile(fpPath); err == nil && string(stored) == fingerprint && fsx.Exists(libPath) {
		slog.Debug("proc-macro library is fresh", "package", pkg.Id, "lib", libPath)
		return libPath, nil
	}

	if err := b.cargoBuild(ctx, pkg, cacheDir); err != nil {
		return "", err
	}
	if !fsx.Exists(libPath) {
		return "", fmt.Errorf("native build of %s did not produce %s", pkg.Id, libPath)
	}
	if err := fsx.WriteFileAtomic(fpPath, []byte(fingerprint), 0o644); err != nil {
		return "", err
	}
	return libPath, nil
}

func (b *NativeBuilder) cacheDirFs(pkg *core.Package) *flock.Filesystem {
	return b.pluginsFs.
		Child("proc_macro").
		Child(fmt.Sprintf("%s-%s", pkg.Id.Name(), pkg.Id.SourceId().Ident())).
		Child("v" + pkg.Id.Version().String())
}

func libraryPath(cacheDir string, pkg *core.Package) string {
	return filepath.Join(cacheDir, "target", "release", SharedLibraryName(string(pkg.Id.Name())))
}

func (b *NativeBuilder) cargoBuild(ctx context.Context, pkg *core.Package, cacheDir string) error {
	cmd := exec.CommandContext(ctx, b.cargo, "build", "--release")
	cmd.Dir = pkg.Root()
	cmd.Env = append(os.Environ(), "CARGO_TARGET_DIR="+filepath.Join(cacheDir, "target"))
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	slog.Debug("building proc-macro library", "package", pkg.Id, "dir", cmd.Dir)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("native build of %s failed: %w\n%s", pkg.Id, err, output.String())
	}
	return nil
}

// SharedLibraryName returns the platform file name of a plugin library.
func SharedLibraryName(name string) string {
	switch runtime.GOOS {
	case "windows":
		return name + ".dll"
	case "darwin":
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}

// sourceFingerprint hashes the plugin's source tree, skipping build
// outputs and VCS metadata.
func sourceFingerprint(root string) (string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		top, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
		if d.IsDir() {
			if top == "target" || top == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint plugin sources at %s: %w", root, err)
	}
	sort.Strings(files)

	h := stablehash.New()
	for _, path := range files {
		h.WriteString(path)
		if err := h.WriteFile(path); err != nil {
			return "", err
		}
	}
	return h.Digest(), nil
}
