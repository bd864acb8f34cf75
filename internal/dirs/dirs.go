// SPDX-License-Identifier: MPL-2.0

// Package dirs locates the per-user directories scarb keeps state in:
// the cache directory (registry downloads, git checkouts, compiled
// plugins), the configuration directory, and the directories searched
// for external subcommand binaries.
package dirs

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"scarb/internal/flock"
)

const (
	// AppName is the application name, used as the per-user directory name.
	AppName = "scarb"

	// CacheDirEnv overrides the cache directory location.
	CacheDirEnv = "SCARB_CACHE"
	// ConfigDirEnv overrides the configuration directory location.
	ConfigDirEnv = "SCARB_CONFIG"
)

type (
	// AppDirs bundles the per-user directories of a scarb invocation.
	// Both trees are created lazily on first use; the cache carries a
	// CACHEDIR.TAG so backup tools skip it.
	AppDirs struct {
		// Cache holds downloaded registry archives, git checkouts, and
		// compiled proc-macro plugins. Safe to delete at any time.
		Cache *flock.Filesystem
		// Config holds user-level configuration.
		Config *flock.Filesystem
		// PathDirs are the directories searched for scarb-<name>
		// external subcommand binaries, in priority order.
		PathDirs []string
	}
)

// Lookup resolves the application directories, honoring the SCARB_CACHE
// and SCARB_CONFIG environment overrides.
func Lookup() (*AppDirs, error) {
	cacheDir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	configDir, err := configDir()
	if err != nil {
		return nil, err
	}

	pathDirs := []string{filepath.Join(configDir, "bin")}
	pathDirs = append(pathDirs, filepath.SplitList(os.Getenv("PATH"))...)

	return &AppDirs{
		Cache:    flock.NewOutputFilesystem(cacheDir),
		Config:   flock.NewFilesystem(configDir),
		PathDirs: pathDirs,
	}, nil
}

// RegistryDir returns the cache subtree holding registry state.
func (d *AppDirs) RegistryDir() *flock.Filesystem {
	return d.Cache.Child("registry")
}

// PluginsDir returns the cache subtree holding compiled plugin binaries.
func (d *AppDirs) PluginsDir() *flock.Filesystem {
	return d.Cache.Child("plugins")
}

func cacheDir() (string, error) {
	if dir := os.Getenv(CacheDirEnv); dir != "" {
		return filepath.Abs(dir)
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

func configDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return filepath.Abs(dir)
	}

	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, AppName), nil
}
