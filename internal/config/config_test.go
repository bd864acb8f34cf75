// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"scarb/internal/ui"
)

func writeManifest(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "Scarb.toml")
	if err := os.WriteFile(path, []byte("[package]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	manifest := writeManifest(t, dir)
	t.Setenv("SCARB_CACHE", t.TempDir())
	t.Setenv("SCARB_CONFIG", t.TempDir())

	c, err := Load(LoadOptions{ManifestPath: manifest})
	if err != nil {
		t.Fatal(err)
	}
	if c.Profile != "dev" {
		t.Errorf("default profile = %q, want dev", c.Profile)
	}
	if c.Offline {
		t.Error("offline must default to false")
	}
	if c.Ui.Verbosity() != ui.VerbosityNormal {
		t.Errorf("default verbosity = %v", c.Ui.Verbosity())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	manifest := writeManifest(t, t.TempDir())
	t.Setenv("SCARB_CACHE", t.TempDir())
	t.Setenv("SCARB_CONFIG", t.TempDir())
	t.Setenv(ProfileEnv, "release")
	t.Setenv(OfflineEnv, "true")
	t.Setenv(FeaturesEnv, "a, b,c")
	t.Setenv(VerbosityEnv, "quiet")

	c, err := Load(LoadOptions{ManifestPath: manifest})
	if err != nil {
		t.Fatal(err)
	}
	if c.Profile != "release" {
		t.Errorf("profile = %q", c.Profile)
	}
	if !c.Offline {
		t.Error("SCARB_OFFLINE not honored")
	}
	if len(c.Features.Features) != 3 || c.Features.Features[1] != "b" {
		t.Errorf("features = %v", c.Features.Features)
	}
	if c.Ui.Verbosity() != ui.VerbosityQuiet {
		t.Errorf("verbosity = %v", c.Ui.Verbosity())
	}
}

func TestLoad_FlagsBeatEnv(t *testing.T) {
	manifest := writeManifest(t, t.TempDir())
	t.Setenv("SCARB_CACHE", t.TempDir())
	t.Setenv("SCARB_CONFIG", t.TempDir())
	t.Setenv(ProfileEnv, "release")

	c, err := Load(LoadOptions{ManifestPath: manifest, Profile: "dev"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Profile != "dev" {
		t.Errorf("flag must override environment, got %q", c.Profile)
	}
}

func TestLoad_ManifestDiscovery(t *testing.T) {
	root := t.TempDir()
	manifest := writeManifest(t, root)
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCARB_CACHE", t.TempDir())
	t.Setenv("SCARB_CONFIG", t.TempDir())
	t.Chdir(nested)

	c, err := Load(LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := filepath.EvalSymlinks(c.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}
	want, err := filepath.EvalSymlinks(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("discovered manifest = %q, want %q", got, want)
	}
}

func TestLoad_MissingManifest(t *testing.T) {
	t.Setenv("SCARB_CACHE", t.TempDir())
	t.Setenv("SCARB_CONFIG", t.TempDir())
	t.Chdir(t.TempDir())

	_, err := Load(LoadOptions{})
	if err == nil {
		t.Fatal("expected an error when no Scarb.toml exists")
	}
	if !errors.Is(err, ErrManifestNotFound) {
		t.Errorf("err = %v, want ErrManifestNotFound in the chain", err)
	}
}
