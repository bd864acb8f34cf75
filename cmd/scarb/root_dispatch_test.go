// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/cobra"

	"scarb/pkg/core"
)

// writeExecutable drops a shell script into dir and returns its path.
func writeExecutable(t *testing.T, dir, name, script string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeManifest(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, core.ManifestFileName)
	body := "[package]\nname = \"hello\"\nversion = \"0.1.0\"\nno-core = true\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "lib.cairo"), []byte("fn f() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func dispatchEnv(t *testing.T) (configDir string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("dispatch tests rely on shell scripts")
	}
	configDir = t.TempDir()
	t.Setenv("SCARB_CACHE", t.TempDir())
	t.Setenv("SCARB_CONFIG", configDir)
	t.Setenv("PATH", t.TempDir())
	return configDir
}

func dispatch(t *testing.T, args ...string) error {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return runRoot(cmd, args)
}

func TestRunRoot_FindsSubcommandInConfigBin(t *testing.T) {
	configDir := dispatchEnv(t)
	t.Setenv("SCARB_MANIFEST_PATH", writeManifest(t, t.TempDir()))

	marker := filepath.Join(t.TempDir(), "ran")
	writeExecutable(t, filepath.Join(configDir, "bin"), "scarb-hello", ": > "+marker)

	if err := dispatch(t, "hello"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Error("subcommand installed in the config bin/ directory was not executed")
	}
}

func TestRunRoot_ConfigBinShadowsPath(t *testing.T) {
	configDir := dispatchEnv(t)
	t.Setenv("SCARB_MANIFEST_PATH", writeManifest(t, t.TempDir()))

	pathDir := t.TempDir()
	writeExecutable(t, pathDir, "scarb-hello", "exit 9")
	t.Setenv("PATH", pathDir)
	writeExecutable(t, filepath.Join(configDir, "bin"), "scarb-hello", "exit 0")

	if err := dispatch(t, "hello"); err != nil {
		t.Errorf("config bin/ did not take priority over PATH: %v", err)
	}
}

func TestRunRoot_DispatchesOutsideWorkspace(t *testing.T) {
	configDir := dispatchEnv(t)
	t.Chdir(t.TempDir())

	writeExecutable(t, filepath.Join(configDir, "bin"), "scarb-hello", "exit 0")

	if err := dispatch(t, "hello"); err != nil {
		t.Errorf("external dispatch outside a workspace failed: %v", err)
	}

	if err := dispatch(t, "nonexistent"); err == nil {
		t.Fatal("unknown name outside a workspace did not fail")
	}
}

func TestRunRoot_PropagatesSubcommandExitCode(t *testing.T) {
	configDir := dispatchEnv(t)
	t.Setenv("SCARB_MANIFEST_PATH", writeManifest(t, t.TempDir()))

	writeExecutable(t, filepath.Join(configDir, "bin"), "scarb-hello", "exit 7")

	err := dispatch(t, "hello")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 7 {
		t.Fatalf("err = %v, want ExitError with code 7", err)
	}
}
