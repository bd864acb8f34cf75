// SPDX-License-Identifier: MPL-2.0

package subcommands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFind_SearchOrder(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs are not runnable on windows")
	}
	first := t.TempDir()
	second := t.TempDir()
	want := writeStub(t, first, "scarb-hello", "exit 0")
	writeStub(t, second, "scarb-hello", "exit 0")

	got, err := Find("hello", []string{first, second})
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("found %s, want the first-priority %s", got, want)
	}

	if _, err := Find("missing", []string{first, second}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestFind_IgnoresNonExecutable(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("executable bits are not meaningful on windows")
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "scarb-hello"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Find("hello", []string{dir}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestRun_ForwardsEnvAndExitCode(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs are not runnable on windows")
	}
	dir := t.TempDir()
	stub := writeStub(t, dir, "scarb-hello", `echo "profile=$SCARB_PROFILE self=$SCARB"
exit 3`)

	var stdout, stderr bytes.Buffer
	code, err := Run(context.Background(), stub, nil,
		map[string]string{"SCARB_PROFILE": "release", "HOME": "must-not-pass"},
		nil, &stdout, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	out := stdout.String()
	if !strings.Contains(out, "profile=release") {
		t.Errorf("SCARB_PROFILE not forwarded: %q", out)
	}
	if !strings.Contains(out, "self=/") {
		t.Errorf("SCARB self path not set: %q", out)
	}
}
