// SPDX-License-Identifier: MPL-2.0

// Package subcommands implements the external subcommand protocol: a
// command `X` that is neither built in nor a workspace script is
// delegated to an executable named `scarb-X` found on the search path,
// with the recognized SCARB_* environment forwarded and the child's
// exit code propagated verbatim.
package subcommands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Prefix is prepended to the subcommand name to form the executable
// name.
const Prefix = "scarb-"

// EnvSelfPath tells children where the invoking scarb executable lives.
const EnvSelfPath = "SCARB"

// ErrNotFound reports that no executable implements the subcommand.
var ErrNotFound = errors.New("no such command")

// Find locates the executable implementing the subcommand, searching
// the given directories in priority order.
func Find(name string, pathDirs []string) (string, error) {
	filename := Prefix + name
	if runtime.GOOS == "windows" {
		filename += ".exe"
	}
	for _, dir := range pathDirs {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, filename)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: `%s`", ErrNotFound, name)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

// Run spawns the subcommand executable with the remaining arguments,
// forwarding the current environment plus the given SCARB_* overrides,
// and returns the child's exit code.
func Run(ctx context.Context, executable string, args []string, extraEnv map[string]string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, executable, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	env := os.Environ()
	if _, ok := extraEnv[EnvSelfPath]; !ok {
		if self, err := os.Executable(); err == nil {
			env = append(env, EnvSelfPath+"="+self)
		}
	}
	for key, value := range extraEnv {
		if !strings.HasPrefix(key, "SCARB") {
			continue
		}
		env = append(env, key+"="+value)
	}
	cmd.Env = env

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, fmt.Errorf("failed to run `%s`: %w", executable, err)
	}
	return 0, nil
}
