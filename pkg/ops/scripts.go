// SPDX-License-Identifier: MPL-2.0

package ops

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"scarb/internal/config"
	"scarb/internal/scripts"
	"scarb/internal/subcommands"
	"scarb/pkg/core"
)

// LookupScript finds the named `[scripts]` entry. Root-level entries
// take precedence; a member-declared script is only consulted when the
// root does not define the name.
func LookupScript(ws *core.Workspace, name string) (string, bool) {
	if script, ok := ws.Scripts[name]; ok {
		return script, true
	}
	for _, member := range ws.Members {
		if script, ok := member.Manifest.Scripts[name]; ok {
			return script, true
		}
	}
	return "", false
}

// ScriptNames returns every script name visible from the workspace
// root, sorted.
func ScriptNames(ws *core.Workspace) []string {
	seen := map[string]bool{}
	for name := range ws.Scripts {
		seen[name] = true
	}
	for _, member := range ws.Members {
		for name := range member.Manifest.Scripts {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunScript executes a `[scripts]` entry in the workspace root with
// the scarb environment exported, and returns the script's exit code.
func RunScript(ctx context.Context, ws *core.Workspace, cfg *config.Config, script string, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	return scripts.Run(ctx, script, ws.Root(), scriptEnviron(ws, cfg), args, stdin, stdout, stderr)
}

// scriptEnviron is the process environment plus the scarb variables
// scripts and extensions rely on.
func scriptEnviron(ws *core.Workspace, cfg *config.Config) []string {
	env := os.Environ()
	if self, err := os.Executable(); err == nil {
		env = append(env, subcommands.EnvSelfPath+"="+self)
	}
	return append(env,
		fmt.Sprintf("%s=%s", config.ProfileEnv, cfg.Profile),
		fmt.Sprintf("%s=%s", config.ManifestPathEnv, ws.RootManifestPath),
		fmt.Sprintf("%s=%s", config.TargetDirEnv, ws.TargetDirPath()),
	)
}

// SubcommandEnv is the SCARB_* environment forwarded to external
// `scarb-<name>` executables.
func SubcommandEnv(ws *core.Workspace, cfg *config.Config) map[string]string {
	return map[string]string{
		config.ProfileEnv:      cfg.Profile,
		config.ManifestPathEnv: ws.RootManifestPath,
		config.TargetDirEnv:    ws.TargetDirPath(),
	}
}
