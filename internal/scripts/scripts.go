// SPDX-License-Identifier: MPL-2.0

// Package scripts runs `[scripts]` entries from the manifest through a
// portable POSIX shell interpreter, so script behavior matches across
// platforms without requiring /bin/sh.
package scripts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Run executes one script line in workDir with the given environment
// (os.Environ-style "KEY=VALUE" entries) and positional arguments. The
// returned exit code mirrors the script's; a nonzero exit is reported
// both as the code and as an error.
func Run(ctx context.Context, script, workDir string, env []string, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "script")
	if err != nil {
		return 1, fmt.Errorf("script syntax error: %w", err)
	}

	opts := []interp.RunnerOption{
		interp.Dir(workDir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(stdin, stdout, stderr),
	}
	// "--" keeps args like "-v" from being read as shell options.
	if len(args) > 0 {
		opts = append(opts, interp.Params(append([]string{"--"}, args...)...))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return 1, fmt.Errorf("failed to create script interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return int(exitStatus), fmt.Errorf("script exited with code %d", int(exitStatus))
		}
		return 1, fmt.Errorf("script execution failed: %w", err)
	}
	return 0, nil
}
