// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"scarb/pkg/ops"
)

// runCmd executes a `[scripts]` entry from the workspace manifests.
var runCmd = &cobra.Command{
	Use:   "run [script] [args...]",
	Short: "Run a script defined in the manifest",
	Long: `Run a script from the [scripts] table of the workspace manifests in
the workspace root. Arguments after the script name are passed to the
script as positional parameters. Without a name, the available scripts
are listed.

The root manifest's scripts shadow member-declared ones of the same
name.`,
	Args: cobra.ArbitraryArgs,
	RunE: runRunScript,
}

func runRunScript(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		names := ops.ScriptNames(app.Workspace)
		if len(names) == 0 {
			return fmt.Errorf("no scripts defined in this workspace")
		}
		return fmt.Errorf("missing script name, available scripts: %s", strings.Join(names, ", "))
	}

	name, rest := args[0], args[1:]
	script, ok := ops.LookupScript(app.Workspace, name)
	if !ok {
		return fmt.Errorf("missing script `%s` for workspace `%s`", name, app.Workspace.Root())
	}

	code, err := ops.RunScript(cmd.Context(), app.Workspace, app.Config, script, rest, os.Stdin, os.Stdout, os.Stderr)
	if code != 0 {
		return &ExitError{Code: code}
	}
	return err
}
