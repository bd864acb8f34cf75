// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"scarb/pkg/ops"
)

// updateCmd re-solves the dependency graph ignoring lockfile pins.
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update dependencies recorded in the lockfile",
	Long: `Re-resolve the workspace dependency graph against the newest versions
available from each source, ignoring versions pinned in Scarb.lock,
and write the new solution back.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	_, err = ops.Fetch(cmd.Context(), app.Workspace, app.Cache, app.Config.Ui, ops.FetchOpts{Update: true})
	return err
}
