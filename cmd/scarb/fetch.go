// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"scarb/pkg/ops"
)

// fetchCmd resolves and downloads all dependencies without building.
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch dependencies of the current workspace from their sources",
	Long: `Resolve the workspace dependency graph and download every package of
the solution into the package cache. After a successful fetch, builds
can run with --offline.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, _ []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	_, err = ops.Fetch(cmd.Context(), app.Workspace, app.Cache, app.Config.Ui, ops.FetchOpts{})
	return err
}
