// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"scarb/pkg/ops"
)

var (
	buildTests bool

	// buildCmd compiles every workspace member.
	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Compile the current workspace",
		Long: `Compile every target of every workspace member.

Dependencies are resolved and downloaded first; resolved versions are
pinned in Scarb.lock. Artifacts land in target/<profile>/. Units whose
sources and configuration are unchanged since the last build are
skipped.`,
		Args: cobra.NoArgs,
		RunE: runBuild,
	}
)

func init() {
	buildCmd.Flags().BoolVar(&buildTests, "test", false, "also build test targets")
	addFeatureFlags(buildCmd)
}

// addFeatureFlags registers the feature selection triple on a
// build-like command.
func addFeatureFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&featureList, "features", nil, "comma-separated list of features to activate")
	cmd.Flags().BoolVar(&allFeatures, "all-features", false, "activate all available features")
	cmd.Flags().BoolVar(&noDefaultFeatures, "no-default-features", false, "do not activate the default feature")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	return ops.Build(cmd.Context(), app.Workspace, app.Cache, app.Config, ops.BuildOpts{
		WithTests: buildTests,
		Features:  ops.FeatureSelection(app.Config.Features),
	})
}
