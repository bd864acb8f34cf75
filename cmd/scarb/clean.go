// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"scarb/pkg/ops"
)

// cleanCmd removes generated artifacts.
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the target directory",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func runClean(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ws, err := ops.OpenWorkspace(cfg)
	if err != nil {
		return err
	}
	return ops.Clean(ws, cfg.Ui)
}
