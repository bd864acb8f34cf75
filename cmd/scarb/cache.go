// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"scarb/internal/ui"
	"scarb/pkg/ops"
)

var (
	// cacheCmd groups operations on the per-user package cache.
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Manipulate the global package cache",
	}

	cacheCleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Remove the global package cache",
		Args:  cobra.NoArgs,
		RunE:  runCacheClean,
	}

	cachePathCmd = &cobra.Command{
		Use:   "path",
		Short: "Print the location of the global package cache",
		Args:  cobra.NoArgs,
		RunE:  runCachePath,
	}
)

func init() {
	cacheCmd.AddCommand(cacheCleanCmd)
	cacheCmd.AddCommand(cachePathCmd)
}

func runCacheClean(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return ops.CacheClean(cfg.Dirs, cfg.Ui)
}

func runCachePath(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Ui.Print(ui.TextMessage(ops.CachePath(cfg.Dirs)))
	return nil
}
