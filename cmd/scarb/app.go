// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"scarb/internal/config"
	"scarb/pkg/core"
	"scarb/pkg/ops"
	"scarb/pkg/source"
)

// App bundles the per-invocation state every command handler works
// with: the resolved configuration, the workspace in effect and the
// source backends.
type App struct {
	Config    *config.Config
	Workspace *core.Workspace
	Cache     *source.Cache
}

// loadConfig resolves the invocation configuration from the global
// flags and the environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		ManifestPath:      manifestPath,
		Profile:           profileName,
		TargetDir:         targetDir,
		Offline:           offline,
		OutputJSON:        outputJSON,
		Quiet:             quiet,
		Verbose:           verbose,
		Features:          featureList,
		AllFeatures:       allFeatures,
		NoDefaultFeatures: noDefaultFeatures,
	})
	if err != nil {
		return nil, err
	}
	appUi = cfg.Ui
	return cfg, nil
}

// newApp loads the configuration and opens the workspace. Commands
// that operate on a workspace start here.
func newApp() (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	ws, err := ops.OpenWorkspace(cfg)
	if err != nil {
		return nil, err
	}
	cache, err := ops.NewSourceCache(cfg, ws)
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, Workspace: ws, Cache: cache}, nil
}
