// SPDX-License-Identifier: MPL-2.0

// Package config assembles the per-invocation configuration of the
// scarb process: CLI flags layered over SCARB_* environment variables
// layered over defaults, plus the resolved application directories.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"scarb/internal/dirs"
	"scarb/internal/ui"
)

const (
	// EnvPrefix is the prefix of every scarb environment variable.
	EnvPrefix = "SCARB"

	// ProfileEnv selects the build profile.
	ProfileEnv = "SCARB_PROFILE"
	// ManifestPathEnv points at the Scarb.toml to operate on.
	ManifestPathEnv = "SCARB_MANIFEST_PATH"
	// TargetDirEnv overrides the workspace target directory.
	TargetDirEnv = "SCARB_TARGET_DIR"
	// OfflineEnv disables all network access when truthy.
	OfflineEnv = "SCARB_OFFLINE"
	// OutputJSONEnv switches user output to NDJSON when truthy.
	OutputJSONEnv = "SCARB_OUTPUT_JSON"
	// VerbosityEnv sets the user output level (quiet, normal, verbose).
	VerbosityEnv = "SCARB_UI_VERBOSITY"
	// FeaturesEnv is a comma-separated list of features to enable.
	FeaturesEnv = "SCARB_FEATURES"
	// AllFeaturesEnv enables every declared feature when truthy.
	AllFeaturesEnv = "SCARB_ALL_FEATURES"
	// NoDefaultFeaturesEnv disables the default feature set when truthy.
	NoDefaultFeaturesEnv = "SCARB_NO_DEFAULT_FEATURES"
)

type (
	// Config is the fully resolved invocation configuration. It is
	// read-only after Load and shared by every command.
	Config struct {
		// ManifestPath is the Scarb.toml in effect, discovered from the
		// working directory unless overridden.
		ManifestPath string
		// Profile is the selected profile name, e.g. "dev" or "release".
		Profile string
		// TargetDirOverride replaces <workspace>/target when non-empty.
		TargetDirOverride string
		// Offline forbids all network access.
		Offline bool
		// Dirs are the per-user application directories.
		Dirs *dirs.AppDirs
		// Ui is the user output channel.
		Ui *ui.Ui
		// Features carries the feature selection flags.
		Features FeatureSettings
	}

	// FeatureSettings mirrors the --features/--all-features/
	// --no-default-features flag triple.
	FeatureSettings struct {
		Features          []string
		AllFeatures       bool
		NoDefaultFeatures bool
	}

	// LoadOptions carry CLI flag values that take precedence over the
	// environment. Zero values mean "not set on the command line".
	LoadOptions struct {
		ManifestPath      string
		Profile           string
		TargetDir         string
		Offline           bool
		OutputJSON        bool
		Quiet             bool
		Verbose           bool
		Features          []string
		AllFeatures       bool
		NoDefaultFeatures bool
	}
)

// ErrManifestNotFound reports that no Scarb.toml is in scope. Commands
// that can work without a workspace test for it and carry on.
var ErrManifestNotFound = errors.New("manifest not found")

// Load resolves the invocation configuration from flags, environment,
// and defaults, in that precedence order.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, env := range map[string]string{
		"manifest_path":       ManifestPathEnv,
		"profile":             ProfileEnv,
		"target_dir":          TargetDirEnv,
		"offline":             OfflineEnv,
		"output_json":         OutputJSONEnv,
		"ui_verbosity":        VerbosityEnv,
		"features":            FeaturesEnv,
		"all_features":        AllFeaturesEnv,
		"no_default_features": NoDefaultFeaturesEnv,
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable %s: %w", env, err)
		}
	}
	v.SetDefault("profile", "dev")

	applyFlagOverrides(v, opts)

	appDirs, err := dirs.Lookup()
	if err != nil {
		return nil, err
	}

	verbosity, err := ui.ParseVerbosity(v.GetString("ui_verbosity"))
	if err != nil {
		return nil, err
	}
	format := ui.FormatText
	if v.GetBool("output_json") {
		format = ui.FormatJSON
	}

	manifestPath, err := resolveManifestPath(v.GetString("manifest_path"))
	if err != nil {
		return nil, err
	}

	return &Config{
		ManifestPath:      manifestPath,
		Profile:           v.GetString("profile"),
		TargetDirOverride: v.GetString("target_dir"),
		Offline:           v.GetBool("offline"),
		Dirs:              appDirs,
		Ui:                ui.Default(verbosity, format),
		Features: FeatureSettings{
			Features:          splitFeatureList(v.GetString("features")),
			AllFeatures:       v.GetBool("all_features"),
			NoDefaultFeatures: v.GetBool("no_default_features"),
		},
	}, nil
}

func applyFlagOverrides(v *viper.Viper, opts LoadOptions) {
	if opts.ManifestPath != "" {
		v.Set("manifest_path", opts.ManifestPath)
	}
	if opts.Profile != "" {
		v.Set("profile", opts.Profile)
	}
	if opts.TargetDir != "" {
		v.Set("target_dir", opts.TargetDir)
	}
	if opts.Offline {
		v.Set("offline", true)
	}
	if opts.OutputJSON {
		v.Set("output_json", true)
	}
	if opts.Quiet {
		v.Set("ui_verbosity", "quiet")
	}
	if opts.Verbose {
		v.Set("ui_verbosity", "verbose")
	}
	if len(opts.Features) > 0 {
		v.Set("features", strings.Join(opts.Features, ","))
	}
	if opts.AllFeatures {
		v.Set("all_features", true)
	}
	if opts.NoDefaultFeatures {
		v.Set("no_default_features", true)
	}
}

// resolveManifestPath returns the absolute path of the manifest in
// effect. When no explicit path is given, the working directory and its
// ancestors are searched for a Scarb.toml.
func resolveManifestPath(explicit string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", fmt.Errorf("failed to resolve manifest path: %w", err)
		}
		return abs, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, "Scarb.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		if filepath.Dir(dir) == dir {
			break
		}
	}
	return "", fmt.Errorf("failed to find Scarb.toml in %s or any parent directory: %w", cwd, ErrManifestNotFound)
}

func splitFeatureList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
