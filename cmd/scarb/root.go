// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for scarb.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"scarb/internal/config"
	"scarb/internal/dirs"
	"scarb/internal/subcommands"
	"scarb/internal/ui"
	"scarb/pkg/ops"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// Global flags, layered over SCARB_* environment variables.
	manifestPath string
	profileName  string
	targetDir    string
	offline      bool
	outputJSON   bool
	quiet        bool
	verbose      bool

	// Feature selection flags, shared by build-like commands.
	featureList       []string
	allFeatures       bool
	noDefaultFeatures bool

	// appUi is the UI of the current invocation, set once the
	// configuration is loaded. Error rendering falls back to a default
	// UI before that point.
	appUi *ui.Ui

	// rootCmd represents the base command when called without any subcommands.
	// Unmatched names fall through to workspace scripts and external
	// `scarb-*` executables.
	rootCmd = &cobra.Command{
		Use:   "scarb",
		Short: "The Cairo package manager",
		Long: `scarb manages Cairo projects: it resolves dependencies across path,
git and registry sources, downloads and verifies packages, and drives
the Cairo compiler over the resulting compilation units.

Project metadata lives in Scarb.toml; resolved versions are pinned in
Scarb.lock. Names that are not built-in commands are looked up as
workspace scripts, then as external scarb-<name> executables.`,
		Args: cobra.ArbitraryArgs,
		RunE: runRoot,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest-path", "", "path to Scarb.toml")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "P", "", "build profile to use (dev, release, or custom)")
	rootCmd.PersistentFlags().StringVar(&targetDir, "target-dir", "", "directory for all generated artifacts")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "run without accessing the network")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print machine-readable output in NDJSON format")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "do not print anything")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print extra status messages")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(runCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := ui.InitLogging(os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(renderError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// renderError reports a failed invocation on stderr. Exit codes
// propagated from child processes carry no message of their own; the
// child already reported on its stderr.
func renderError(_ io.Writer, _ fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	errUi().PrintErrorChain(err)
}

func errUi() *ui.Ui {
	if appUi != nil {
		return appUi
	}
	verbosity := ui.VerbosityNormal
	if verbose {
		verbosity = ui.VerbosityVerbose
	}
	return ui.Default(verbosity, ui.FormatText)
}

// runRoot dispatches names that are not built-in commands: workspace
// `[scripts]` entries first, then external `scarb-<name>` executables
// searched in the install-local bin/ directory and on PATH. External
// dispatch works outside a workspace too.
func runRoot(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	name, rest := args[0], args[1:]

	cfg, cfgErr := loadConfig()
	if cfgErr != nil && !errors.Is(cfgErr, config.ErrManifestNotFound) {
		return cfgErr
	}

	var pathDirs []string
	var extraEnv map[string]string
	if cfgErr == nil {
		ws, err := ops.OpenWorkspace(cfg)
		if err != nil {
			return err
		}
		if script, ok := ops.LookupScript(ws, name); ok {
			code, err := ops.RunScript(cmd.Context(), ws, cfg, script, rest, os.Stdin, os.Stdout, os.Stderr)
			if code != 0 {
				return &ExitError{Code: code}
			}
			return err
		}
		pathDirs = cfg.Dirs.PathDirs
		extraEnv = ops.SubcommandEnv(ws, cfg)
	} else {
		appDirs, err := dirs.Lookup()
		if err != nil {
			return err
		}
		pathDirs = appDirs.PathDirs
	}

	executable, err := subcommands.Find(name, pathDirs)
	if errors.Is(err, subcommands.ErrNotFound) {
		return fmt.Errorf("no such command: `%s`\n\nno script or external subcommand named `%s` was found", name, name)
	}
	if err != nil {
		return err
	}
	code, err := subcommands.Run(cmd.Context(), executable, rest, extraEnv, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
