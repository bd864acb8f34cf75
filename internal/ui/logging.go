// SPDX-License-Identifier: MPL-2.0

package ui

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// LogLevelEnv selects the internal debug log level. Unlike the user
// output stream, this log is developer-facing and off by default.
const LogLevelEnv = "SCARB_LOG"

// InitLogging installs the process-wide slog default based on the
// SCARB_LOG environment variable. Unset or empty disables logging
// below the error level.
func InitLogging(w io.Writer) error {
	if w == nil {
		w = os.Stderr
	}

	level := charmlog.ErrorLevel
	if spec := os.Getenv(LogLevelEnv); spec != "" {
		parsed, err := parseLevel(spec)
		if err != nil {
			return err
		}
		level = parsed
	}

	logger := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
	})
	slog.SetDefault(slog.New(logger))
	return nil
}

func parseLevel(spec string) (charmlog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case "trace", "debug":
		return charmlog.DebugLevel, nil
	case "info":
		return charmlog.InfoLevel, nil
	case "warn", "warning":
		return charmlog.WarnLevel, nil
	case "error":
		return charmlog.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("invalid %s level: %q", LogLevelEnv, spec)
	}
}
